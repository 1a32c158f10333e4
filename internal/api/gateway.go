// Package api is the only way the client talks to the board service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Makepad-fr/smartboard/internal/store/credstore"
)

// GenericMessage is used when a failed response carries no message.
const GenericMessage = "Something went wrong"

// ErrUnauthorized matches any error produced by a 401 response.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// NetworkError wraps a transport failure (server unreachable, timeout, ...).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Message returns the text to show a user for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	if IsNetwork(err) {
		return "Cannot reach the server"
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Options configure a Gateway.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	RateBurst int
	UserAgent string
	Client    *http.Client
	Logger    *log.Logger

	// OnUnauthorized runs after the store is cleared on a 401.
	OnUnauthorized func()
}

// Gateway issues JSON requests with the stored bearer token attached.
type Gateway struct {
	base      string
	store     credstore.Store
	client    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	logger    *log.Logger
	onUnauth  func()
}

func NewGateway(store credstore.Store, opt Options) *Gateway {
	client := opt.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ua := opt.UserAgent
	if ua == "" {
		ua = "smartboard"
	}
	g := &Gateway{
		base:      strings.TrimRight(opt.BaseURL, "/"),
		store:     store,
		client:    client,
		timeout:   opt.Timeout,
		userAgent: ua,
		logger:    logger,
		onUnauth:  opt.OnUnauthorized,
	}
	if opt.RateLimit > 0 {
		burst := opt.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opt.RateLimit), burst)
	}
	return g
}

// SetUnauthorizedHook replaces the 401 hook. Used to break the construction
// cycle between the gateway and the session manager.
func (g *Gateway) SetUnauthorizedHook(fn func()) { g.onUnauth = fn }

// RequestOption tweaks one request.
type RequestOption func(*http.Request)

// WithHeader sets (overrides) a header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Do sends body (JSON-encoded when non-nil) to path and decodes a 2xx
// response into out (when non-nil).
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return &NetworkError{Op: method + " " + path, Err: err}
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if cred, err := g.store.Load(); err != nil {
		g.logger.Warn("credential store unreadable", "err", err)
	} else if cred != nil && cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	for _, o := range opts {
		o(req)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("request failed", "method", method, "path", path, "id", reqID, "err", err)
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "read " + path, Err: err}
	}
	g.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"took", time.Since(start), "id", reqID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode == http.StatusUnauthorized {
			g.expire()
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// expire drops the session: credentials go first, then the hook
// sends the UI back to login.
func (g *Gateway) expire() {
	if err := g.store.Clear(); err != nil {
		g.logger.Error("clear credentials after 401", "err", err)
	}
	g.logger.Warn("session rejected by server, logged out")
	if g.onUnauth != nil {
		g.onUnauth()
	}
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return GenericMessage
}

func (g *Gateway) get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, body, out)
}

func (g *Gateway) put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPut, path, body, out)
}

func (g *Gateway) del(ctx context.Context, path string) error {
	return g.Do(ctx, http.MethodDelete, path, nil, nil)
}

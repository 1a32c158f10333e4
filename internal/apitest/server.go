// Package apitest runs an in-memory board service for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

type user struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

type member struct {
	User user   `json:"user"`
	Role string `json:"role"`
}

type board struct {
	ID         string   `json:"_id"`
	Title      string   `json:"title"`
	Background string   `json:"background"`
	Owner      user     `json:"owner"`
	Members    []member `json:"members"`
}

type list struct {
	ID       string `json:"_id"`
	Board    string `json:"board"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

type card struct {
	ID          string     `json:"_id"`
	List        string     `json:"list"`
	Board       string     `json:"board"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      []string   `json:"labels"`
}

type failure struct {
	status  int
	message string
}

// Server is a fake backend mounted under /api.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	seq    int
	users  map[string]*user // by email
	tokens map[string]string
	boards map[string]*board
	lists  map[string]*list
	cards  map[string]*card
	recs   map[string]json.RawMessage
	fails  map[string]failure
	calls  []string
}

// New starts a server. Close it with t.Cleanup(s.Close).
func New() *Server {
	s := &Server{
		users:  map[string]*user{},
		tokens: map[string]string{},
		boards: map[string]*board{},
		lists:  map[string]*list{},
		cards:  map[string]*card{},
		recs:   map[string]json.RawMessage{},
		fails:  map[string]failure{},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// BaseURL is the API root to hand to the gateway.
func (s *Server) BaseURL() string { return s.URL + "/api" }

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record, s.injectFailures)
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", s.register).Methods("POST")
	api.HandleFunc("/auth/login", s.login).Methods("POST")

	private := api.NewRoute().Subrouter()
	private.Use(s.requireToken)
	private.HandleFunc("/auth/me", s.me).Methods("GET")
	private.HandleFunc("/boards", s.listBoards).Methods("GET")
	private.HandleFunc("/boards", s.createBoard).Methods("POST")
	private.HandleFunc("/boards/{id}", s.getBoard).Methods("GET")
	private.HandleFunc("/boards/{id}", s.updateBoard).Methods("PUT")
	private.HandleFunc("/boards/{id}", s.deleteBoard).Methods("DELETE")
	private.HandleFunc("/boards/{id}/invite", s.invite).Methods("POST")
	private.HandleFunc("/lists/board/{boardId}", s.boardLists).Methods("GET")
	private.HandleFunc("/lists", s.createList).Methods("POST")
	private.HandleFunc("/lists/{id}", s.updateList).Methods("PUT")
	private.HandleFunc("/lists/{id}", s.deleteList).Methods("DELETE")
	private.HandleFunc("/cards/board/{boardId}", s.boardCards).Methods("GET")
	private.HandleFunc("/cards/list/{listId}", s.listCards).Methods("GET")
	private.HandleFunc("/cards", s.createCard).Methods("POST")
	private.HandleFunc("/cards/{id}", s.getCard).Methods("GET")
	private.HandleFunc("/cards/{id}", s.updateCard).Methods("PUT")
	private.HandleFunc("/cards/{id}", s.deleteCard).Methods("DELETE")
	private.HandleFunc("/cards/{id}/move", s.moveCard).Methods("PUT")
	private.HandleFunc("/cards/{id}/recommendations", s.recommendations).Methods("GET")
	return r
}

// ---------------------------------------------------
// Test controls
// ---------------------------------------------------

// Fail makes every request to "METHOD /path/template" (as registered,
// e.g. "GET /api/cards/board/{boardId}") answer status with message.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[route] = failure{status: status, message: message}
}

// Heal removes an injected failure.
func (s *Server) Heal(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, route)
}

// Calls returns "METHOD /path" for every request received so far.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts received requests whose "METHOD /path" starts with prefix.
func (s *Server) CallCount(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// AddUser registers a user and returns a valid token for it.
func (s *Server) AddUser(name, email, password string) (id, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.newUser(name, email, password)
	return u.ID, s.issue(u)
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]string{}
}

// SeedBoard creates a board owned by the user with ownerEmail, with one list
// per title and cardsPerList cards in each. It returns the board id and the
// list ids in order.
func (s *Server) SeedBoard(ownerEmail, title string, listTitles []string, cardsPerList int) (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.users[ownerEmail]
	b := &board{ID: s.nextID("b"), Title: title, Background: "#0079bf", Owner: *owner,
		Members: []member{{User: *owner, Role: "owner"}}}
	s.boards[b.ID] = b
	var ids []string
	for i, lt := range listTitles {
		l := &list{ID: s.nextID("l"), Board: b.ID, Title: lt, Position: i}
		s.lists[l.ID] = l
		ids = append(ids, l.ID)
		for j := 0; j < cardsPerList; j++ {
			c := &card{ID: s.nextID("c"), List: l.ID, Board: b.ID,
				Title: fmt.Sprintf("%s %d", lt, j), Position: j, Labels: []string{}}
			s.cards[c.ID] = c
		}
	}
	return b.ID, ids
}

// SetRecommendations stores the raw payload served for a card.
func (s *Server) SetRecommendations(cardID string, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[cardID] = json.RawMessage(payload)
}

// CardPosition returns the server-side list and position of a card.
func (s *Server) CardPosition(cardID string) (listID string, position int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return "", 0, false
	}
	return c.List, c.Position, true
}

// ListPosition returns the server-side position of a list.
func (s *Server) ListPosition(listID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return 0, false
	}
	return l.Position, true
}

// ---------------------------------------------------
// Middleware
// ---------------------------------------------------

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				s.mu.Lock()
				f, ok := s.fails[r.Method+" "+tpl]
				s.mu.Unlock()
				if ok {
					writeErr(w, f.status, f.message)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		tok := strings.TrimPrefix(h, "Bearer ")
		s.mu.Lock()
		uid, ok := s.tokens[tok]
		s.mu.Unlock()
		if h == "" || !ok {
			writeErr(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		r.Header.Set("X-Test-User", uid)
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------
// Handlers
// ---------------------------------------------------

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct{ Name, Email, Password string }
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[in.Email]; exists {
		writeErr(w, http.StatusBadRequest, "User already exists")
		return
	}
	u := s.newUser(in.Name, in.Email, in.Password)
	writeJSON(w, http.StatusCreated, authBody(u, s.issue(u)))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.Email]
	if !ok || u.Password != in.Password {
		writeErr(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, authBody(u, s.issue(u)))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userByID(r.Header.Get("X-Test-User")))
}

func (s *Server) listBoards(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := r.Header.Get("X-Test-User")
	out := []board{}
	for _, b := range s.boards {
		for _, m := range b.Members {
			if m.User.ID == uid {
				out = append(out, *b)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBoard(w http.ResponseWriter, r *http.Request) {
	var in struct{ Title, Background string }
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeErr(w, http.StatusBadRequest, "Title is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.userByID(r.Header.Get("X-Test-User"))
	b := &board{ID: s.nextID("b"), Title: in.Title, Background: in.Background, Owner: *owner,
		Members: []member{{User: *owner, Role: "owner"}}}
	s.boards[b.ID] = b
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Board not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateBoard(w http.ResponseWriter, r *http.Request) {
	var in struct{ Title, Background string }
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Board not found")
		return
	}
	if in.Title != "" {
		b.Title = in.Title
	}
	if in.Background != "" {
		b.Background = in.Background
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBoard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := s.boards[id]; !ok {
		writeErr(w, http.StatusNotFound, "Board not found")
		return
	}
	delete(s.boards, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Board removed"})
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email string }
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Board not found")
		return
	}
	u, ok := s.users[in.Email]
	if !ok {
		writeErr(w, http.StatusNotFound, "User not found")
		return
	}
	for _, m := range b.Members {
		if m.User.ID == u.ID {
			writeErr(w, http.StatusBadRequest, "User is already a member")
			return
		}
	}
	b.Members = append(b.Members, member{User: *u, Role: "member"})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invitation sent"})
}

func (s *Server) boardLists(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid := mux.Vars(r)["boardId"]
	out := []list{}
	for _, l := range s.lists {
		if l.Board == bid {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	var in list
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = s.nextID("l")
	s.lists[in.ID] = &in
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) updateList(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title    *string
		Position *int
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "List not found")
		return
	}
	if in.Title != nil {
		l.Title = *in.Title
	}
	if in.Position != nil {
		l.Position = *in.Position
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) deleteList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := s.lists[id]; !ok {
		writeErr(w, http.StatusNotFound, "List not found")
		return
	}
	delete(s.lists, id)
	for cid, c := range s.cards {
		if c.List == id {
			delete(s.cards, cid)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "List removed"})
}

func (s *Server) boardCards(w http.ResponseWriter, r *http.Request) {
	s.cardsWhere(w, func(c *card) bool { return c.Board == mux.Vars(r)["boardId"] })
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	s.cardsWhere(w, func(c *card) bool { return c.List == mux.Vars(r)["listId"] })
}

func (s *Server) cardsWhere(w http.ResponseWriter, keep func(*card) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []card{}
	for _, c := range s.cards {
		if keep(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var in card
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeErr(w, http.StatusBadRequest, "Title is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[in.List]; !ok {
		writeErr(w, http.StatusNotFound, "List not found")
		return
	}
	in.ID = s.nextID("c")
	if in.Labels == nil {
		in.Labels = []string{}
	}
	s.cards[in.ID] = &in
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) getCard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Card not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title       *string
		Description *string
		Position    *int
		DueDate     *time.Time `json:"dueDate"`
		Labels      []string
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Card not found")
		return
	}
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Position != nil {
		c.Position = *in.Position
	}
	if in.DueDate != nil {
		c.DueDate = in.DueDate
	}
	if in.Labels != nil {
		c.Labels = in.Labels
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := s.cards[id]; !ok {
		writeErr(w, http.StatusNotFound, "Card not found")
		return
	}
	delete(s.cards, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Card removed"})
}

// moveCard reorders both the source and destination lists, like the real
// backend does.
func (s *Server) moveCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ListID   string `json:"listId"`
		Position int    `json:"position"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[mux.Vars(r)["id"]]
	if !ok {
		writeErr(w, http.StatusNotFound, "Card not found")
		return
	}
	if _, ok := s.lists[in.ListID]; !ok {
		writeErr(w, http.StatusNotFound, "List not found")
		return
	}
	from := c.List
	c.List = in.ListID
	s.renumber(from, "", 0)
	s.renumber(in.ListID, c.ID, in.Position)
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := s.cards[id]; !ok {
		writeErr(w, http.StatusNotFound, "Card not found")
		return
	}
	raw, ok := s.recs[id]
	if !ok {
		raw = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// ---------------------------------------------------
// helpers (callers hold s.mu)
// ---------------------------------------------------

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%03d", prefix, s.seq)
}

func (s *Server) newUser(name, email, password string) *user {
	u := &user{ID: s.nextID("u"), Name: name, Email: email, Password: password}
	s.users[email] = u
	return u
}

func (s *Server) issue(u *user) string {
	tok := s.nextID("tok-")
	s.tokens[tok] = u.ID
	return tok
}

func (s *Server) userByID(id string) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return &user{}
}

// renumber gives the cards of listID positions 0..n-1; when movedID is set
// that card is placed at index at.
func (s *Server) renumber(listID, movedID string, at int) {
	var others []*card
	var moved *card
	for _, c := range s.cards {
		if c.List != listID {
			continue
		}
		if c.ID == movedID {
			moved = c
			continue
		}
		others = append(others, c)
	}
	sort.SliceStable(others, func(i, j int) bool {
		if others[i].Position != others[j].Position {
			return others[i].Position < others[j].Position
		}
		return others[i].ID < others[j].ID
	})
	if moved != nil {
		if at < 0 {
			at = 0
		}
		if at > len(others) {
			at = len(others)
		}
		others = append(others[:at], append([]*card{moved}, others[at:]...)...)
	}
	for i, c := range others {
		c.Position = i
	}
}

func authBody(u *user, token string) map[string]string {
	return map[string]string{"_id": u.ID, "name": u.Name, "email": u.Email, "token": token}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, message string) {
	if message == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"message": message})
}

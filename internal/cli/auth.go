package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Makepad-fr/smartboard/internal/api"
	"github.com/Makepad-fr/smartboard/internal/model"
	"github.com/Makepad-fr/smartboard/internal/session"
	"github.com/Makepad-fr/smartboard/internal/store/credstore"
	"github.com/Makepad-fr/smartboard/internal/ui"
)

var errNotLoggedIn = errors.New("not logged in")

// ensureAuth restores the stored session and waits for the server to
// confirm it.
func (a *App) ensureAuth(ctx context.Context) (model.User, error) {
	err := <-a.Session.Restore(ctx)
	if u, ok := a.Session.User(); ok {
		return u, nil
	}
	if err != nil {
		return model.User{}, err
	}
	return model.User{}, errNotLoggedIn
}

func (a *App) authLogin(ctx context.Context) error {
	email, err := a.prompt("Email: ")
	if err != nil {
		return err
	}
	pw, err := a.password()
	if err != nil {
		return err
	}
	u, err := a.Session.Login(ctx, email, pw)
	if err != nil {
		return err
	}
	ui.OK("logged in as " + display(u))
	return nil
}

func (a *App) authRegister(ctx context.Context) error {
	name, err := a.prompt("Name: ")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email: ")
	if err != nil {
		return err
	}
	pw, err := a.password()
	if err != nil {
		return err
	}
	u, err := a.Session.Register(ctx, name, email, pw)
	if err != nil {
		return err
	}
	ui.OK("account created, logged in as " + display(u))
	return nil
}

func (a *App) authLogout() error {
	cred, _ := a.Store.Load()
	if cred != nil && cred.Source == "env" {
		ui.OK("token is provided by " + credstore.EnvToken + " (nothing to delete)")
		return nil
	}
	a.Session.Logout()
	ui.OK("logged out")
	return nil
}

func (a *App) authStatus(ctx context.Context) error {
	cred, err := a.Store.Load()
	if err != nil {
		return err
	}
	if cred == nil {
		fmt.Fprintln(ui.Stdout, ui.C(ui.Current().Muted, "not logged in"))
		fmt.Fprintln(ui.Stdout, "Run: smartboard auth login")
		return nil
	}
	lines := []string{
		ui.C(ui.Current().Title, "Session"),
		"source:  " + cred.Source,
		"server:  " + a.Config.APIURL,
	}
	if !cred.CreatedAt.IsZero() && cred.Source == "file" {
		lines = append(lines, "saved:   "+cred.CreatedAt.Local().Format(time.RFC1123))
	}
	if exp, ok := tokenExpiry(cred.Token); ok {
		lines = append(lines, "expires: "+exp.Local().Format(time.RFC1123))
	}
	verr := <-a.Session.Restore(ctx)
	switch {
	case a.Session.State() == session.Authenticated:
		u, _ := a.Session.User()
		lines = append(lines, "user:    "+display(u), ui.C(ui.Current().Success, "token accepted by the server"))
	case api.IsNetwork(verr):
		lines = append(lines, ui.C(ui.Current().Pending, "server unreachable, token not checked"))
	default:
		lines = append(lines, ui.C(ui.Current().Error, "token rejected: "+userMessage(verr)))
	}
	lines = append(lines, "", ui.C(ui.Current().Muted, "env override: "+credstore.EnvToken))
	ui.Panel(lines)
	return nil
}

// authWhoAmI decodes the token locally (the signature is not checked) and
// then asks the server for the profile.
func (a *App) authWhoAmI(ctx context.Context) error {
	cred, err := a.Store.Load()
	if err != nil {
		return err
	}
	if cred == nil {
		return errNotLoggedIn
	}
	if claims, ok := tokenClaims(cred.Token); ok {
		keys := make([]string, 0, len(claims))
		for k := range claims {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(ui.Stdout, ui.C(ui.Current().Title, "Token claims"))
		for _, k := range keys {
			fmt.Fprintf(ui.Stdout, "  %-6s %v\n", k, claims[k])
		}
	} else {
		fmt.Fprintln(ui.Stdout, "Opaque token (cannot introspect locally).")
	}
	u, err := a.ensureAuth(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Stdout, "%s %s\n", ui.C(ui.Current().Title, "User"), display(u))
	return nil
}

func tokenClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func tokenExpiry(token string) (time.Time, bool) {
	claims, ok := tokenClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func display(u model.User) string {
	switch {
	case u.Name != "" && u.Email != "":
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	case u.Email != "":
		return u.Email
	}
	return u.Name
}

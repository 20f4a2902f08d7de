package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/goforj/odm"
	"github.com/goforj/odm/helpdesk"
)

// ErrNoDesk is returned by HelpdeskDemo when no redis cache is configured.
var ErrNoDesk = errors.New("app: help desk needs the redis cache driver")

// CacheDemo saves a document of kind, then walks it through a cache hit, an
// evicted entry refilled from the store, deletion, and a final absent lookup.
func (a *App) CacheDemo(ctx context.Context, w io.Writer, kind string, attrs map[string]any) error {
	model, err := a.Registry.Lookup(kind)
	if err != nil {
		return err
	}
	doc, err := model.New(ctx, attrs)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "save: store and cache")
	if err := doc.Save(ctx); err != nil {
		return err
	}
	id := doc.ID()
	if err := a.printCached(ctx, w, id); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nfind by id: served from cache")
	if err := printFound(ctx, w, model, id); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nevict from cache")
	if _, err := a.Cache.Delete(ctx, id); err != nil {
		return err
	}
	if err := a.printCached(ctx, w, id); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nfind by id: loaded from store and cached again")
	if err := printFound(ctx, w, model, id); err != nil {
		return err
	}
	if err := a.printCached(ctx, w, id); err != nil {
		return err
	}

	fmt.Fprintln(w, "\ndelete: store and cache")
	if _, err := doc.Delete(ctx); err != nil {
		return err
	}
	if err := a.printCached(ctx, w, id); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nfind by id: absent everywhere")
	return printFound(ctx, w, model, id)
}

func (a *App) printCached(ctx context.Context, w io.Writer, id string) error {
	body, ok, err := a.Cache.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "cache: <none>")
		return nil
	}
	fmt.Fprintf(w, "cache: %s\n", body)
	return nil
}

func printFound(ctx context.Context, w io.Writer, model *odm.Model, id string) error {
	snap, ok, err := model.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "found: <none>")
		return nil
	}
	fmt.Fprintf(w, "found: %v\n", snap)
	return nil
}

// HelpdeskDemo registers two users, exercises login by password and by token,
// then queues three tickets and attends them in priority order.
func (a *App) HelpdeskDemo(ctx context.Context, w io.Writer) error {
	if a.Desk == nil {
		return ErrNoDesk
	}
	return runHelpdeskDemo(ctx, w, a.Desk)
}

func runHelpdeskDemo(ctx context.Context, w io.Writer, desk *helpdesk.Desk) error {
	if err := desk.Register(ctx, "antonio", "Antonio Cabrera", "1234", 1); err != nil && !errors.Is(err, helpdesk.ErrUserExists) {
		return err
	}
	if err := printUser(ctx, w, desk, "antonio"); err != nil {
		return err
	}

	privileges, token, err := desk.Login(ctx, "antonio", "1234")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nlogin: token=%s privileges=%d\n", token, privileges)

	two := 2
	if err := desk.EditUser(ctx, "antonio", helpdesk.UserUpdate{Privileges: &two}); err != nil {
		return err
	}
	if err := printUser(ctx, w, desk, "antonio"); err != nil {
		return err
	}

	if privileges, err = desk.LoginWithToken(ctx, token); err != nil {
		return err
	}
	fmt.Fprintf(w, "token login: privileges=%d\n", privileges)
	if err := desk.Logout(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(w, "logout")

	if err := desk.Register(ctx, "juan", "Juan Pérez", "1234", 2); err != nil && !errors.Is(err, helpdesk.ErrUserExists) {
		return err
	}
	tickets := []struct {
		user, title, description string
		priority                 int
	}{
		{"antonio", "Computer will not start", "No power", 1},
		{"juan", "Redis is down", "Connection refused", 3},
		{"antonio", "No internet", "Network unreachable", 2},
	}
	fmt.Fprintln(w, "\ncreate tickets")
	for _, t := range tickets {
		if _, err := desk.CreateTicket(ctx, t.user, t.title, t.description, t.priority); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nattend tickets")
	for {
		ticket, ok, err := desk.AttendTicket(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "no pending tickets")
			return nil
		}
		fmt.Fprintf(w, "ticket %d from %s (priority %d): %s\n", ticket.ID, ticket.Username, ticket.Priority, ticket.Title)
	}
}

func printUser(ctx context.Context, w io.Writer, desk *helpdesk.Desk, username string) error {
	user, ok, err := desk.UserInfo(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return helpdesk.ErrUserNotFound
	}
	fmt.Fprintf(w, "user: %s (%s) privileges=%d\n", user.Username, user.FullName, user.Privileges)
	return nil
}

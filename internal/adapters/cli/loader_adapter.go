package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/doulaboard/internal/core/identity"
	"github.com/example/doulaboard/internal/ports/primary"
)

// Router is the host routing the loader adapter drives.
type Router interface {
	Push(path string)
	Take() (string, bool)
	ClientPath(id string) string
	ClientID(path string) string
}

// LoaderAdapter drives a deep-link session from the terminal and renders the profile panel.
type LoaderAdapter struct {
	session primary.DeepLinkSession
	router  Router
	out     io.Writer
}

// NewLoaderAdapter creates a new LoaderAdapter.
func NewLoaderAdapter(session primary.DeepLinkSession, router Router, out io.Writer) *LoaderAdapter {
	return &LoaderAdapter{
		session: session,
		router:  router,
		out:     out,
	}
}

// Open follows a deep link to clientID and renders the result.
func (a *LoaderAdapter) Open(ctx context.Context, clientID string) (primary.ProfileView, error) {
	a.router.Push(a.router.ClientPath(clientID))
	view, err := a.session.Open(ctx, clientID)
	if err != nil {
		return view, fmt.Errorf("failed to open client %s: %w", clientID, err)
	}
	view = a.settle(ctx, view)
	a.render(view)
	return view, nil
}

// Browse reads commands from in until EOF or "quit". Each line is a client
// id, a route path, or one of: close, clear, refresh.
func (a *LoaderAdapter) Browse(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		var (
			view primary.ProfileView
			err  error
		)
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == "close":
			view = a.session.Dismiss(ctx)
		case line == "clear":
			a.router.Push(a.router.ClientPath(""))
			view = a.session.Navigate(ctx, "")
		case line == "refresh":
			view, err = a.session.Refresh(ctx)
		case strings.HasPrefix(line, "/"):
			a.router.Push(line)
			a.session.Navigate(ctx, a.router.ClientID(line))
			view, err = a.session.Wait(ctx)
		default:
			a.router.Push(a.router.ClientPath(line))
			view, err = a.session.Open(ctx, line)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(a.out, "%s %v\n", color.New(color.FgYellow).Sprint("!"), err)
		}
		a.render(a.settle(ctx, view))
	}
}

// settle applies navigations the loader requested, such as returning to the listing.
func (a *LoaderAdapter) settle(ctx context.Context, view primary.ProfileView) primary.ProfileView {
	for {
		path, ok := a.router.Take()
		if !ok {
			return view
		}
		fmt.Fprintf(a.out, "→ %s\n", path)
		view = a.session.Navigate(ctx, a.router.ClientID(path))
	}
}

func (a *LoaderAdapter) render(view primary.ProfileView) {
	switch {
	case view.Fetching:
		fmt.Fprintf(a.out, "Loading client %s...\n", view.RouteClientID)
	case view.NotFound():
		fmt.Fprintf(a.out, "%s\n", color.New(color.FgRed, color.Bold).Sprint("Client not found"))
		fmt.Fprintf(a.out, "  No client matches %q.\n", view.MissingClientID)
	case view.PanelOpen && view.Record != nil:
		a.renderProfile(view.Record)
	default:
		fmt.Fprintln(a.out, "Showing client list.")
	}
}

func (a *LoaderAdapter) renderProfile(r identity.Record) {
	c, err := identity.Canonicalize(r)
	if err != nil {
		fmt.Fprintf(a.out, "%s unrecognized client payload: %v\n", color.New(color.FgYellow).Sprint("!"), err)
		return
	}
	fmt.Fprintf(a.out, "\nClient: %s\n", color.New(color.FgHiMagenta).Sprint(c.DisplayName()))
	fmt.Fprintf(a.out, "ID:      %s\n", c.ID)
	printField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(a.out, "%-8s %s\n", label+":", value)
		}
	}
	printField("Email", c.Email)
	printField("Phone", c.Phone)
	printField("Status", c.Status)
	printField("Service", c.Service)
	printField("Due", c.DueDate)
	fmt.Fprintln(a.out)
}

package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"

	"github.com/example/doulaboard/internal/core/effects"
	"github.com/example/doulaboard/internal/ports/secondary"
)

func TestToastWriter_Notify(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name string
		n    secondary.Notification
		want string
	}{
		{
			name: "error toast",
			n:    secondary.Notification{Level: effects.LevelError, Title: "Client not found", Message: `No client matches "x".`},
			want: "✗ Client not found: No client matches \"x\".\n",
		},
		{
			name: "info without message",
			n:    secondary.Notification{Level: effects.LevelInfo, Title: "List refreshed"},
			want: "ℹ List refreshed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewToastWriter(&buf, nil).Notify(context.Background(), tt.n)
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouter_PendingNavigations(t *testing.T) {
	r := NewRouter("", nil)
	r.Push(r.ClientPath("abc"))

	if _, ok := r.Take(); ok {
		t.Fatal("Take() on empty queue returned a route")
	}

	r.Navigate(context.Background(), "/clients")
	if got := r.Current(); got != "/clients/abc" {
		t.Errorf("Current() before Take = %q, want /clients/abc", got)
	}
	path, ok := r.Take()
	if !ok || path != "/clients" {
		t.Errorf("Take() = %q, %v", path, ok)
	}
	if got := r.Current(); got != "/clients" {
		t.Errorf("Current() = %q, want /clients", got)
	}
}

func TestRouter_ClientPathRoundTrip(t *testing.T) {
	r := NewRouter("/clients", nil)

	for _, id := range []string{"abc123", "form/7", "a?b#c", "with space"} {
		path := r.ClientPath(id)
		if got := r.ClientID(path); got != id {
			t.Errorf("ClientID(ClientPath(%q)) = %q (path %q)", id, got, path)
		}
	}
	if got := r.ClientPath("form/7"); got != "/clients/form%2F7" {
		t.Errorf("ClientPath(form/7) = %q, want /clients/form%%2F7", got)
	}
}

func TestRouter_ClientID(t *testing.T) {
	r := NewRouter("/dashboard/clients/", nil)

	tests := []struct {
		path string
		want string
	}{
		{"/dashboard/clients", ""},
		{"/dashboard/clients/", ""},
		{"/dashboard/clients/abc123", "abc123"},
		{"/dashboard/clients/abc123/notes", "abc123"},
		{"/dashboard/clients/abc123?tab=notes", "abc123"},
		{"/elsewhere/abc123", ""},
		{"/dashboard/clients/form%2F7", "form/7"},
		{"/dashboard/clients/a%3Fb%23c?tab=notes", "a?b#c"},
		{"/dashboard/clients/bad%zz", "bad%zz"},
	}

	for _, tt := range tests {
		if got := r.ClientID(tt.path); got != tt.want {
			t.Errorf("ClientID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

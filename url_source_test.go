package nextdns_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Travis-Britz/nextdns"
)

func readAll(t *testing.T, src nextdns.Source) string {
	t.Helper()
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open(%s) failed: %s", src, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("error reading %s: %s", src, err)
	}
	return string(b)
}

func TestOpenSource(t *testing.T) {
	tests := []struct {
		location string
		isURL    bool
	}{
		{"https://example.com/list.txt", true},
		{"HTTP://example.com/list.txt", true},
		{"list.txt", false},
		{"/etc/hosts", false},
		{"ftp://example.com/list.txt", false},
	}
	for _, tt := range tests {
		_, isURL := nextdns.OpenSource(tt.location).(nextdns.URLSource)
		if isURL != tt.isURL {
			t.Fatalf("OpenSource(%q): expected URL source %t; got %t", tt.location, tt.isURL, isURL)
		}
	}
}

func TestURLSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/block.txt" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Errorf("Expected a User-Agent header")
		}
		io.WriteString(w, "ads.example.com\n# tracking\ntrack.example.com\n")
	}))
	defer srv.Close()

	src := nextdns.OpenSource(srv.URL + "/block.txt")
	if expected, got := "ads.example.com\n# tracking\ntrack.example.com\n", readAll(t, src); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	_, err := nextdns.OpenSource(srv.URL + "/missing.txt").Open(context.Background())
	var sue *nextdns.SourceUnreadableError
	if !errors.As(err, &sue) {
		t.Fatalf("Expected *SourceUnreadableError; got %v", err)
	}
}

func TestURLSourceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := nextdns.URLSource(url).Open(context.Background())
	var sue *nextdns.SourceUnreadableError
	if !errors.As(err, &sue) {
		t.Fatalf("Expected *SourceUnreadableError; got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte("bad.com\n"), 0644); err != nil {
		t.Fatalf("error writing list: %s", err)
	}
	if expected, got := "bad.com\n", readAll(t, nextdns.OpenSource(path)); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	_, err := nextdns.FileSource(path + ".missing").Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected a not-exist error; got %v", err)
	}
}

func TestFromDomains(t *testing.T) {
	if expected, got := "a.com\nb.com", readAll(t, nextdns.FromDomains("a.com", "b.com")); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
}

func TestMultiSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte("a.com"), 0644); err != nil {
		t.Fatalf("error writing list: %s", err)
	}
	src := nextdns.MultiSource{nextdns.OpenSource(path), nextdns.FromDomains("b.com")}
	if expected, got := "a.com\nb.com\n", readAll(t, src); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	broken := nextdns.MultiSource{nextdns.FromDomains("b.com"), nextdns.FileSource(path + ".missing")}
	_, err := broken.Open(context.Background())
	var sue *nextdns.SourceUnreadableError
	if !errors.As(err, &sue) {
		t.Fatalf("Expected *SourceUnreadableError; got %v", err)
	}
}

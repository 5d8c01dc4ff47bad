package fetch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/krisalay/routecache/fetch"
)

func TestGetSendsHeadersAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("unexpected user agent %q", ua)
		}
		c, err := r.Cookie("NEXT_LOCALE")
		if err != nil || c.Value != "en" {
			t.Errorf("missing locale cookie: %v", err)
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := fetch.NewClient("test-agent", time.Second)
	body, err := c.Get(context.Background(), srv.URL, fetch.WithCookie("NEXT_LOCALE", "en"))
	if err != nil || string(body) != "ok" {
		t.Fatalf("unexpected %q, %v", body, err)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetch.NewClient("", time.Second).Get(context.Background(), srv.URL)

	var se *fetch.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"page":1}` {
			t.Errorf("unexpected body %s", body)
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := fetch.NewClient("", time.Second).PostJSON(context.Background(), srv.URL, map[string]int{"page": 1}, &out)
	if err != nil || !out.OK {
		t.Fatalf("unexpected %+v, %v", out, err)
	}
}

func TestOversizedBodyIsAnError(t *testing.T) {
	chunk := strings.Repeat("x", 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 17; i++ {
			io.WriteString(w, chunk)
		}
	}))
	defer srv.Close()

	body, err := fetch.NewClient("", 10*time.Second).Get(context.Background(), srv.URL)
	if !errors.Is(err, fetch.ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %d bytes, %v", len(body), err)
	}
	if body != nil {
		t.Fatalf("expected no body, got %d bytes", len(body))
	}
}

func TestBodyAtLimitIsAccepted(t *testing.T) {
	chunk := strings.Repeat("x", 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 16; i++ {
			io.WriteString(w, chunk)
		}
	}))
	defer srv.Close()

	body, err := fetch.NewClient("", 10*time.Second).Get(context.Background(), srv.URL)
	if err != nil || len(body) != 16<<20 {
		t.Fatalf("unexpected %d bytes, %v", len(body), err)
	}
}

func TestRestrictedClientRefusesRedirectOffAllowedHosts(t *testing.T) {
	inner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "secret")
	}))
	defer inner.Close()

	outer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, inner.URL, http.StatusFound)
	}))
	defer outer.Close()

	outerHost := strings.TrimPrefix(outer.URL, "http://")
	c := fetch.NewClient("", time.Second).Restrict(func(host string) bool { return host == outerHost })

	if _, err := c.Get(context.Background(), outer.URL); !errors.Is(err, fetch.ErrHostNotAllowed) {
		t.Fatalf("expected ErrHostNotAllowed, got %v", err)
	}
}

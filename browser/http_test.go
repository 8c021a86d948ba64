package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kayushkin/instakit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newProvider serves an authorize endpoint that shows a consent form and
// redirects to the callback with the token in the fragment once approved.
func newProvider(t *testing.T, callbackHits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("response_type") != "token" || q.Get("client_id") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodPost {
			http.Redirect(w, r, q.Get("redirect_uri")+"#access_token=ABC123&extra=1", http.StatusFound)
			return
		}
		if _, err := r.Cookie("session"); err == nil {
			http.Redirect(w, r, q.Get("redirect_uri")+"#access_token=FROMCOOKIE", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "1", Path: "/"})
		w.Write([]byte(`<form method="post"><button>Authorize</button></form>`))
	})
	mux.HandleFunc("/cb", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(callbackHits, 1)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func approve(ctx context.Context, resp *http.Response, body []byte) (*http.Request, error) {
	if !strings.Contains(string(body), "<form") {
		return nil, nil
	}
	return http.NewRequestWithContext(ctx, http.MethodPost, resp.Request.URL.String(), nil)
}

func newClient(srv *httptest.Server, b instakit.Browser, clearCookies bool) *instakit.Client {
	cfg := &instakit.Config{
		Credentials:  instakit.Credentials{ClientID: "client-123", RedirectURI: srv.URL + "/cb"},
		AuthorizeURL: srv.URL + "/oauth/authorize/",
		BaseURL:      srv.URL,
		ClearCookies: clearCookies,
	}
	return instakit.New(cfg, instakit.NewMemoryStore(), b)
}

func TestHTTPBrowserInterceptsTokenRedirect(t *testing.T) {
	var hits int32
	srv := newProvider(t, &hits)
	b := NewHTTP(srv.Client().Transport)
	b.OnPage = approve

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tok, err := newClient(srv, b, false).Login(ctx, instakit.ScopeBasic, instakit.ScopeComments)
	require.NoError(t, err)
	assert.Equal(t, "ABC123&extra=1", tok.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&hits), "token redirect must not be loaded")
}

func TestHTTPBrowserReusesSessionUnlessCleared(t *testing.T) {
	var hits int32
	srv := newProvider(t, &hits)
	b := NewHTTP(srv.Client().Transport)
	b.OnPage = approve
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := newClient(srv, b, false).Login(ctx, instakit.ScopeBasic)
	require.NoError(t, err)

	tok, err := newClient(srv, b, false).Login(ctx, instakit.ScopeBasic)
	require.NoError(t, err)
	assert.Equal(t, "FROMCOOKIE", tok.AccessToken)

	tok, err = newClient(srv, b, true).Login(ctx, instakit.ScopeBasic)
	require.NoError(t, err)
	assert.Equal(t, "ABC123&extra=1", tok.AccessToken)
}

func TestHTTPBrowserBadRequest(t *testing.T) {
	var hits int32
	srv := newProvider(t, &hits)
	b := NewHTTP(srv.Client().Transport)
	cfg := &instakit.Config{
		Credentials:  instakit.Credentials{ClientID: "client-123", RedirectURI: srv.URL + "/cb"},
		AuthorizeURL: srv.URL + "/oauth/authorize/?client_id=&response_type=code",
	}
	// the preset empty client_id shadows the real one, so the provider rejects it
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := instakit.New(cfg, instakit.NewMemoryStore(), b).Login(ctx, instakit.ScopeBasic)
	assert.ErrorIs(t, err, instakit.ErrInvalidRequest)
}

func TestHTTPBrowserStuckPageEndsWithContext(t *testing.T) {
	var hits int32
	srv := newProvider(t, &hits)
	b := NewHTTP(srv.Client().Transport)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := newClient(srv, b, false).Login(ctx, instakit.ScopeBasic)
	assert.ErrorIs(t, err, instakit.ErrCancelled)
}

func TestHTTPBrowserUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	b := NewHTTP(nil)
	cfg := &instakit.Config{
		Credentials:  instakit.Credentials{ClientID: "client-123", RedirectURI: "https://redirect.example/cb"},
		AuthorizeURL: addr + "/oauth/authorize/",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := instakit.New(cfg, instakit.NewMemoryStore(), b).Login(ctx)
	assert.ErrorIs(t, err, instakit.ErrCancelled)
}

func TestHTTPBrowserPassesRawFragment(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/authorize/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", r.URL.Query().Get("redirect_uri")+"#access_token=abc|def^x")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/relative", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/cb#access_token=rel|tok^1")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/cb", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tok, err := newClient(srv, NewHTTP(srv.Client().Transport), false).Login(ctx, instakit.ScopeBasic)
	require.NoError(t, err)
	assert.Equal(t, "abc|def^x", tok.AccessToken)

	cfg := &instakit.Config{
		Credentials:  instakit.Credentials{ClientID: "client-123", RedirectURI: srv.URL + "/cb"},
		AuthorizeURL: srv.URL + "/relative",
	}
	tok, err = instakit.New(cfg, instakit.NewMemoryStore(), NewHTTP(srv.Client().Transport)).Login(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rel|tok^1", tok.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

// Package browser provides instakit.Browser implementations for hosts
// without an embedded web view.
package browser

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/kayushkin/instakit"
)

const maxNavigations = 20

// PageHandler acts on a page that did not redirect, the way a user would:
// it returns the next request to send (a submitted form, a followed
// link), or nil to stay on the page until dismissed.
type PageHandler func(ctx context.Context, resp *http.Response, body []byte) (*http.Request, error)

// HTTP is a headless browser. It loads the authorize URL with net/http and
// hands every redirect to the delegate before following it, so a redirect
// carrying the token is never requested.
type HTTP struct {
	// OnPage is called for pages that do not redirect. Optional.
	OnPage PageHandler

	mu     sync.Mutex
	jar    *cookiejar.Jar
	client *http.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHTTP returns a headless browser using transport, or the default
// transport when nil.
func NewHTTP(transport http.RoundTripper) *HTTP {
	jar, _ := cookiejar.New(nil)
	b := &HTTP{jar: jar}
	b.client = &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return b
}

// ClearCookies forgets all cookies. cookiejar cannot drop a single
// domain, so the whole jar is replaced.
func (b *HTTP) ClearCookies(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jar, _ = cookiejar.New(nil)
	b.client.Jar = b.jar
}

func (b *HTTP) Present(ctx context.Context, authURL string, d instakit.NavigationDelegate) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		cancel()
		return err
	}
	go func() {
		defer close(done)
		b.browse(ctx, authURL, req, d)
	}()
	return nil
}

// Dismiss stops browsing and waits for the page loop to exit.
func (b *HTTP) Dismiss() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// browse follows navigations from req. target is the address as the page
// gave it, passed to the delegate unnormalized.
func (b *HTTP) browse(ctx context.Context, target string, req *http.Request, d instakit.NavigationDelegate) {
	for i := 0; i < maxNavigations && req != nil; i++ {
		if d.DecideNavigation(target) == instakit.PolicyCancel {
			return
		}
		resp, err := b.client.Do(req)
		if err != nil {
			// a real browser would show an error page the user closes
			if ctx.Err() == nil {
				d.Dismissed()
			}
			return
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if d.ReceiveStatus(resp.StatusCode) == instakit.PolicyCancel {
			return
		}
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			if raw := resp.Header.Get("Location"); raw != "" {
				next, err := redirectTarget(resp.Request.URL, raw)
				if err != nil {
					d.Dismissed()
					return
				}
				req, err = http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
				if err != nil {
					d.Dismissed()
					return
				}
				target = next
				continue
			}
		}

		req = nil
		if b.OnPage != nil {
			next, err := b.OnPage(ctx, resp, body)
			if err != nil {
				d.Dismissed()
				return
			}
			if next != nil {
				req = next.WithContext(ctx)
				target = req.URL.String()
			}
		}
	}
	// stuck on a page: wait for the user to give up
	<-ctx.Done()
}

// redirectTarget keeps an absolute Location byte for byte and resolves a
// relative one against base. The fragment is never re-encoded.
func redirectTarget(base *url.URL, location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return location, nil
	}
	fragment := ""
	if i := strings.IndexByte(location, '#'); i >= 0 {
		fragment = location[i:]
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment, resolved.RawFragment = "", ""
	return resolved.String() + fragment, nil
}

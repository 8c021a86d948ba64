package instakit

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// tokenMarker precedes the access token in the redirect URL.
const tokenMarker = "#access_token="

// NavigationPolicy is a delegate's answer to a browser event.
type NavigationPolicy int

const (
	PolicyAllow NavigationPolicy = iota
	PolicyCancel
)

// NavigationDelegate receives the browser's events during a login.
// Implementations must be safe to call from the browser's goroutine.
type NavigationDelegate interface {
	// DecideNavigation is asked before every navigation, redirects included.
	DecideNavigation(rawURL string) NavigationPolicy
	// ReceiveStatus is told the status of every HTTP response loaded.
	ReceiveStatus(code int) NavigationPolicy
	// Dismissed reports that the user closed the browser.
	Dismissed()
}

// Browser presents the provider's login pages. Present must return
// promptly; events are delivered to d until Dismiss is called.
type Browser interface {
	Present(ctx context.Context, authURL string, d NavigationDelegate) error
	Dismiss()
}

// CookieClearer is implemented by browsers that can forget a domain's cookies.
type CookieClearer interface {
	ClearCookies(domain string)
}

// State of a LoginFlow.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s >= StateSucceeded }

// Result is the single outcome of a login attempt.
type Result struct {
	Token *oauth2.Token
	Err   error
}

// LoginFlow intercepts navigations of one login attempt looking for the
// redirect carrying the token. It delivers exactly one Result and is then
// done; a new attempt needs a new flow.
type LoginFlow struct {
	mu      sync.Mutex
	state   State
	request *AuthorizationRequest
	results chan Result
}

func NewLoginFlow(req *AuthorizationRequest) *LoginFlow {
	return &LoginFlow{request: req, results: make(chan Result, 1)}
}

// Start moves the flow to loading and presents the authorize URL.
func (f *LoginFlow) Start(ctx context.Context, b Browser) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return &Error{Kind: KindInvalidRequest, Op: "login", Message: "login flow already started"}
	}
	f.state = StateLoading
	f.mu.Unlock()
	return b.Present(ctx, f.request.AuthURL.String(), f)
}

// Results yields the flow's single Result.
func (f *LoginFlow) Results() <-chan Result { return f.results }

// State returns the current state.
func (f *LoginFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *LoginFlow) DecideNavigation(rawURL string) NavigationPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Terminal() {
		return PolicyCancel
	}
	i := strings.Index(rawURL, tokenMarker)
	if i < 0 {
		return PolicyAllow
	}
	// everything after the first marker, trailing fragment params included
	access := rawURL[i+len(tokenMarker):]
	f.finish(StateSucceeded, Result{Token: &oauth2.Token{AccessToken: access, TokenType: "bearer"}})
	return PolicyCancel
}

func (f *LoginFlow) ReceiveStatus(code int) NavigationPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Terminal() {
		return PolicyCancel
	}
	if code != http.StatusBadRequest {
		return PolicyAllow
	}
	f.finish(StateFailed, Result{Err: &Error{Kind: KindInvalidRequest, Op: "login", Code: code}})
	return PolicyCancel
}

func (f *LoginFlow) Dismissed() {
	f.Cancel(nil)
}

// Cancel ends a pending flow as cancelled, wrapping cause if given.
func (f *LoginFlow) Cancel(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Terminal() {
		return
	}
	f.finish(StateCancelled, Result{Err: &Error{Kind: KindCancelled, Op: "login", Err: cause}})
}

// finish must be called with f.mu held.
func (f *LoginFlow) finish(s State, r Result) {
	f.state = s
	f.results <- r
}

package instakit

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// AuthorizationRequest is built for one login attempt and discarded after.
type AuthorizationRequest struct {
	AuthURL *url.URL
	Scopes  []Scope
}

// NewAuthorizationRequest builds the implicit-grant URL on the authorize
// endpoint: client_id, redirect_uri, response_type=token and the
// space-joined scope list, which encodes as "basic+comments".
func NewAuthorizationRequest(authorizeURL string, creds Credentials, scopes []Scope) (*AuthorizationRequest, error) {
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	conf := &oauth2.Config{
		ClientID:    creds.ClientID,
		RedirectURL: creds.RedirectURI,
		Scopes:      names,
		Endpoint:    oauth2.Endpoint{AuthURL: authorizeURL},
	}
	raw := conf.AuthCodeURL("", oauth2.SetAuthURLParam("response_type", "token"))
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse authorize url: %w", err)
	}
	return &AuthorizationRequest{AuthURL: u, Scopes: scopes}, nil
}

package instakit

// Credentials identify the registered application to the provider.
type Credentials struct {
	ClientID    string `json:"client_id" env:"INSTAKIT_CLIENT_ID"`
	RedirectURI string `json:"redirect_uri" env:"INSTAKIT_REDIRECT_URI"`
}

// Valid reports whether both the client id and the redirect URI are set.
func (c Credentials) Valid() bool {
	return c.ClientID != "" && c.RedirectURI != ""
}

// Scope is a permission requested at login.
type Scope string

const (
	ScopeBasic         Scope = "basic"
	ScopePublicContent Scope = "public_content"
	ScopeFollowerList  Scope = "follower_list"
	ScopeComments      Scope = "comments"
	ScopeRelationships Scope = "relationships"
	ScopeLikes         Scope = "likes"
)

// ParseScopes converts raw scope names, dropping empties and duplicates.
func ParseScopes(names []string) []Scope {
	seen := make(map[string]bool, len(names))
	scopes := make([]Scope, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		scopes = append(scopes, Scope(n))
	}
	return scopes
}

package oauth

import "context"

// Claims holds the normalized identity claims returned by an OAuth provider.
// All fields are verified server-side; never trust client-supplied values.
// Profile fields (GivenName, FamilyName, Picture) are optional. Nonce echoes
// the nonce embedded in the authorization request and must be validated by
// the caller against the stored value.
type Claims struct {
	Sub           string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
	Nonce         string
}

// Provider is an OAuth2 identity provider. Implementations handle
// provider-specific auth URLs, code exchange, and token verification.
// PKCE (RFC 7636) is required: callers pass the code_challenge to AuthCodeURL
// and the matching code_verifier to Exchange.
type Provider interface {
	// Name returns the provider identifier used in URLs and persisted records.
	Name() string

	// AuthCodeURL returns the provider redirect URL with state, nonce, and
	// PKCE code_challenge embedded.
	AuthCodeURL(state, codeChallenge, nonce string) string

	// Exchange exchanges the authorization code for verified identity claims.
	// The code_verifier must match the code_challenge passed to AuthCodeURL.
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}

// Flow identifiers. Login and signup use distinct callback URLs, so each
// provider is registered once per flow with the matching redirect URI.
const (
	FlowLogin  = "login"
	FlowSignup = "signup"
)

type registryKey struct {
	name string
	flow string
}

// Registry resolves providers by name and flow. An unconfigured provider is
// a BadRequest at flow start, never a panic.
type Registry struct {
	providers map[registryKey]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[registryKey]Provider)}
}

// Register adds a provider for one flow under its own name.
func (r *Registry) Register(flow string, p Provider) {
	r.providers[registryKey{name: p.Name(), flow: flow}] = p
}

// Get returns the provider registered under name for the given flow.
func (r *Registry) Get(name, flow string) (Provider, bool) {
	p, ok := r.providers[registryKey{name: name, flow: flow}]
	return p, ok
}

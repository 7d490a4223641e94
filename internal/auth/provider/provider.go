package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// AuthRequest carries everything the login handler needs to redirect the
// browser to the IDP's authorization endpoint.
type AuthRequest struct {
	URL   string // fully-formed authorization URL
	State string // opaque state echoed back in the callback
	Nonce string // OIDC nonce bound into the identity token request
}

// TokenBundle is the normalized token response from the IDP.
type TokenBundle struct {
	AccessToken string
	TokenType   string
	RawIDToken  string // empty when the IDP returned no identity token
}

// AuthError is an authorization failure reported by the IDP itself,
// e.g. the user denied consent. Its message is safe to show to users.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Client defines the contract every external identity provider must
// implement. Implementations return identity facts only and must not
// perform user creation, linking, or session management.
type Client interface {
	// Name returns the provider identifier (e.g. "google", "github").
	Name() string

	// ClientID returns the OAuth2 client ID registered with the IDP.
	// Together with the IDP's subject it forms the federated identity key.
	ClientID() string

	// AuthorizationRequest builds the authorization URL for the given
	// redirect URI and opaque state, generating a fresh OIDC nonce.
	AuthorizationRequest(ctx context.Context, redirectURI, state string) (*AuthRequest, error)

	// Exchange exchanges the authorization code for the IDP's token
	// bundle. The redirect URI must match the one used at initiate time.
	Exchange(ctx context.Context, code, redirectURI string) (*TokenBundle, error)

	// ParseIDToken verifies the identity token in the bundle against the
	// original nonce and returns its claims.
	ParseIDToken(ctx context.Context, bundle *TokenBundle, nonce string) (map[string]any, error)
}

// GenerateNonce generates a cryptographically random OIDC nonce.
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("provider: generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

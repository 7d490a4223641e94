package generic

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/auth/provider"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider implements OAuth + OIDC authentication against any IDP that
// supports discovery (keycloak, auth0, azure, ...). The provider name is
// configuration-supplied and selects this client at request time.
type Provider struct {
	name         string
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	verifier     *oidc.IDTokenVerifier
}

// New initializes an OIDC provider using discovery. issuer must be the
// IDP's issuer URL, e.g. http://localhost:8081/realms/authgate
func New(
	ctx context.Context,
	name string,
	issuer string,
	clientID string,
	clientSecret string,
) (*Provider, error) {

	if name == "" || issuer == "" || clientID == "" {
		return nil, errors.New("oidc provider config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init oidc provider %s: %w", name, err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return &Provider{
		name:         name,
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     oidcProvider.Endpoint(),
		verifier:     verifier,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return p.name
}

// ClientID returns the OAuth2 client ID registered with the IDP.
func (p *Provider) ClientID() string {
	return p.clientID
}

func (p *Provider) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     p.endpoint,
		Scopes: []string{
			oidc.ScopeOpenID,
			"email",
			"profile",
		},
	}
}

// AuthorizationRequest builds the authorization URL with a fresh nonce.
func (p *Provider) AuthorizationRequest(
	ctx context.Context,
	redirectURI string,
	state string,
) (*provider.AuthRequest, error) {

	nonce, err := provider.GenerateNonce()
	if err != nil {
		return nil, err
	}

	url := p.config(redirectURI).AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oidc.Nonce(nonce),
	)

	return &provider.AuthRequest{
		URL:   url,
		State: state,
		Nonce: nonce,
	}, nil
}

func (p *Provider) Exchange(
	ctx context.Context,
	code string,
	redirectURI string,
) (*provider.TokenBundle, error) {

	token, err := p.config(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return nil, &provider.AuthError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
			}
		}
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)

	return &provider.TokenBundle{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		RawIDToken:  rawIDToken,
	}, nil
}

func (p *Provider) ParseIDToken(
	ctx context.Context,
	bundle *provider.TokenBundle,
	nonce string,
) (map[string]any, error) {

	idToken, err := p.verifier.Verify(ctx, bundle.RawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("%s id_token nonce mismatch", p.name)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}

	return claims, nil
}

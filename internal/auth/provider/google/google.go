package google

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/auth/provider"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	providerName = "google"
	issuerURL    = "https://accounts.google.com"
)

type Provider struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	verifier     *oidc.IDTokenVerifier
}

func New(ctx context.Context, clientID, clientSecret string) (*Provider, error) {

	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return &Provider{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     oidcProvider.Endpoint(),
		verifier:     verifier,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// ClientID returns the OAuth2 client ID registered with Google.
func (p *Provider) ClientID() string {
	return p.clientID
}

// config builds the per-request oauth2 config. The redirect URI is
// caller-supplied so the exchange uses exactly the URI that initiated
// the flow.
func (p *Provider) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     p.endpoint,
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
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
		return nil, fmt.Errorf("google token exchange failed: %w", err)
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
		return nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	if idToken.Nonce != nonce {
		return nil, errors.New("google id_token nonce mismatch")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}

	return claims, nil
}

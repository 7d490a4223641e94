package github

import (
	"context"
	"errors"
	"fmt"

	"authgate/internal/auth/provider"

	"golang.org/x/oauth2"
)

const providerName = "github"

// GitHub is plain OAuth2, not OIDC: no discovery document and no
// id_token in the token response. The endpoints are fixed.
var endpoint = oauth2.Endpoint{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
}

type Provider struct {
	clientID     string
	clientSecret string
}

func New(clientID, clientSecret string) (*Provider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("github oauth config missing required fields")
	}
	return &Provider{
		clientID:     clientID,
		clientSecret: clientSecret,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// ClientID returns the OAuth2 client ID registered with GitHub.
func (p *Provider) ClientID() string {
	return p.clientID
}

func (p *Provider) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     endpoint,
		Scopes:       []string{"read:user", "user:email"},
	}
}

// AuthorizationRequest builds the authorization URL. A nonce is still
// generated so the flow cookie contract is uniform across providers.
func (p *Provider) AuthorizationRequest(
	ctx context.Context,
	redirectURI string,
	state string,
) (*provider.AuthRequest, error) {

	nonce, err := provider.GenerateNonce()
	if err != nil {
		return nil, err
	}

	url := p.config(redirectURI).AuthCodeURL(state)

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
		return nil, fmt.Errorf("github token exchange failed: %w", err)
	}

	// GitHub never returns an id_token; the caller surfaces this as a
	// federation-unsupported rejection.
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
	return nil, errors.New("github does not issue identity tokens")
}

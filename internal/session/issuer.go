package session

import (
	"context"
	"time"
)

// TokenPair is the pair of local session credentials minted after a
// successful login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints access and refresh tokens for a resolved local user.
type Issuer struct {
	store      Store
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(store Store, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pair := &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(i.accessTTL),
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(i.refreshTTL),
	}

	if err := i.store.Create(ctx, Record{
		Token:     access,
		Kind:      KindAccess,
		UserID:    userID,
		ExpiresAt: pair.AccessExpiresAt,
	}); err != nil {
		return nil, err
	}

	if err := i.store.Create(ctx, Record{
		Token:     refresh,
		Kind:      KindRefresh,
		UserID:    userID,
		ExpiresAt: pair.RefreshExpiresAt,
	}); err != nil {
		return nil, err
	}

	return pair, nil
}

// Revoke removes both tokens. Best-effort: a token that is already gone
// is not an error.
func (i *Issuer) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if err := i.store.Delete(ctx, KindAccess, accessToken); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := i.store.Delete(ctx, KindRefresh, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

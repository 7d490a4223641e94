package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Record represents one minted token. It intentionally stores only
// identity pointers, not auth state.
type Record struct {
	Token     string    `json:"token"`
	Kind      TokenKind `json:"kind"`
	UserID    string    `json:"user_id"`    // references users.id
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry time
}

// Store defines how token records are stored and retrieved.
// Implementations (e.g., Redis) must remain stateless and opaque.
type Store interface {
	Create(ctx context.Context, r Record) error
	Get(ctx context.Context, kind TokenKind, token string) (*Record, error)
	Delete(ctx context.Context, kind TokenKind, token string) error
}

// GenerateToken generates a cryptographically secure opaque token.
// 32 bytes = 256 bits of entropy.
func GenerateToken() (string, error) {

	const size = 32 // 256 bits

	b := make([]byte, size)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("session: failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil

}

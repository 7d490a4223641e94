package user

import (
	"context"

	"github.com/google/uuid"
)

// InUse reports, per field, whether another stored user already owns the
// candidate value.
type InUse struct {
	Email    bool
	Username bool
}

// Tx is a transactional unit of work over the user store. All reads and
// writes within one reconciliation run against the same Tx so concurrent
// completions for the same new identity cannot both observe "absent".
type Tx interface {
	// GetByFederatedIdentity returns the user for the given OAuth2
	// client ID and IDP subject, or nil when absent.
	GetByFederatedIdentity(ctx context.Context, oauth2ClientID, oauth2UserID string) (*User, error)

	// EmailOrUsernameInUse determines in one pass whether any stored
	// user already has the candidate email or username. The username
	// comparison is skipped when username is nil.
	EmailOrUsernameInUse(ctx context.Context, email string, username *string) (InUse, error)

	// InsertFederated creates a new user with the given role and returns
	// it with the role attached. Duplicate-key failures surface as
	// *ConflictError.
	InsertFederated(ctx context.Context, attrs FederatedAttrs, role Role) (*User, error)

	// UpdateProfile rewrites email, username and profile picture URL for
	// an existing user and returns the record with its role attached.
	// Duplicate-key failures surface as *ConflictError.
	UpdateProfile(ctx context.Context, id uuid.UUID, email string, username, pictureURL *string) (*User, error)
}

// Store exposes a scoped transactional unit of work.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

package reconciler

import (
	"context"
	"errors"

	"authgate/internal/auth"
	"authgate/internal/user"
)

// Reconciler maps a verified external identity to a local user record.
// It is the ONLY place where identity-to-user mapping logic lives.
type Reconciler interface {
	Resolve(ctx context.Context, oauth2ClientID string, identity *auth.Identity) (*user.User, error)
}

// StoreReconciler reconciles identities against the user store. Each
// resolution runs in a single transaction: existence check, uniqueness
// precheck and write are one atomic unit.
type StoreReconciler struct {
	store user.Store
}

func New(store user.Store) *StoreReconciler {
	return &StoreReconciler{store: store}
}

func (r *StoreReconciler) Resolve(
	ctx context.Context,
	oauth2ClientID string,
	identity *auth.Identity,
) (*user.User, error) {

	if identity == nil {
		return nil, errors.New("reconciler: identity is nil")
	}

	var resolved *user.User
	err := r.store.WithTx(ctx, func(tx user.Tx) error {
		existing, err := tx.GetByFederatedIdentity(ctx, oauth2ClientID, identity.ProviderUserID)
		if err != nil {
			return err
		}

		if existing == nil {
			if err := checkNotInUse(ctx, tx, identity); err != nil {
				return err
			}
			created, err := tx.InsertFederated(ctx, user.FederatedAttrs{
				OAuth2ClientID:    oauth2ClientID,
				OAuth2UserID:      identity.ProviderUserID,
				Email:             identity.Email,
				Username:          identity.Username,
				ProfilePictureURL: identity.ProfilePictureURL,
			}, user.RoleMember)
			if err != nil {
				return err
			}
			resolved = created
			return nil
		}

		if upToDate(existing, identity) {
			resolved = existing
			return nil
		}

		// The precheck deliberately does not exclude the current row;
		// see DESIGN.md.
		if err := checkNotInUse(ctx, tx, identity); err != nil {
			return err
		}
		updated, err := tx.UpdateProfile(
			ctx,
			existing.ID,
			identity.Email,
			identity.Username,
			identity.ProfilePictureURL,
		)
		if err != nil {
			return err
		}
		resolved = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// checkNotInUse fails with a field-naming conflict error when another
// account owns the candidate email or username. Email conflicts take
// priority when both occur.
func checkNotInUse(ctx context.Context, tx user.Tx, identity *auth.Identity) error {
	inUse, err := tx.EmailOrUsernameInUse(ctx, identity.Email, identity.Username)
	if err != nil {
		return err
	}
	if inUse.Email {
		return &user.ConflictError{Field: user.ConflictEmail, Value: identity.Email}
	}
	if inUse.Username && identity.Username != nil {
		return &user.ConflictError{Field: user.ConflictUsername, Value: *identity.Username}
	}
	return nil
}

func upToDate(u *user.User, identity *auth.Identity) bool {
	return u.Email == identity.Email &&
		equalPtr(u.Username, identity.Username) &&
		equalPtr(u.ProfilePictureURL, identity.ProfilePictureURL)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

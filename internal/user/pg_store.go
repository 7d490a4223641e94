package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"authgate/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PGStore is the canonical Postgres-backed user store.
type PGStore struct {
	db *db.DB
}

func NewPGStore(db *db.DB) *PGStore {
	return &PGStore{db: db}
}

// WithTx runs fn inside a serializable transaction. The store-level
// unique indexes are the second line of defense against two concurrent
// inserts for the same identity.
func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("user: begin tx: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("user: commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

const userColumns = `
	u.id, r.name, u.oauth2_client_id, u.oauth2_user_id,
	u.email, u.username, u.profile_picture_url
`

func (t *pgTx) GetByFederatedIdentity(
	ctx context.Context,
	oauth2ClientID string,
	oauth2UserID string,
) (*User, error) {

	row := t.tx.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN user_roles r ON r.id = u.user_role_id
		WHERE u.oauth2_client_id = $1
		  AND u.oauth2_user_id = $2
	`,
		oauth2ClientID,
		oauth2UserID,
	)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (t *pgTx) EmailOrUsernameInUse(
	ctx context.Context,
	email string,
	username *string,
) (InUse, error) {

	// One pass over matching rows; a NULL candidate username never
	// matches, which skips the username check.
	var inUse InUse
	err := t.tx.QueryRowContext(ctx, `
		SELECT
			COALESCE(MAX(CASE WHEN email = $1 THEN 1 ELSE 0 END), 0) = 1,
			COALESCE(MAX(CASE WHEN username = $2 THEN 1 ELSE 0 END), 0) = 1
		FROM users
		WHERE email = $1 OR username = $2
	`,
		email,
		nullableString(username),
	).Scan(&inUse.Email, &inUse.Username)

	if err != nil {
		return InUse{}, fmt.Errorf("user: uniqueness check: %w", err)
	}
	return inUse, nil
}

func (t *pgTx) InsertFederated(
	ctx context.Context,
	attrs FederatedAttrs,
	role Role,
) (*User, error) {

	var id uuid.UUID
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO users (
			user_role_id, oauth2_client_id, oauth2_user_id,
			email, username, profile_picture_url
		)
		VALUES (
			(SELECT id FROM user_roles WHERE name = $1),
			$2, $3, $4, $5, $6
		)
		RETURNING id
	`,
		string(role),
		attrs.OAuth2ClientID,
		attrs.OAuth2UserID,
		attrs.Email,
		nullableString(attrs.Username),
		nullableString(attrs.ProfilePictureURL),
	).Scan(&id)

	if err != nil {
		return nil, translateUniqueViolation(err, attrs.Email, attrs.Username)
	}

	return t.getByID(ctx, id)
}

func (t *pgTx) UpdateProfile(
	ctx context.Context,
	id uuid.UUID,
	email string,
	username *string,
	pictureURL *string,
) (*User, error) {

	_, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET email = $2,
		    username = $3,
		    profile_picture_url = $4,
		    updated_at = NOW()
		WHERE id = $1
	`,
		id,
		email,
		nullableString(username),
		nullableString(pictureURL),
	)

	if err != nil {
		return nil, translateUniqueViolation(err, email, username)
	}

	return t.getByID(ctx, id)
}

// getByID is the single joined read shared by all write paths, so every
// returned record carries its role.
func (t *pgTx) getByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN user_roles r ON r.id = u.user_role_id
		WHERE u.id = $1
	`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u              User
		role           string
		oauth2ClientID sql.NullString
		oauth2UserID   sql.NullString
		username       sql.NullString
		pictureURL     sql.NullString
	)

	err := row.Scan(
		&u.ID,
		&role,
		&oauth2ClientID,
		&oauth2UserID,
		&u.Email,
		&username,
		&pictureURL,
	)
	if err != nil {
		return nil, err
	}

	u.Role = Role(role)
	u.OAuth2ClientID = oauth2ClientID.String
	u.OAuth2UserID = oauth2UserID.String
	if username.Valid {
		u.Username = &username.String
	}
	if pictureURL.Valid {
		u.ProfilePictureURL = &pictureURL.String
	}
	return &u, nil
}

// translateUniqueViolation converts a Postgres duplicate-key failure
// into the same conflict error the uniqueness precheck produces.
func translateUniqueViolation(err error, email string, username *string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return fmt.Errorf("user: write failed: %w", err)
	}

	if pqErr.Constraint == "users_username_unique" && username != nil {
		return &ConflictError{Field: ConflictUsername, Value: *username}
	}
	return &ConflictError{Field: ConflictEmail, Value: email}
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

package user

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is the persisted account record. The (OAuth2ClientID,
// OAuth2UserID) pair identifies the federated identity and is immutable
// once set.
type User struct {
	ID                uuid.UUID
	Role              Role
	OAuth2ClientID    string
	OAuth2UserID      string
	Email             string
	Username          *string
	ProfilePictureURL *string
}

// FederatedAttrs are the writable attributes of a federated account.
type FederatedAttrs struct {
	OAuth2ClientID    string
	OAuth2UserID      string
	Email             string
	Username          *string
	ProfilePictureURL *string
}

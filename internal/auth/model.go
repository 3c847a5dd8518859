package auth

import (
	"time"

	"github.com/google/uuid"
)

type RoleKind string

const (
	RoleUser           RoleKind = "user"
	RoleAdmin          RoleKind = "admin"
	RoleEventModerator RoleKind = "event_moderator"
)

// Role is a tag plus an optional scope. An event moderator carries only the
// id of the event it moderates, never the event itself.
type Role struct {
	Kind    RoleKind   `json:"kind"`
	EventID *uuid.UUID `json:"event_id,omitempty"`
}

func UserRole() Role  { return Role{Kind: RoleUser} }
func AdminRole() Role { return Role{Kind: RoleAdmin} }

func EventModeratorRole(eventID uuid.UUID) Role {
	return Role{Kind: RoleEventModerator, EventID: &eventID}
}

type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a Account) HasRole(kind RoleKind) bool {
	for _, role := range a.Roles {
		if role.Kind == kind {
			return true
		}
	}
	return false
}

func (a Account) IsEventModerator(eventID uuid.UUID) bool {
	for _, role := range a.Roles {
		if role.Kind == RoleEventModerator && role.EventID != nil && *role.EventID == eventID {
			return true
		}
	}
	return false
}

// RefreshToken is the persisted, revocable half of an issued token pair. The
// expiry embedded in the signed Token string is authoritative for rejection;
// ExpiresAt backs defense-in-depth checks and cleanup.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrIdentityMismatch is returned when a linked external identity returns
// from the provider with a different provider-user-id. The stored linkage is
// never overwritten.
var ErrIdentityMismatch = errors.New("external identity mismatch")

// ExternalIdentity links a user to an identity at an OAuth provider. A user
// holds at most one link per provider.
type ExternalIdentity struct {
	Provider       ProviderType
	ProviderUserID string
	CreatedAt      time.Time
}

// User is the account aggregate slice the authentication flows need: email
// ownership, confirmation state, profile fields, and external identity links.
// A user belongs to exactly one tenant; the same email may own users in
// several tenants.
type User struct {
	aggregate

	TenantID       string
	ID             string
	Email          string
	EmailConfirmed bool
	FirstName      string
	LastName       string
	AvatarURL      string
	Role           string
	Identities     []ExternalIdentity
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// NewUserID returns a prefixed opaque id.
func NewUserID() string {
	return "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ConfirmEmail marks the email as confirmed. Confirming an invited user's
// email for the first time raises an InviteAccepted event.
func (u *User) ConfirmEmail(now time.Time) {
	if u.EmailConfirmed {
		return
	}
	u.EmailConfirmed = true
	u.ModifiedAt = now
	u.AddEvent(InviteAccepted{TenantID: u.TenantID, UserID: u.ID})
}

// LinkedIdentity returns the provider-user-id linked for the given provider.
func (u *User) LinkedIdentity(provider ProviderType) (string, bool) {
	for _, identity := range u.Identities {
		if identity.Provider == provider {
			return identity.ProviderUserID, true
		}
	}
	return "", false
}

// LinkIdentity attaches an external identity. A differing provider-user-id
// for an already linked provider is a hard failure, not a silent overwrite.
func (u *User) LinkIdentity(provider ProviderType, providerUserID string, now time.Time) error {
	if linked, ok := u.LinkedIdentity(provider); ok {
		if linked != providerUserID {
			return ErrIdentityMismatch
		}
		return nil
	}
	u.Identities = append(u.Identities, ExternalIdentity{
		Provider:       provider,
		ProviderUserID: providerUserID,
		CreatedAt:      now,
	})
	u.ModifiedAt = now
	return nil
}

// BackfillProfile opportunistically fills empty profile fields from provider
// claims. Existing values are never overwritten.
func (u *User) BackfillProfile(firstName, lastName, avatarURL string, now time.Time) {
	changed := false
	if u.FirstName == "" && firstName != "" {
		u.FirstName = firstName
		changed = true
	}
	if u.LastName == "" && lastName != "" {
		u.LastName = lastName
		changed = true
	}
	if u.AvatarURL == "" && avatarURL != "" {
		u.AvatarURL = avatarURL
		changed = true
	}
	if changed {
		u.ModifiedAt = now
	}
}

// Tenant is the organization owning users. Only the slice needed by the
// signup flow is modeled here; tenant management is a separate concern.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewTenantID returns a prefixed opaque id.
func NewTenantID() string {
	return "tnt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

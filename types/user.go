package types

import "time"

// User represents an account in the system. An account is created either by
// signup (with a password) or by a first social login (password-less, with
// provider identity instead).
type User struct {
	// ID is the internal unique identifier of the user.
	ID int `json:"id" db:"id"`

	// LoginID is the unique handle chosen by the user (or synthesized for
	// social-only accounts as "<provider>_<providerID>").
	LoginID string `json:"userId" db:"login_id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. Optional; unique when present.
	Email string `json:"email,omitempty" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password. Empty for
	// social-only accounts. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Provider is the OAuth issuer name for social accounts ("naver",
	// "google", "kakao", "discord", "twitter"). Empty for local accounts.
	Provider string `json:"provider,omitempty" db:"provider"`

	// ProviderID is the issuer's opaque subject identifier for the user.
	ProviderID string `json:"-" db:"provider_id"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the identity snapshot returned alongside tokens and embedded
// in board posts.
type PublicUser struct {
	LoginID string `json:"userId"`
	Name    string `json:"name"`
}

// Public returns the user's token-response projection.
func (u User) Public() PublicUser {
	return PublicUser{LoginID: u.LoginID, Name: u.Name}
}

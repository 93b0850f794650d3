// Package models defines the core data structures for users, sessions and
// vault entries.
package models

import "time"

// User represents an application user with stored credential material.
// A user record is written once at registration and never mutated.
type User struct {
	// Username is the unique login name chosen by the user.
	Username string `json:"username"`
	// Salt is the random per-user salt generated at registration.
	Salt []byte `json:"salt"`
	// PasswordHash is the PBKDF2-derived hash of the user's password.
	PasswordHash []byte `json:"passwordHash"`
	// Iterations is the KDF work factor the hash was derived with. It is
	// recorded per user so the global default can change without
	// invalidating existing credentials.
	Iterations int `json:"iterations"`
	// CreatedAt is the registration timestamp.
	CreatedAt time.Time `json:"createdAt"`
}

// Session maps a bearer token to its owning user until it expires.
type Session struct {
	// Username is the identity the token authenticates as.
	Username string
	// ExpiresAt is the absolute expiry timestamp (issue time + TTL).
	ExpiresAt time.Time
}

// VaultEntry holds one stored credential record. The password field carries
// ciphertext produced by the client; the server never sees plaintext.
type VaultEntry struct {
	// ID is the unique identifier, generated at creation and immutable.
	ID string `json:"id"`
	// Owner is the username of the entry's creator, set once.
	Owner string `json:"owner"`
	// URL is the address of the site or service the credential is for.
	URL string `json:"url"`
	// Username is the stored account's login name.
	Username string `json:"username"`
	// PasswordEncrypted is the opaque client-side ciphertext.
	PasswordEncrypted string `json:"passwordEncrypted"`
	// FaviconURL optionally points at the site's icon.
	FaviconURL string `json:"faviconUrl"`
	// Note holds free-form user text.
	Note string `json:"note"`
	// Tags is an ordered list of free-text labels; the distinct tag values
	// across a user's entries double as that user's categories.
	Tags []string `json:"tags"`
	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntryUpdate carries a partial update for a vault entry. Nil fields are
// left untouched; non-nil fields overwrite, including with empty values.
type EntryUpdate struct {
	URL               *string   `json:"url"`
	Username          *string   `json:"username"`
	PasswordEncrypted *string   `json:"passwordEncrypted"`
	FaviconURL        *string   `json:"faviconUrl"`
	Note              *string   `json:"note"`
	Tags              *[]string `json:"tags"`
}

// ExportDocument is the full dump of a user's vault.
type ExportDocument struct {
	// Version identifies the export format.
	Version string `json:"version"`
	// Username is the vault owner.
	Username string `json:"username"`
	// ExportedAt is the time the dump was produced.
	ExportedAt time.Time `json:"exportedAt"`
	// Entries are the owner's entries, newest first.
	Entries []VaultEntry `json:"entries"`
}

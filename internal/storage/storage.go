// Package storage provides the persistence layer for users and vault
// entries. Two interchangeable implementations exist: a PostgreSQL-backed
// store and a file-backed store keeping one JSON file per user's vault.
// Both must produce identical observable results for identical call
// sequences.
package storage

import (
	"context"
	"errors"

	"github.com/ayermolov/vaultkeeper/internal/models"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrConflict is returned by PutUser when the username is already taken.
	ErrConflict = errors.New("storage: already exists")
	// ErrNotFound is returned when the referenced record does not exist or
	// is not owned by the given owner.
	ErrNotFound = errors.New("storage: not found")
	// ErrTimeout is returned when an operation exceeded its deadline
	// instead of letting the caller hang.
	ErrTimeout = errors.New("storage: operation timed out")
)

// Store is the uniform storage contract for users and vault entries.
type Store interface {
	// GetUser returns the user record for the given username, or
	// ErrNotFound if no such user exists.
	GetUser(ctx context.Context, username string) (*models.User, error)
	// PutUser inserts a new user record. The insert is atomic: if the
	// username is already taken, ErrConflict is returned and nothing is
	// written. There is no separate existence check to race against.
	PutUser(ctx context.Context, user *models.User) error
	// ListEntries returns all entries belonging to owner, ordered by
	// CreatedAt descending. A user with no entries yields an empty slice.
	ListEntries(ctx context.Context, owner string) ([]models.VaultEntry, error)
	// InsertEntry stores a new entry.
	InsertEntry(ctx context.Context, entry *models.VaultEntry) error
	// UpdateEntry merges the non-nil fields of update into the entry with
	// the given id owned by owner, refreshes UpdatedAt, and returns the
	// updated entry. Returns ErrNotFound if owner has no such entry.
	UpdateEntry(ctx context.Context, owner, id string, update models.EntryUpdate) (*models.VaultEntry, error)
	// DeleteEntry removes the entry with the given id owned by owner.
	// Returns ErrNotFound if owner has no such entry.
	DeleteEntry(ctx context.Context, owner, id string) error
	// RemoveTag strips tag from the tag list of every entry owned by
	// owner, bumping UpdatedAt on each modified entry. Entries not
	// carrying the tag are untouched; removing an absent tag is a no-op.
	RemoveTag(ctx context.Context, owner, tag string) error
}

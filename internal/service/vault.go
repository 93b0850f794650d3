package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ayermolov/vaultkeeper/internal/models"
	"github.com/ayermolov/vaultkeeper/internal/storage"
)

// exportVersion identifies the export document format.
const exportVersion = "1"

// NewEntry carries the caller-supplied fields for a new vault entry.
type NewEntry struct {
	URL               string
	Username          string
	PasswordEncrypted string
	FaviconURL        string
	Note              string
	Tags              []string
}

// VaultService owns the per-user entry lifecycle and the derived category
// view. All durability is delegated to the storage layer; ownership scoping
// is enforced on every operation.
type VaultService struct {
	store storage.Store
}

// NewVaultService constructs a VaultService over the given store.
func NewVaultService(store storage.Store) *VaultService {
	return &VaultService{store: store}
}

// AddEntry validates the required fields, assigns id and timestamps and
// stores the entry at the head of the owner's collection. Newest-first
// ordering is part of the contract, not an incidental detail.
func (s *VaultService) AddEntry(ctx context.Context, owner string, fields NewEntry) (*models.VaultEntry, error) {
	if fields.URL == "" || fields.Username == "" || fields.PasswordEncrypted == "" {
		return nil, ErrMissingFields
	}

	now := time.Now().UTC()
	entry := &models.VaultEntry{
		ID:                uuid.NewString(),
		Owner:             owner,
		URL:               fields.URL,
		Username:          fields.Username,
		PasswordEncrypted: fields.PasswordEncrypted,
		FaviconURL:        fields.FaviconURL,
		Note:              fields.Note,
		Tags:              fields.Tags,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}

	if err := s.store.InsertEntry(ctx, entry); err != nil {
		return nil, storageFailure("add entry", err)
	}
	return entry, nil
}

// ListEntries returns the owner's entries, newest first.
func (s *VaultService) ListEntries(ctx context.Context, owner string) ([]models.VaultEntry, error) {
	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		return nil, storageFailure("list entries", err)
	}
	return entries, nil
}

// UpdateEntry merges the present fields of update into the owner's entry.
func (s *VaultService) UpdateEntry(ctx context.Context, owner, id string, update models.EntryUpdate) (*models.VaultEntry, error) {
	entry, err := s.store.UpdateEntry(ctx, owner, id, update)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageFailure("update entry", err)
	}
	return entry, nil
}

// DeleteEntry removes the owner's entry with the given id.
func (s *VaultService) DeleteEntry(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteEntry(ctx, owner, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return storageFailure("delete entry", err)
	}
	return nil
}

// ListCategories derives the owner's categories: the distinct non-empty tag
// values across all current entries. Categories are a computed view, never
// stored separately.
func (s *VaultService) ListCategories(ctx context.Context, owner string) ([]string, error) {
	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		return nil, storageFailure("list categories", err)
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, tag := range e.Tags {
			if tag != "" {
				seen[tag] = struct{}{}
			}
		}
	}
	categories := make([]string, 0, len(seen))
	for tag := range seen {
		categories = append(categories, tag)
	}
	sort.Strings(categories)
	return categories, nil
}

// DeclareCategory validates a category name. Categories exist only as tags
// attached to entries, so declaring one has no persistent effect.
func (s *VaultService) DeclareCategory(name string) error {
	if name == "" {
		return ErrInvalidInput
	}
	return nil
}

// DeleteCategory removes name from the tag list of every matching entry
// owned by owner, bumping UpdatedAt on each modified entry. Deleting a
// category no entry carries is a no-op.
func (s *VaultService) DeleteCategory(ctx context.Context, owner, name string) error {
	if name == "" {
		return ErrInvalidInput
	}
	if err := s.store.RemoveTag(ctx, owner, name); err != nil {
		return storageFailure("delete category", err)
	}
	return nil
}

// Export produces the full dump of the owner's vault.
func (s *VaultService) Export(ctx context.Context, owner string) (*models.ExportDocument, error) {
	entries, err := s.store.ListEntries(ctx, owner)
	if err != nil {
		return nil, storageFailure("export", err)
	}
	return &models.ExportDocument{
		Version:    exportVersion,
		Username:   owner,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
	}, nil
}

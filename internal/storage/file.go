package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayermolov/vaultkeeper/internal/models"
)

// FileStore implements Store on the local filesystem: one JSON document
// holding all user records, and one JSON file per user for that user's vault
// entries, created lazily. Every vault mutation is a whole-file
// read-modify-write, so writes are serialized per owner; without that lock
// two concurrent updates to the same vault would silently lose one of them.
type FileStore struct {
	dir string

	// usersMu guards the users document read-modify-write cycle.
	usersMu sync.Mutex

	// ownersMu guards the owners map; each owner's mutex serializes that
	// owner's vault file cycles.
	ownersMu sync.Mutex
	owners   map[string]*sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// tree if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "vaults"), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		owners: make(map[string]*sync.Mutex),
	}, nil
}

// ownerLock returns the mutex serializing writes for the given owner.
func (s *FileStore) ownerLock(owner string) *sync.Mutex {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	mu, ok := s.owners[owner]
	if !ok {
		mu = &sync.Mutex{}
		s.owners[owner] = mu
	}
	return mu
}

func (s *FileStore) usersPath() string {
	return filepath.Join(s.dir, "users.json")
}

// vaultPath returns the per-owner entries file. Owner names are validated
// upstream to [A-Za-z0-9._-], so they are safe as file names.
func (s *FileStore) vaultPath(owner string) string {
	return filepath.Join(s.dir, "vaults", owner+".json")
}

// readJSON unmarshals the file at path into v. A missing file is not an
// error; v is left untouched.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON marshals v and replaces the file at path atomically via a
// temp file and rename, so readers never observe a partial write.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ctxErr maps context expiry to the package sentinel before touching disk.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	return nil
}

func (s *FileStore) loadUsers() (map[string]models.User, error) {
	users := make(map[string]models.User)
	if err := readJSON(s.usersPath(), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *FileStore) loadVault(owner string) ([]models.VaultEntry, error) {
	entries := []models.VaultEntry{}
	if err := readJSON(s.vaultPath(owner), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetUser returns the stored record for username, or ErrNotFound.
func (s *FileStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	u, ok := users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// PutUser inserts a new user record. The users mutex makes the
// check-then-insert a single atomic step, so concurrent registrations for
// the same username yield exactly one winner. The user's vault file is
// provisioned empty alongside the record.
func (s *FileStore) PutUser(ctx context.Context, user *models.User) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	if _, ok := users[user.Username]; ok {
		return ErrConflict
	}
	users[user.Username] = *user
	if err := writeJSON(s.usersPath(), users); err != nil {
		return err
	}

	if _, err := os.Stat(s.vaultPath(user.Username)); errors.Is(err, os.ErrNotExist) {
		return writeJSON(s.vaultPath(user.Username), []models.VaultEntry{})
	}
	return nil
}

// ListEntries returns the owner's entries, newest first. Entries are kept in
// that order on disk; insertion prepends.
func (s *FileStore) ListEntries(ctx context.Context, owner string) ([]models.VaultEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	return s.loadVault(owner)
}

// InsertEntry prepends the entry to the owner's vault file.
func (s *FileStore) InsertEntry(ctx context.Context, entry *models.VaultEntry) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	mu := s.ownerLock(entry.Owner)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.loadVault(entry.Owner)
	if err != nil {
		return err
	}
	entries = append([]models.VaultEntry{*entry}, entries...)
	return writeJSON(s.vaultPath(entry.Owner), entries)
}

// UpdateEntry merges the present fields of update into the owner's entry and
// rewrites the vault file under the owner's lock.
func (s *FileStore) UpdateEntry(ctx context.Context, owner, id string, update models.EntryUpdate) (*models.VaultEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.loadVault(owner)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		applyUpdate(&entries[i], update)
		entries[i].UpdatedAt = time.Now().UTC()
		if err := writeJSON(s.vaultPath(owner), entries); err != nil {
			return nil, err
		}
		updated := entries[i]
		return &updated, nil
	}
	return nil, ErrNotFound
}

// applyUpdate copies the non-nil fields of update onto e.
func applyUpdate(e *models.VaultEntry, update models.EntryUpdate) {
	if update.URL != nil {
		e.URL = *update.URL
	}
	if update.Username != nil {
		e.Username = *update.Username
	}
	if update.PasswordEncrypted != nil {
		e.PasswordEncrypted = *update.PasswordEncrypted
	}
	if update.FaviconURL != nil {
		e.FaviconURL = *update.FaviconURL
	}
	if update.Note != nil {
		e.Note = *update.Note
	}
	if update.Tags != nil {
		e.Tags = append([]string{}, (*update.Tags)...)
	}
}

// DeleteEntry removes the owner's entry with the given id.
func (s *FileStore) DeleteEntry(ctx context.Context, owner, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.loadVault(owner)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID != id {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		return writeJSON(s.vaultPath(owner), entries)
	}
	return ErrNotFound
}

// RemoveTag strips tag from every entry in the owner's vault, bumping
// UpdatedAt only on entries that actually carried it. The whole pass happens
// in one read-modify-write cycle under the owner's lock, so it is never
// observed half-applied.
func (s *FileStore) RemoveTag(ctx context.Context, owner, tag string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.loadVault(owner)
	if err != nil {
		return err
	}
	modified := false
	now := time.Now().UTC()
	for i := range entries {
		kept := entries[i].Tags[:0:0]
		for _, t := range entries[i].Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		if len(kept) != len(entries[i].Tags) {
			entries[i].Tags = kept
			entries[i].UpdatedAt = now
			modified = true
		}
	}
	if !modified {
		return nil
	}
	return writeJSON(s.vaultPath(owner), entries)
}

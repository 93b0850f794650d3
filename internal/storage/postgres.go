package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ayermolov/vaultkeeper/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique-constraint breaks.
const uniqueViolation = "23505"

// queryTimeout bounds every single storage operation so a stuck backend
// surfaces as ErrTimeout instead of hanging the caller.
const queryTimeout = 3 * time.Second

// PostgresStore implements Store against a PostgreSQL database, one row per
// entry with an ownership foreign key and tags as a text[] column.
type PostgresStore struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresStore creates a PostgresStore using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// opContext derives the bounded per-operation context.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// mapErr translates driver-level failures into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// GetUser fetches a single user record by username.
func (s *PostgresStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var u models.User
	err := s.DB.QueryRowContext(ctx, `
		SELECT username, salt, password_hash, iterations, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.Username, &u.Salt, &u.PasswordHash, &u.Iterations, &u.CreatedAt)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrNotFound) || errors.Is(mapped, ErrTimeout) {
			return nil, mapped
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// PutUser inserts a new user record. The users table's primary key makes the
// insert the atomic "insert if absent"; a duplicate surfaces as ErrConflict.
func (s *PostgresStore) PutUser(ctx context.Context, user *models.User) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (username, salt, password_hash, iterations, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.Username, user.Salt, user.PasswordHash, user.Iterations, user.CreatedAt)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrConflict) || errors.Is(mapped, ErrTimeout) {
			return mapped
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// ListEntries fetches all entries for the owner, newest first. The id column
// breaks ties between entries created in the same instant.
func (s *PostgresStore) ListEntries(ctx context.Context, owner string) ([]models.VaultEntry, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, owner, url, username, password_encrypted, favicon_url, note, tags, created_at, updated_at
		FROM entries WHERE owner = $1
		ORDER BY created_at DESC, id
	`, owner)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrTimeout) {
			return nil, mapped
		}
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []models.VaultEntry{}
	for rows.Next() {
		var e models.VaultEntry
		if err := rows.Scan(&e.ID, &e.Owner, &e.URL, &e.Username, &e.PasswordEncrypted,
			&e.FaviconURL, &e.Note, pq.Array(&e.Tags), &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// InsertEntry stores a new entry row.
func (s *PostgresStore) InsertEntry(ctx context.Context, entry *models.VaultEntry) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO entries (id, owner, url, username, password_encrypted, favicon_url, note, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.Owner, entry.URL, entry.Username, entry.PasswordEncrypted,
		entry.FaviconURL, entry.Note, pq.Array(entry.Tags), entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrConflict) || errors.Is(mapped, ErrTimeout) {
			return mapped
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// UpdateEntry merges the present fields of update into the owner's entry in a
// single row-atomic statement and returns the updated row. COALESCE keeps the
// stored value wherever the corresponding parameter is NULL.
func (s *PostgresStore) UpdateEntry(ctx context.Context, owner, id string, update models.EntryUpdate) (*models.VaultEntry, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var tags interface{}
	if update.Tags != nil {
		tags = pq.Array(*update.Tags)
	}

	var e models.VaultEntry
	err := s.DB.QueryRowContext(ctx, `
		UPDATE entries SET
			url                = COALESCE($3, url),
			username           = COALESCE($4, username),
			password_encrypted = COALESCE($5, password_encrypted),
			favicon_url        = COALESCE($6, favicon_url),
			note               = COALESCE($7, note),
			tags               = COALESCE($8, tags),
			updated_at         = $9
		WHERE owner = $1 AND id = $2
		RETURNING id, owner, url, username, password_encrypted, favicon_url, note, tags, created_at, updated_at
	`, owner, id, update.URL, update.Username, update.PasswordEncrypted,
		update.FaviconURL, update.Note, tags, time.Now().UTC()).
		Scan(&e.ID, &e.Owner, &e.URL, &e.Username, &e.PasswordEncrypted,
			&e.FaviconURL, &e.Note, pq.Array(&e.Tags), &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrNotFound) || errors.Is(mapped, ErrTimeout) {
			return nil, mapped
		}
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

// DeleteEntry removes the owner's entry with the given id.
func (s *PostgresStore) DeleteEntry(ctx context.Context, owner, id string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM entries WHERE owner = $1 AND id = $2
	`, owner, id)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrTimeout) {
			return mapped
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveTag strips tag from every entry owned by owner inside one
// transaction so an interrupted run never leaves the tag half-removed.
func (s *PostgresStore) RemoveTag(ctx context.Context, owner, tag string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrTimeout) {
			return mapped
		}
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE entries
		SET tags = array_remove(tags, $2), updated_at = $3
		WHERE owner = $1 AND $2 = ANY(tags)
	`, owner, tag, time.Now().UTC())
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, ErrTimeout) {
			return mapped
		}
		return fmt.Errorf("remove tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

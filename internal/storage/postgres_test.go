package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ayermolov/vaultkeeper/internal/models"
)

func setupPostgresMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	store := NewPostgresStore(db)
	cleanup := func() { db.Close() }
	return store, mock, cleanup
}

var userColumns = []string{"username", "salt", "password_hash", "iterations", "created_at"}

var entryColumns = []string{
	"id", "owner", "url", "username", "password_encrypted",
	"favicon_url", "note", "tags", "created_at", "updated_at",
}

func TestPostgresGetUser_Found(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT username, salt, password_hash, iterations, created_at`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("alice", []byte("salt"), []byte("hash"), 120000, created))

	user, err := store.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" || user.Iterations != 120000 {
		t.Errorf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresGetUser_NotFound(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT username, salt, password_hash, iterations, created_at`).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresPutUser_Success(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	user := &models.User{
		Username:     "alice",
		Salt:         []byte("salt"),
		PasswordHash: []byte("hash"),
		Iterations:   120000,
		CreatedAt:    time.Now().UTC(),
	}
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(user.Username, user.Salt, user.PasswordHash, user.Iterations, user.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.PutUser(context.Background(), user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresPutUser_Conflict(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := store.PutUser(context.Background(), &models.User{Username: "alice"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v; want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresListEntries(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, owner, url, username, password_encrypted`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("id-2", "alice", "https://two.com", "a", "ct2", "", "", []byte("{work,email}"), now, now).
			AddRow("id-1", "alice", "https://one.com", "a", "ct1", "", "", []byte("{}"), now.Add(-time.Hour), now.Add(-time.Hour)))

	entries, err := store.ListEntries(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d; want 2", len(entries))
	}
	if entries[0].ID != "id-2" {
		t.Errorf("entries[0].ID = %q; want id-2", entries[0].ID)
	}
	if len(entries[0].Tags) != 2 || entries[0].Tags[0] != "work" {
		t.Errorf("entries[0].Tags = %v; want [work email]", entries[0].Tags)
	}
	if entries[1].Tags == nil {
		t.Error("empty tags must scan to an empty slice, not nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresListEntries_Empty(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, owner, url, username, password_encrypted`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(entryColumns))

	entries, err := store.ListEntries(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v; want empty non-nil slice", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresInsertEntry(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	now := time.Now().UTC()
	entry := &models.VaultEntry{
		ID: "id-1", Owner: "alice", URL: "https://x.com", Username: "a",
		PasswordEncrypted: "ct", Tags: []string{"work"},
		CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectExec(`INSERT INTO entries`).
		WithArgs(entry.ID, entry.Owner, entry.URL, entry.Username, entry.PasswordEncrypted,
			entry.FaviconURL, entry.Note, pq.Array(entry.Tags), entry.CreatedAt, entry.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.InsertEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresUpdateEntry_Success(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE entries SET`).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("id-1", "alice", "https://x.com", "a", "ct", "", "n", []byte("{}"), now.Add(-time.Hour), now))

	note := "n"
	entry, err := store.UpdateEntry(context.Background(), "alice", "id-1", models.EntryUpdate{Note: &note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Note != "n" {
		t.Errorf("Note = %q; want %q", entry.Note, "n")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresUpdateEntry_NotFound(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`UPDATE entries SET`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateEntry(context.Background(), "alice", "missing", models.EntryUpdate{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresDeleteEntry(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM entries`).
		WithArgs("alice", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteEntry(context.Background(), "alice", "id-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresDeleteEntry_NotFound(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM entries`).
		WithArgs("alice", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteEntry(context.Background(), "alice", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v; want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRemoveTag_Transactional(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE entries`).
		WithArgs("alice", "work", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	if err := store.RemoveTag(context.Background(), "alice", "work"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRemoveTag_RollbackOnError(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE entries`).
		WillReturnError(errors.New("exec failed"))
	mock.ExpectRollback()

	if err := store.RemoveTag(context.Background(), "alice", "work"); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresTimeoutsSurfaceAsErrTimeout(t *testing.T) {
	store, mock, cleanup := setupPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, owner, url, username, password_encrypted`).
		WillReturnError(context.DeadlineExceeded)

	_, err := store.ListEntries(context.Background(), "alice")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v; want ErrTimeout", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

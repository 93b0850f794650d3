// Package service implements the business logic of the vault: credential
// verification, session issuance and per-user entry management, delegating
// persistence to the storage layer.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ayermolov/vaultkeeper/internal/models"
	"github.com/ayermolov/vaultkeeper/internal/storage"
)

const (
	// kdfIterations is the PBKDF2 work factor for newly registered users.
	// Existing users keep the iteration count recorded on their record.
	kdfIterations = 120000
	// saltLength is the per-user salt size in bytes.
	saltLength = 16
	// hashLength is the derived key size in bytes.
	hashLength = 32
	// minPasswordLength is the shortest accepted password.
	minPasswordLength = 6
)

// usernamePattern is the accepted username shape: 3-32 chars of
// letters, digits, dot, underscore and hyphen.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)

// CredentialService owns user identity records and verifies login attempts.
type CredentialService struct {
	store storage.Store

	// decoySalt feeds a throwaway derivation when the username is unknown,
	// so a login probe costs the same whether or not the user exists.
	decoySalt []byte
}

// NewCredentialService constructs a CredentialService over the given store.
func NewCredentialService(store storage.Store) (*CredentialService, error) {
	decoy := make([]byte, saltLength)
	if _, err := rand.Read(decoy); err != nil {
		return nil, fmt.Errorf("generate decoy salt: %w", err)
	}
	return &CredentialService{store: store, decoySalt: decoy}, nil
}

// deriveHash runs the slow KDF over password and salt.
func deriveHash(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, hashLength, sha256.New)
}

// Register validates the username and password, derives the password hash
// and persists the new user. The storage insert is the atomic
// insert-if-absent, so two concurrent registrations for the same username
// produce exactly one success.
func (s *CredentialService) Register(ctx context.Context, username, password string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be 3-32 chars of [A-Za-z0-9._-]", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	user := &models.User{
		Username:     username,
		Salt:         salt,
		PasswordHash: deriveHash(password, salt, kdfIterations),
		Iterations:   kdfIterations,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.PutUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrAlreadyExists
		}
		return storageFailure("register", err)
	}
	return nil
}

// Verify checks a username/password pair and returns the authenticated
// username. Unknown usernames and wrong passwords return the same error,
// and the unknown-user path still pays the full KDF cost so the two cases
// are not distinguishable by timing either.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			deriveHash(password, s.decoySalt, kdfIterations)
			return "", ErrInvalidCredentials
		}
		return "", storageFailure("verify", err)
	}

	candidate := deriveHash(password, user.Salt, user.Iterations)
	if subtle.ConstantTimeCompare(candidate, user.PasswordHash) != 1 {
		return "", ErrInvalidCredentials
	}
	return user.Username, nil
}

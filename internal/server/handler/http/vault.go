package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayermolov/vaultkeeper/internal/middleware"
	"github.com/ayermolov/vaultkeeper/internal/models"
	"github.com/ayermolov/vaultkeeper/internal/service"
)

// VaultService defines the vault operations required by the HTTP handlers.
// Every operation is scoped to the authenticated owner.
type VaultService interface {
	AddEntry(ctx context.Context, owner string, fields service.NewEntry) (*models.VaultEntry, error)
	ListEntries(ctx context.Context, owner string) ([]models.VaultEntry, error)
	UpdateEntry(ctx context.Context, owner, id string, update models.EntryUpdate) (*models.VaultEntry, error)
	DeleteEntry(ctx context.Context, owner, id string) error
	ListCategories(ctx context.Context, owner string) ([]string, error)
	DeclareCategory(name string) error
	DeleteCategory(ctx context.Context, owner, name string) error
	Export(ctx context.Context, owner string) (*models.ExportDocument, error)
}

// VaultHandler handles HTTP requests for vault entries and categories. All
// routes it serves sit behind the bearer-auth middleware, which put the
// owner into the request context.
type VaultHandler struct {
	Vault VaultService
	Log   *zap.Logger
}

// entryRequest represents the JSON payload for entry creation.
type entryRequest struct {
	URL               string   `json:"url"`
	Username          string   `json:"username"`
	PasswordEncrypted string   `json:"passwordEncrypted"`
	FaviconURL        string   `json:"faviconUrl"`
	Note              string   `json:"note"`
	Tags              []string `json:"tags"`
}

// categoryRequest represents the JSON payload for category declaration.
type categoryRequest struct {
	Name string `json:"name"`
}

// ListEntries handles GET /api/entries, returning the owner's entries
// newest first.
func (h *VaultHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())

	entries, err := h.Vault.ListEntries(r.Context(), owner)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddEntry handles POST /api/entries. It expects url, username and
// passwordEncrypted; the password field carries client-side ciphertext.
// Responds 201 with the created entry.
func (h *VaultHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}

	entry, err := h.Vault.AddEntry(r.Context(), owner, service.NewEntry{
		URL:               req.URL,
		Username:          req.Username,
		PasswordEncrypted: req.PasswordEncrypted,
		FaviconURL:        req.FaviconURL,
		Note:              req.Note,
		Tags:              req.Tags,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PUT /api/entries/{id}. Only the fields present in the
// body are changed; responds 200 with the updated entry or 404 when the
// owner has no entry with that id.
func (h *VaultHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var update models.EntryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}

	entry, err := h.Vault.UpdateEntry(r.Context(), owner, id, update)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/entries/{id}.
func (h *VaultHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.Vault.DeleteEntry(r.Context(), owner, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListCategories handles GET /api/categories, returning the distinct
// non-empty tag values across the owner's entries.
func (h *VaultHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())

	categories, err := h.Vault.ListCategories(r.Context(), owner)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// DeclareCategory handles POST /api/categories. Categories exist only as
// entry tags, so this validates the name and stores nothing.
func (h *VaultHandler) DeclareCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}

	if err := h.Vault.DeclareCategory(req.Name); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteCategory handles DELETE /api/categories/{name}, stripping the tag
// from every entry of the owner that carries it.
func (h *VaultHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := h.Vault.DeleteCategory(r.Context(), owner, name); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Export handles GET /api/export, returning the full dump of the owner's
// vault.
func (h *VaultHandler) Export(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUserFromContext(r.Context())

	doc, err := h.Vault.Export(r.Context(), owner)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

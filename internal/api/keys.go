package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lexia-ai/lexia/internal/auth"
	"github.com/lexia-ai/lexia/internal/store"
)

// issueKeyRequest is the body of POST /api-keys.
type issueKeyRequest struct {
	Name        string   `json:"name"`
	Principal   string   `json:"principal"`
	Permissions []string `json:"permissions"`
	Quota       int      `json:"quota"`
	Group       string   `json:"group"`
}

// issueKeyResponse carries the plaintext token. This is the only place it
// ever appears.
type issueKeyResponse struct {
	ID        string `json:"id"`
	APIKey    string `json:"api_key"`
	Name      string `json:"name"`
	Principal string `json:"principal"`
	Message   string `json:"message"`
}

// handleIssueKey creates a credential. Unauthenticated: this is the
// bootstrap endpoint; deployments gate it at the network layer.
func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "validation_error", "", "invalid JSON body")
		return
	}
	if req.Name == "" {
		badRequest(w, "validation_error", "name", "name is required")
		return
	}
	if req.Principal == "" {
		badRequest(w, "validation_error", "principal", "principal is required")
		return
	}
	quota := req.Quota
	if quota <= 0 {
		quota = s.defaultQuota
	}

	issued, err := s.auth.Issue(r.Context(), auth.IssueParams{
		Name:        req.Name,
		Principal:   req.Principal,
		GroupID:     req.Group,
		Permissions: req.Permissions,
		Quota:       quota,
	})
	if err != nil {
		s.log.Error("issue credential failed", "error", err)
		serverError(w)
		return
	}

	writeJSON(w, http.StatusCreated, issueKeyResponse{
		ID:        issued.Credential.ID,
		APIKey:    issued.Token,
		Name:      issued.Credential.Name,
		Principal: issued.Credential.Principal,
		Message:   "store this key securely; it will not be shown again",
	})
}

// keySummary is the listing shape. No token, no hash.
type keySummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Principal   string     `json:"principal"`
	Permissions []string   `json:"permissions"`
	Quota       int        `json:"quota"`
	Revoked     bool       `json:"revoked"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// handleListKeys returns the caller's credentials. The principal query
// parameter is accepted for compatibility but listing is always scoped to
// the authenticated principal.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	cred := credentialFrom(r)
	includeRevoked := formBool(r.URL.Query().Get("include_revoked"))

	creds, err := s.store.ListCredentials(r.Context(), cred.Principal, includeRevoked)
	if err != nil {
		s.log.Error("list credentials failed", "error", err)
		serverError(w)
		return
	}

	out := make([]keySummary, 0, len(creds))
	for _, c := range creds {
		out = append(out, keySummary{
			ID:          c.ID,
			Name:        c.Name,
			Principal:   c.Principal,
			Permissions: c.Permissions,
			Quota:       c.Quota,
			Revoked:     c.Revoked,
			CreatedAt:   c.CreatedAt,
			LastUsedAt:  c.LastUsedAt,
			ExpiresAt:   c.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": out})
}

// handleRevokeKey revokes a credential. Idempotent: revoking twice succeeds
// with a different message.
func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return
	}
	cred := credentialFrom(r)

	target, err := s.store.CredentialByID(r.Context(), id)
	if err != nil || target.Principal != cred.Principal {
		s.keyNotFound(w, err)
		return
	}

	changed, err := s.store.RevokeCredential(r.Context(), id)
	if err != nil {
		s.keyNotFound(w, err)
		return
	}
	message := "API key revoked"
	if !changed {
		message = "API key was already revoked"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"revoked": true,
		"message": message,
	})
}

// handleDeleteKey removes the credential row entirely.
func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := requireUUID(id, "id"); err != nil {
		s.writeValidationError(w, err)
		return
	}
	cred := credentialFrom(r)

	target, err := s.store.CredentialByID(r.Context(), id)
	if err != nil || target.Principal != cred.Principal {
		s.keyNotFound(w, err)
		return
	}

	if err := s.store.DeleteCredential(r.Context(), id); err != nil {
		s.keyNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
		"message": "API key deleted",
	})
}

// keyNotFound hides foreign credentials behind the same 404 as unknown ids.
func (s *Server) keyNotFound(w http.ResponseWriter, err error) {
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("credential lookup failed", "error", err)
		serverError(w)
		return
	}
	notFound(w, "key_not_found", "API key not found")
}

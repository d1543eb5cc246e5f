// Package auth issues and verifies Lexia API credentials.
//
// A credential token is a printable prefix followed by 32 bytes of
// cryptographic randomness in unpadded URL-safe base64. The plaintext token
// exists exactly once, in the issue response; only hex(SHA-256(salt ∥ token))
// is persisted, so a database leak never exposes usable keys.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexia-ai/lexia/internal/store"
)

// tokenBytes is the entropy carried by every issued token.
const tokenBytes = 32

// minTokenLen rejects obviously malformed headers before any hashing work.
const minTokenLen = 20

// Error codes surfaced to API clients. Handlers map them onto 401 responses;
// the code tells the caller what to fix without leaking which credentials
// exist.
var (
	ErrMissing   = errors.New("AUTH_MISSING")
	ErrMalformed = errors.New("AUTH_MALFORMED")
	ErrInvalid   = errors.New("AUTH_INVALID")
	ErrRevoked   = errors.New("AUTH_REVOKED")
	ErrExpired   = errors.New("AUTH_EXPIRED")
)

// Authenticator issues tokens and resolves Authorization headers to stored
// credentials.
type Authenticator struct {
	store  store.CredentialStore
	salt   string
	prefix string
	log    *slog.Logger
}

// New creates an Authenticator. salt must be a stable process-wide secret;
// changing it invalidates every previously issued token.
func New(s store.CredentialStore, salt, prefix string, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{store: s, salt: salt, prefix: prefix, log: log}
}

// Issued is the one-time response to a credential issue request.
type Issued struct {
	Credential *store.Credential

	// Token is the plaintext bearer token. It is never stored and cannot be
	// recovered later.
	Token string
}

// IssueParams describes a new credential.
type IssueParams struct {
	Name        string
	Principal   string
	GroupID     string
	Permissions []string
	Quota       int
	ExpiresAt   *time.Time
}

// Issue mints a fresh token, persists its hash, and returns both.
func (a *Authenticator) Issue(ctx context.Context, p IssueParams) (*Issued, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	token := a.prefix + base64.RawURLEncoding.EncodeToString(raw)

	perms := p.Permissions
	if len(perms) == 0 {
		perms = []string{"*"}
	}

	cred := &store.Credential{
		ID:          uuid.NewString(),
		KeyHash:     a.Hash(token),
		Name:        p.Name,
		Principal:   p.Principal,
		GroupID:     p.GroupID,
		Permissions: perms,
		Quota:       p.Quota,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   p.ExpiresAt,
	}
	if err := a.store.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("auth: persist credential: %w", err)
	}

	a.log.Info("credential issued",
		"credential_id", cred.ID,
		"principal", cred.Principal,
		"name", cred.Name)
	return &Issued{Credential: cred, Token: token}, nil
}

// Hash returns the salted hash stored and compared for a token.
func (a *Authenticator) Hash(token string) string {
	sum := sha256.Sum256([]byte(a.salt + token))
	return hex.EncodeToString(sum[:])
}

// Verify resolves an Authorization header value to its credential. The
// header may carry the token bare or with a "Bearer " prefix.
//
// On success the credential's last_used_at is updated in the background;
// failures there are logged and never fail the request.
func (a *Authenticator) Verify(ctx context.Context, header string) (*store.Credential, error) {
	token, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	cred, err := a.store.CredentialByHash(ctx, a.Hash(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup credential: %w", err)
	}

	// The hash lookup already proves possession; the constant-time compare
	// keeps the final accept independent of stored-value prefixes.
	if subtle.ConstantTimeCompare([]byte(cred.KeyHash), []byte(a.Hash(token))) != 1 {
		return nil, ErrInvalid
	}
	if cred.Revoked {
		return nil, ErrRevoked
	}
	if cred.ExpiresAt != nil && time.Now().After(*cred.ExpiresAt) {
		return nil, ErrExpired
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.store.TouchCredential(touchCtx, cred.ID, time.Now().UTC()); err != nil {
			a.log.Warn("touch credential failed", "credential_id", cred.ID, "error", err)
		}
	}()

	return cred, nil
}

// parseHeader extracts the token from an Authorization header value.
func parseHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissing
	}
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		header = strings.TrimSpace(rest)
	}
	if len(header) < minTokenLen || strings.ContainsAny(header, " \t") {
		return "", ErrMalformed
	}
	return header, nil
}

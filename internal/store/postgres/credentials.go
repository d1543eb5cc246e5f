package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lexia-ai/lexia/internal/store"
)

const credentialColumns = `id, key_hash, name, principal, group_id, permissions,
	quota, revoked, created_at, last_used_at, expires_at`

// CreateCredential implements [store.CredentialStore].
func (s *Store) CreateCredential(ctx context.Context, c *store.Credential) error {
	const q = `
		INSERT INTO credentials
		    (id, key_hash, name, principal, group_id, permissions, quota, revoked, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		c.ID,
		c.KeyHash,
		c.Name,
		c.Principal,
		c.GroupID,
		c.Permissions,
		c.Quota,
		c.Revoked,
		c.CreatedAt,
		c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("credential store: create: %w", err)
	}
	return nil
}

// CredentialByHash implements [store.CredentialStore].
func (s *Store) CredentialByHash(ctx context.Context, keyHash string) (*store.Credential, error) {
	const q = `
		SELECT ` + credentialColumns + `
		FROM   credentials
		WHERE  key_hash = $1`

	return s.queryCredential(ctx, q, keyHash)
}

// CredentialByID implements [store.CredentialStore].
func (s *Store) CredentialByID(ctx context.Context, id string) (*store.Credential, error) {
	const q = `
		SELECT ` + credentialColumns + `
		FROM   credentials
		WHERE  id = $1`

	return s.queryCredential(ctx, q, id)
}

func (s *Store) queryCredential(ctx context.Context, q string, arg any) (*store.Credential, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("credential store: query: %w", err)
	}
	c, err := pgx.CollectOneRow(rows, scanCredential)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credential store: scan: %w", err)
	}
	return &c, nil
}

// ListCredentials implements [store.CredentialStore].
func (s *Store) ListCredentials(ctx context.Context, principal string, includeRevoked bool) ([]store.Credential, error) {
	q := `
		SELECT ` + credentialColumns + `
		FROM   credentials
		WHERE  principal = $1`
	if !includeRevoked {
		q += `
		  AND  NOT revoked`
	}
	q += `
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, principal)
	if err != nil {
		return nil, fmt.Errorf("credential store: list: %w", err)
	}
	creds, err := pgx.CollectRows(rows, scanCredential)
	if err != nil {
		return nil, fmt.Errorf("credential store: scan rows: %w", err)
	}
	if creds == nil {
		creds = []store.Credential{}
	}
	return creds, nil
}

// RevokeCredential implements [store.CredentialStore]. Revocation is
// idempotent: the guard on revoked makes repeat calls report changed=false.
func (s *Store) RevokeCredential(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE credentials
		SET    revoked = TRUE
		WHERE  id = $1
		  AND  NOT revoked`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("credential store: revoke: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// Distinguish "already revoked" from "no such credential".
	if _, err := s.CredentialByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// DeleteCredential implements [store.CredentialStore].
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	const q = `DELETE FROM credentials WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("credential store: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchCredential implements [store.CredentialStore].
func (s *Store) TouchCredential(ctx context.Context, id string, t time.Time) error {
	const q = `UPDATE credentials SET last_used_at = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, t)
	if err != nil {
		return fmt.Errorf("credential store: touch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanCredential(row pgx.CollectableRow) (store.Credential, error) {
	var c store.Credential
	err := row.Scan(
		&c.ID,
		&c.KeyHash,
		&c.Name,
		&c.Principal,
		&c.GroupID,
		&c.Permissions,
		&c.Quota,
		&c.Revoked,
		&c.CreatedAt,
		&c.LastUsedAt,
		&c.ExpiresAt,
	)
	return c, err
}

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/internal/store/memstore"
)

func newAuthenticator(t *testing.T) (*Authenticator, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	return New(ms, "test-salt", "lx_", nil), ms
}

func TestIssueTokenShape(t *testing.T) {
	a, _ := newAuthenticator(t)

	issued, err := a.Issue(context.Background(), IssueParams{
		Name:      "ci key",
		Principal: "acme",
		Quota:     60,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(issued.Token, "lx_") {
		t.Errorf("token = %q, want lx_ prefix", issued.Token)
	}
	// 32 random bytes in unpadded base64url is 43 characters.
	if got := len(issued.Token); got != len("lx_")+43 {
		t.Errorf("token length = %d, want %d", got, len("lx_")+43)
	}
	if issued.Credential.KeyHash == issued.Token {
		t.Error("stored hash must not equal the plaintext token")
	}
	if len(issued.Credential.Permissions) != 1 || issued.Credential.Permissions[0] != "*" {
		t.Errorf("default permissions = %v, want [*]", issued.Credential.Permissions)
	}
}

func TestIssueTokensAreUnique(t *testing.T) {
	a, _ := newAuthenticator(t)
	seen := map[string]bool{}
	for range 10 {
		issued, err := a.Issue(context.Background(), IssueParams{Principal: "acme"})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[issued.Token] {
			t.Fatal("duplicate token issued")
		}
		seen[issued.Token] = true
	}
}

func TestVerify(t *testing.T) {
	a, _ := newAuthenticator(t)
	issued, err := a.Issue(context.Background(), IssueParams{Principal: "acme"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for _, header := range []string{
		issued.Token,
		"Bearer " + issued.Token,
		"Bearer  " + issued.Token, // extra space after scheme
	} {
		cred, err := a.Verify(context.Background(), header)
		if err != nil {
			t.Errorf("Verify(%q): %v", header, err)
			continue
		}
		if cred.Principal != "acme" {
			t.Errorf("Verify(%q).Principal = %q, want %q", header, cred.Principal, "acme")
		}
	}
}

func TestVerifyErrors(t *testing.T) {
	a, ms := newAuthenticator(t)
	issued, err := a.Issue(context.Background(), IssueParams{Principal: "acme"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expired, err := a.Issue(context.Background(), IssueParams{Principal: "acme"})
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	cred, err := ms.CredentialByID(context.Background(), expired.Credential.ID)
	if err != nil {
		t.Fatalf("CredentialByID: %v", err)
	}
	if err := ms.DeleteCredential(context.Background(), cred.ID); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	cred.ExpiresAt = &past
	if err := ms.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	revoked, err := a.Issue(context.Background(), IssueParams{Principal: "acme"})
	if err != nil {
		t.Fatalf("Issue revoked: %v", err)
	}
	if _, err := ms.RevokeCredential(context.Background(), revoked.Credential.ID); err != nil {
		t.Fatalf("RevokeCredential: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"empty", "", ErrMissing},
		{"whitespace only", "   ", ErrMissing},
		{"too short", "Bearer abc", ErrMalformed},
		{"embedded space", "lx_abcdef ghijklmnopqrstuvwxyz012345", ErrMalformed},
		{"unknown token", "lx_" + strings.Repeat("x", 43), ErrInvalid},
		{"wrong salt domain", issued.Token[:len(issued.Token)-1] + "?", ErrInvalid},
		{"expired", expired.Token, ErrExpired},
		{"revoked", revoked.Token, ErrRevoked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(context.Background(), tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify(%q) err = %v, want %v", tt.header, err, tt.wantErr)
			}
		})
	}
}

func TestHashIsSalted(t *testing.T) {
	ms := memstore.New()
	a1 := New(ms, "salt-one", "lx_", nil)
	a2 := New(ms, "salt-two", "lx_", nil)

	if a1.Hash("lx_token") == a2.Hash("lx_token") {
		t.Error("same token under different salts must hash differently")
	}
	if a1.Hash("lx_token") != a1.Hash("lx_token") {
		t.Error("hash must be deterministic for a fixed salt")
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		perms []string
		check string
		want  bool
	}{
		{[]string{"*"}, "transcribe", true},
		{[]string{"transcribe"}, "transcribe", true},
		{[]string{"transcribe"}, "diarize", false},
		{nil, "transcribe", false},
	}
	for _, tt := range tests {
		c := &store.Credential{Permissions: tt.perms}
		if got := c.HasPermission(tt.check); got != tt.want {
			t.Errorf("HasPermission(%v, %q) = %v, want %v", tt.perms, tt.check, got, tt.want)
		}
	}
}

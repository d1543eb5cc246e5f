package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lexia-ai/lexia/internal/auth"
	"github.com/lexia-ai/lexia/internal/store"
)

type contextKey int

const credentialKey contextKey = iota

// credentialFrom returns the authenticated credential attached by withAuth.
// Handlers behind the auth middleware may assume it is present.
func credentialFrom(r *http.Request) *store.Credential {
	c, _ := r.Context().Value(credentialKey).(*store.Credential)
	return c
}

// withAuth verifies the Authorization header and attaches the credential to
// the request context. Failures are mapped onto the public auth error codes.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := s.auth.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			code, message := authErrorCode(err)
			writeError(w, http.StatusUnauthorized, errTypeAuth, code, "", message)
			return
		}
		ctx := context.WithValue(r.Context(), credentialKey, cred)
		next(w, r.WithContext(ctx))
	}
}

func authErrorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, auth.ErrMissing):
		return "missing_authorization", "missing Authorization header"
	case errors.Is(err, auth.ErrRevoked):
		return "auth_revoked", "API key has been revoked"
	case errors.Is(err, auth.ErrExpired):
		return "auth_expired", "API key has expired"
	default:
		return "invalid_api_key", "invalid API key"
	}
}

// withRateLimit enforces the credential's per-minute quota. It must run
// inside withAuth. Every response carries the X-RateLimit-* headers;
// rejections additionally carry Retry-After.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred := credentialFrom(r)
		d := s.limiter.Allow(r.Context(), cred.ID, cred.Quota)

		if d.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			reset := time.Now().Add(d.RetryAfter).Unix()
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		}
		if !d.Allowed {
			s.metrics.RecordRateLimitRejection(r.Context(), cred.ID)
			w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, errTypeRateLimit,
				"rate_limit_exceeded", "", "rate limit exceeded, retry later")
			return
		}
		next(w, r)
	}
}

// withCORS handles cross-origin headers and preflight requests. An empty
// origin list means same-origin only; "*" allows any origin.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	allowAny := false
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAny || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── Authentication ─────────────────────────────────────────────────────────
// A bearer token is resolved to an identity, and the identity to a ledger
// user (created with the initial grant on first sight).

type ctxKey int

const userKey ctxKey = iota

// userFrom returns the authenticated user, or nil.
func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey).(*domain.User)
	return u
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the request's token. A missing token yields (nil, nil).
func (s *Server) authenticate(r *http.Request) (*domain.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}
	if s.verifier == nil {
		return nil, domain.ErrUnauthorized
	}
	id, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		log.Printf("[api] token rejected: %v (req=%s)", err, middleware.GetReqID(r.Context()))
		return nil, domain.ErrUnauthorized
	}
	return s.ledger.EnsureUser(r.Context(), id)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(r)
		if err == nil && u == nil {
			err = domain.ErrUnauthorized
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// optionalAuth attaches the user when a valid token is present. An invalid
// token is still rejected.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if u != nil {
			r = r.WithContext(context.WithValue(r.Context(), userKey, u))
		}
		next.ServeHTTP(w, r)
	})
}

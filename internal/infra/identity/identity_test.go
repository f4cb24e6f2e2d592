package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/focal-ai/focal/internal/domain"
)

// ─── JWT ────────────────────────────────────────────────────────────────────

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	tok, err := v.Sign(domain.Identity{Email: "ada@example.com", Name: "Ada", SubjectID: "42"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	id, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if id.Email != "ada@example.com" || id.Name != "Ada" || id.SubjectID != "42" {
		t.Errorf("identity = %+v", id)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	other := NewJWTVerifier("different")
	wrongKey, _ := other.Sign(domain.Identity{Email: "ada@example.com"}, time.Hour)
	expired, _ := v.Sign(domain.Identity{Email: "ada@example.com"}, -time.Minute)
	noEmail, _ := v.Sign(domain.Identity{}, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong key", wrongKey},
		{"expired", expired},
		{"no email", noEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

// ─── Google tokeninfo ───────────────────────────────────────────────────────

func newGoogleTestVerifier(t *testing.T, status int, body string) *GoogleVerifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") == "" {
			t.Error("id_token query param missing")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	v := NewGoogleVerifier("client-123", time.Second)
	v.Endpoint = srv.URL
	return v
}

func TestGoogleVerifier_Valid(t *testing.T) {
	v := newGoogleTestVerifier(t, http.StatusOK,
		`{"aud":"client-123","email":"ada@example.com","name":"Ada","picture":"p.png","sub":"g-1"}`)
	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if id.Email != "ada@example.com" || id.SubjectID != "g-1" || id.Picture != "p.png" {
		t.Errorf("identity = %+v", id)
	}
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status", http.StatusBadRequest, `{"error":"invalid_token"}`},
		{"wrong audience", http.StatusOK, `{"aud":"someone-else","email":"ada@example.com"}`},
		{"no email", http.StatusOK, `{"aud":"client-123"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newGoogleTestVerifier(t, tt.status, tt.body)
			_, err := v.Verify(context.Background(), "tok")
			if !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("Verify() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

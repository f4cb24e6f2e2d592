// Package identity verifies bearer tokens against an identity provider.
// The rest of the system only needs a stable email from the result.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/focal-ai/focal/internal/domain"
)

// GoogleTokenInfoURL validates Google ID tokens.
const GoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier checks ID tokens with Google's tokeninfo endpoint and
// requires the audience to match ClientID.
type GoogleVerifier struct {
	ClientID string
	Endpoint string
	client   *http.Client
}

// NewGoogleVerifier creates a verifier for clientID.
func NewGoogleVerifier(clientID string, timeout time.Duration) *GoogleVerifier {
	return &GoogleVerifier{
		ClientID: clientID,
		Endpoint: GoogleTokenInfoURL,
		client:   &http.Client{Timeout: timeout},
	}
}

type tokenInfo struct {
	Aud     string `json:"aud"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Sub     string `json:"sub"`
}

// Verify implements domain.TokenVerifier.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint+"?id_token="+url.QueryEscape(token), nil)
	if err != nil {
		return domain.Identity{}, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("token verification failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("%w: invalid or expired token", domain.ErrUnauthorized)
	}
	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.Identity{}, fmt.Errorf("decode tokeninfo: %w", err)
	}
	if info.Aud != v.ClientID {
		return domain.Identity{}, fmt.Errorf("%w: audience mismatch", domain.ErrUnauthorized)
	}
	if info.Email == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no email", domain.ErrUnauthorized)
	}
	return domain.Identity{
		Email:     info.Email,
		Name:      info.Name,
		Picture:   info.Picture,
		SubjectID: info.Sub,
	}, nil
}

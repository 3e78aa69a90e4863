package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// refreshMargin renews the token slightly before the backend expires it so
// an in-flight request never races the expiry.
const refreshMargin = 30 * time.Second

// TokenProvider exchanges client credentials for a bearer token and caches
// it until expiry.
type TokenProvider struct {
	http         *http.Client
	baseURL      string
	clientID     string
	clientSecret string

	mu      sync.Mutex
	token   string
	expires time.Time

	now func() time.Time
}

// NewTokenProvider builds a provider bound to the backend OAuth endpoint.
func NewTokenProvider(httpClient *http.Client, baseURL, clientID, clientSecret string) *TokenProvider {
	return &TokenProvider{
		http:         httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing it when expired.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(refreshMargin).Before(p.expires) {
		return p.token, nil
	}

	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request: status %s: %s", resp.Status, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		Expires     int64  `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token decode: empty access token")
	}

	p.token = payload.AccessToken
	p.expires = time.Unix(payload.Expires, 0)
	logger.Debug(ctx, "commerce", "token.refreshed",
		slog.Time("expires", p.expires),
	)
	return p.token, nil
}

// Package iol is the REST client for the local broker's market data API.
// Authentication is OAuth2 password grant with refresh-token rotation; the
// access token is renewed ahead of expiry and once more on a 401.
package iol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// expirySlack renews the token this long before the server-reported expiry.
const expirySlack = 20 * time.Second

// Client is the broker REST client. Safe for concurrent use; token state is
// guarded by a mutex so parallel quote fetches share one credential flow.
type Client struct {
	baseURL    string
	username   string
	password   string
	market     string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

var _ domain.QuoteSource = (*Client)(nil)

// NewClient creates a broker client.
//
// baseURL is the API root, e.g. "https://api.invertironline.com".
// market is the venue segment quotes are requested from, e.g. "bcba".
func NewClient(baseURL, username, password, market string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		market:   market,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Name identifies this source in quote provenance fields.
func (c *Client) Name() string { return "iol" }

// GetQuote fetches the current quote for symbol on the configured market.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	path := fmt.Sprintf("/api/v2/%s/Titulos/%s/Cotizacion", url.PathEscape(c.market), url.PathEscape(symbol))

	body, err := c.doAuthorized(ctx, path)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("iol: get quote %s: %w", symbol, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("iol: decode quote %s: %w", symbol, err)
	}

	return resp.toDomain(symbol, c.Name(), time.Now()), nil
}

// doAuthorized performs a GET with a valid bearer token, refreshing once on
// a 401 in case the token was revoked server-side before its expiry.
func (c *Client) doAuthorized(ctx context.Context, path string) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = c.forceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		status, body, err = c.get(ctx, path, token)
		if err != nil {
			return nil, err
		}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("HTTP %d: %w", status, domain.ErrUnauthorized)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("HTTP %d: %w", status, domain.ErrQuoteUnavailable)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("HTTP %d: %w", status, domain.ErrQuoteUnavailable)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// token returns a valid access token, logging in or refreshing as needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}
	if c.refreshToken != "" {
		if err := c.refreshLocked(ctx); err == nil {
			return c.accessToken, nil
		}
		// Refresh tokens get invalidated on password changes and server
		// restarts; fall through to a fresh password grant.
	}
	if err := c.loginLocked(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// forceRefresh discards the cached access token and obtains a new one.
func (c *Client) forceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accessToken = ""
	if c.refreshToken != "" {
		if err := c.refreshLocked(ctx); err == nil {
			return c.accessToken, nil
		}
	}
	if err := c.loginLocked(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"grant_type": {"password"},
	}
	return c.tokenRequestLocked(ctx, form)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
	}
	return c.tokenRequestLocked(ctx, form)
}

func (c *Client) tokenRequestLocked(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint HTTP %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("empty access token: %w", domain.ErrUnauthorized)
	}

	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 900
	}
	c.expiresAt = time.Now().Add(time.Duration(expiresIn)*time.Second - expirySlack)
	return nil
}

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/portfolio-api/internal/config"
	"github.com/portfolio-api/internal/domain"
)

// Client talks to a GoTrue-compatible identity REST surface. Admin endpoints
// authenticate with the service-role key; user endpoints with the caller's
// bearer token. Raw provider error bodies are logged here and never reach
// API clients — handlers only ever see wrapped sentinel errors.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.IdentityBaseURL, "/"),
		serviceKey: cfg.IdentityServiceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreateAccount(ctx context.Context, email, password string, meta domain.AccountMetadata) (*domain.Account, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     meta,
	}
	var acct domain.Account
	if err := c.do(ctx, http.MethodPost, "/signup", c.serviceKey, body, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) PasswordSignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var sess domain.Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var sess domain.Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) MintSession(ctx context.Context, accountID string) (*domain.Session, error) {
	var sess domain.Session
	path := "/admin/users/" + url.PathEscape(accountID) + "/session"
	if err := c.do(ctx, http.MethodPost, path, c.serviceKey, struct{}{}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) GetAccount(ctx context.Context, accessToken string) (*domain.Account, error) {
	var acct domain.Account
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) LookupByID(ctx context.Context, accountID string) (*domain.Account, error) {
	var acct domain.Account
	path := "/admin/users/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, c.serviceKey, nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) LookupByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return c.lookup(ctx, "email", email)
}

func (c *Client) LookupByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return c.lookup(ctx, "phone", phone)
}

func (c *Client) UpdateMetadata(ctx context.Context, accountID string, patch map[string]interface{}) (*domain.Account, error) {
	body := map[string]interface{}{"user_metadata": patch}
	var acct domain.Account
	path := "/admin/users/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodPut, path, c.serviceKey, body, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) SendRecovery(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/recover", "", map[string]string{"email": email}, nil)
}

func (c *Client) ExchangeRecoveryToken(ctx context.Context, token, newPassword string) (*domain.Session, error) {
	var sess domain.Session
	body := map[string]string{"type": "recovery", "token": token}
	if err := c.do(ctx, http.MethodPost, "/verify", "", body, &sess); err != nil {
		return nil, err
	}
	// The recovery session authorizes the password change itself.
	update := map[string]string{"password": newPassword}
	if err := c.do(ctx, http.MethodPut, "/user", sess.AccessToken, update, nil); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) lookup(ctx context.Context, field, value string) (*domain.Account, error) {
	var out struct {
		Users []domain.Account `json:"users"`
	}
	path := "/admin/users?" + field + "=" + url.QueryEscape(value)
	if err := c.do(ctx, http.MethodGet, path, c.serviceKey, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, fmt.Errorf("no account for %s: %w", field, domain.ErrNotFound)
	}
	return &out.Users[0], nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("identity provider error",
			"method", method, "path", req.URL.Path, "status", resp.StatusCode, "body", string(detail))
		return statusErr(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

// statusErr maps a provider HTTP status to a domain sentinel with a static
// message. Provider error text is intentionally not carried through.
func statusErr(status int) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("identity provider rejected credentials: %w", domain.ErrUnauthorized)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("account state conflict: %w", domain.ErrConflict)
	case status >= 400 && status < 500:
		return fmt.Errorf("identity provider rejected request: %w", domain.ErrBadRequest)
	default:
		return fmt.Errorf("identity provider failure (status %d)", status)
	}
}

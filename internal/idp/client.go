package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the identity provider: the authenticate/renew/logout
// session API, and the admin-privileged attribute endpoint used to mirror
// tenant links onto the identity record.
//
// It implements token.Provider.
type Client struct {
	base       string
	http       *http.Client
	adminToken string
}

type Config struct {
	// BaseURL of the identity provider, e.g. "https://idp.internal".
	BaseURL string

	// AdminToken authorizes attribute updates. Optional; without it
	// UpdateTenantAttribute fails.
	AdminToken string

	Timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("idp: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		base:       cfg.BaseURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		adminToken: cfg.AdminToken,
	}, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Authenticate performs the silent handshake. A 401 means no session exists
// and is not an error: the caller stays unauthenticated while the provider
// drives an interactive login.
func (c *Client) Authenticate(ctx context.Context) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/session/authenticate", nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("idp: authenticate: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", false, fmt.Errorf("idp: authenticate: decode: %w", err)
		}
		return body.Token, true, nil
	case http.StatusUnauthorized:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("idp: authenticate: unexpected status %d", resp.StatusCode)
	}
}

// Renew asks for a credential valid for at least minValidity.
func (c *Client) Renew(ctx context.Context, minValidity time.Duration) (string, error) {
	u := c.base + "/session/renew?min_validity=" + url.QueryEscape(minValidity.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("idp: renew: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("idp: renew: unexpected status %d", resp.StatusCode)
	}
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("idp: renew: decode: %w", err)
	}
	return body.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/session/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("idp: logout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("idp: logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// UpdateTenantAttribute mirrors the tenant ids linked to a profile onto the
// identity record, keyed by subject id. Downstream systems use the attribute
// for access decisions outside this engine.
func (c *Client) UpdateTenantAttribute(ctx context.Context, subjectID string, tenantIDs []string) error {
	if subjectID == "" {
		return errors.New("idp: subject id is required")
	}
	if c.adminToken == "" {
		return errors.New("idp: admin token not configured")
	}

	payload, err := json.Marshal(map[string]any{"tenant_ids": tenantIDs})
	if err != nil {
		return err
	}
	u := c.base + "/admin/identities/" + url.PathEscape(subjectID) + "/attributes/tenants"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("idp: attribute update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("idp: attribute update: unexpected status %d", resp.StatusCode)
	}
	return nil
}

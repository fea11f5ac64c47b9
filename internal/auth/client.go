package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/devforge/workbench/internal/infrastructure/config"
)

const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// DeviceCode is the device-code endpoint response. Durations are in
// seconds as the protocol specifies.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse is the token endpoint response. Exactly one of
// AccessToken and Error is set; Error carries the protocol codes
// (authorization_pending, slow_down, expired_token, access_denied).
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// User is the authenticated user's profile.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Client talks to the three authorization endpoints. The poll loop is
// the protocol's own retry mechanism, so no transport-level retries are
// layered on top of it.
type Client struct {
	http *resty.Client
	cfg  config.AuthConfig
}

// NewClient creates an authorization client for the configured endpoints.
func NewClient(cfg config.AuthConfig) *Client {
	httpClient := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "workbench/1.0")

	return &Client{http: httpClient, cfg: cfg}
}

// RequestDeviceCode asks the server for a device/user code pair.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	var dc DeviceCode
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id": c.cfg.ClientID,
			"scope":     c.cfg.Scope,
		}).
		SetResult(&dc).
		Post(c.cfg.DeviceCodeURL)
	if err != nil {
		return nil, fmt.Errorf("auth: device code request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("auth: device code request: %s", resp.Status())
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, errors.New("auth: device code response incomplete")
	}
	return &dc, nil
}

// PollToken issues one token poll for the attempt's device code. A
// response carrying a protocol error code is returned as a
// TokenResponse, not an error; err covers transport failures and
// unparseable responses only.
func (c *Client) PollToken(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	var tok TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":   c.cfg.ClientID,
			"device_code": deviceCode,
			"grant_type":  deviceGrantType,
		}).
		// Some servers report protocol errors with a 200, others with a
		// 4xx; decode the same shape either way.
		SetResult(&tok).
		SetError(&tok).
		Post(c.cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("auth: token request: %w", err)
	}
	if tok.AccessToken == "" && tok.Error == "" {
		return nil, fmt.Errorf("auth: token endpoint: %s", resp.Status())
	}
	return &tok, nil
}

// FetchUser retrieves the profile for an access token.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&user).
		Get(c.cfg.UserURL)
	if err != nil {
		return nil, fmt.Errorf("auth: user request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("auth: user request: %s", resp.Status())
	}
	return &user, nil
}

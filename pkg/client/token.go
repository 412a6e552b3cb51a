package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goodaegwang/cirrus/internal/api"
	"github.com/goodaegwang/cirrus/internal/service"
)

// TokenRequest holds the form fields of a token request. ClientID and
// ClientSecret travel in the Basic Authorization header, never in the
// form body.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string

	// ServiceID scopes the request to one service via the per-service
	// token route. Empty hits the platform route.
	ServiceID string

	// PushKey and OS register a device push key alongside a
	// service-scoped password grant.
	PushKey string
	OS      string
}

// IssueToken requests a token pair from the server.
func (c *Client) IssueToken(ctx context.Context, req TokenRequest) (*service.Token, string, error) {
	form := url.Values{}
	form.Set("grant_type", req.GrantType)
	if req.Username != "" {
		form.Set("username", req.Username)
	}
	if req.Password != "" {
		form.Set("password", req.Password)
	}
	if req.RefreshToken != "" {
		form.Set("refresh_token", req.RefreshToken)
	}
	if req.PushKey != "" {
		form.Set("pushkey", req.PushKey)
	}
	if req.OS != "" {
		form.Set("os", req.OS)
	}

	path := api.TokenRoute
	if req.ServiceID != "" {
		path = strings.ReplaceAll(api.ServiceTokenRoute, "{serviceId}", url.PathEscape(req.ServiceID))
	}

	var tok service.Token
	correlation, err := c.postTokenForm(ctx, path, req.ClientID, req.ClientSecret, form, &tok)
	return &tok, correlation, err
}

// ExchangeAppKey trades an opaque app key for a token pair.
func (c *Client) ExchangeAppKey(ctx context.Context, clientID, clientSecret, appKey string) (*service.Token, string, error) {
	form := url.Values{}
	form.Set("appKey", appKey)

	var tok service.Token
	correlation, err := c.postTokenForm(ctx, api.AppKeyRoute, clientID, clientSecret, form, &tok)
	return &tok, correlation, err
}

// VerifyToken asks the server to verify an access token and returns the
// authenticated context behind it.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) (*service.AuthContext, string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.VerificationRoute).
		build(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var auth service.AuthContext
	correlation, err := c.do(req, &auth)
	return &auth, correlation, err
}

// postTokenForm issues a form-encoded POST with Basic client auth. The
// token endpoints authenticate the client per request, so the session
// bearer token (if any) is never attached here.
func (c *Client) postTokenForm(ctx context.Context, path, clientID, clientSecret string, form url.Values, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(path).
		build(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return correlationFromResponse(resp), fmt.Errorf("connection failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return correlationFromResponse(resp), parseErrorResponse(resp)
	}
	return correlationFromResponse(resp), decodeInto(resp, result)
}

func correlationFromResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Header.Get("X-Correlation-ID")
}

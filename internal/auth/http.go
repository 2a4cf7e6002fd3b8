package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProvider talks to the backend auth endpoints:
//
//	POST {base}/v1/auth/anonymous -> {"token": "..."}
//	POST {base}/v1/auth/signout   (Authorization: Bearer <token>)
type HTTPProvider struct {
	BaseURL    string
	httpClient *http.Client
}

func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

func (p *HTTPProvider) SignInAnonymously(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/auth/anonymous", bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anonymous sign-in request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("anonymous sign-in failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("anonymous sign-in decode: %w body=%s", err, string(raw))
	}
	return res.Token, nil
}

func (p *HTTPProvider) SignOut(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/auth/signout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign-out request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("sign-out failed: http=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}

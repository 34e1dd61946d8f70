package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwitchTokenURL issues app access tokens for IGDB.
const TwitchTokenURL = "https://id.twitch.tv/oauth2/token"

// Token is a Twitch app access token.
type Token struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   time.Duration `json:"-"`
	TokenType   string        `json:"token_type"`
}

// FetchTwitchToken runs the client-credentials grant against tokenURL.
func FetchTwitchToken(ctx context.Context, hc *http.Client, tokenURL, clientID, clientSecret string) (Token, error) {
	if clientID == "" || clientSecret == "" {
		return Token{}, fmt.Errorf("twitch client id and secret are required")
	}
	if hc == nil {
		hc = http.DefaultClient
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("twitch oauth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Token{}, fmt.Errorf("twitch oauth failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}
	if raw.AccessToken == "" {
		return Token{}, fmt.Errorf("twitch oauth: empty access token")
	}

	return Token{
		AccessToken: raw.AccessToken,
		ExpiresIn:   time.Duration(raw.ExpiresIn) * time.Second,
		TokenType:   raw.TokenType,
	}, nil
}

package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const apiBase = "https://api.github.com"

// AppAuth mints installation tokens for a GitHub App. Tokens are cached
// per repository until shortly before expiry.
type AppAuth struct {
	AppID      string
	PrivateKey string

	mu    sync.Mutex
	cache map[string]*InstallationToken
}

// InstallationToken is a short-lived GitHub App installation access token.
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

// GenerateJWT creates the App-level JWT used to look up installations.
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// GetInstallationToken returns a valid installation token for "owner/repo",
// reusing the cached one when it has more than a minute of life left.
func (a *AppAuth) GetInstallationToken(repo string) (*InstallationToken, error) {
	a.mu.Lock()
	if cached, ok := a.cache[repo]; ok && time.Until(cached.ExpiresAt) > time.Minute {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, err
	}

	installationID, err := a.getInstallationID(jwtToken, repo)
	if err != nil {
		return nil, err
	}

	token, err := a.createAccessToken(jwtToken, installationID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.cache == nil {
		a.cache = make(map[string]*InstallationToken)
	}
	a.cache[repo] = token
	a.mu.Unlock()

	return token, nil
}

func (a *AppAuth) getInstallationID(jwtToken, repo string) (int64, error) {
	body, err := appAPIGet(fmt.Sprintf("%s/repos/%s/installation", apiBase, repo), jwtToken)
	if err != nil {
		return 0, fmt.Errorf("failed to get installation for %s: %w", repo, err)
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse installation response: %w", err)
	}
	return result.ID, nil
}

func (a *AppAuth) createAccessToken(jwtToken string, installationID int64) (*InstallationToken, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", apiBase, installationID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("access token request failed: %d %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse access token response: %w", err)
	}

	return &InstallationToken{Token: result.Token, ExpiresAt: result.ExpiresAt}, nil
}

func appAPIGet(url, jwtToken string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed: %d %s", resp.StatusCode, string(body))
	}
	return body, nil
}

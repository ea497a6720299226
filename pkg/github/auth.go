package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Authentication constants.
const (
	maxTokenLength     = 100 // Maximum expected length for GitHub tokens
	minTokenLength     = 40  // Minimum expected length for GitHub tokens
	classicTokenLength = 40  // Length of classic GitHub tokens
	maxAppID           = 999999999
	filePermReadOnly   = 0o400 // Read-only file permissions
	filePermOwnerRW    = 0o600 // Owner read-write file permissions

	// installationTokenEarlyExpiry refreshes installation tokens before GitHub expires them.
	installationTokenEarlyExpiry = 5 * time.Minute
	installationTokenTimeout     = 30 * time.Second
)

// AppConfig configures GitHub App authentication.
type AppConfig struct {
	HTTPClient     HTTPDoer
	Now            func() time.Time
	AppID          string
	KeyPath        string // Absolute path to the PEM key, used when PrivateKey is empty
	BaseURL        string
	PrivateKey     []byte
	InstallationID int64
}

// appTokenSource mints installation access tokens for a GitHub App.
type appTokenSource struct {
	httpClient     HTTPDoer
	now            func() time.Time
	appID          string
	baseURL        string
	privateKey     []byte
	installationID int64
}

// NewAppTokenSource returns a token source yielding installation access tokens.
// Tokens are reused until shortly before they expire.
func NewAppTokenSource(cfg AppConfig) (oauth2.TokenSource, error) {
	if err := validateAppID(cfg.AppID); err != nil {
		return nil, err
	}
	if cfg.InstallationID <= 0 {
		return nil, errors.New("GitHub App installation ID is required")
	}
	key, err := loadPrivateKey(cfg.PrivateKey, cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	src := &appTokenSource{
		httpClient:     cfg.HTTPClient,
		now:            cfg.Now,
		appID:          cfg.AppID,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		privateKey:     key,
		installationID: cfg.InstallationID,
	}
	if src.httpClient == nil {
		src.httpClient = &http.Client{Timeout: installationTokenTimeout}
	}
	if src.now == nil {
		src.now = time.Now
	}
	if src.baseURL == "" {
		src.baseURL = DefaultBaseURL
	}

	// Fail fast on a key that cannot sign.
	if _, err := generateJWT(src.appID, src.privateKey, src.now()); err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	slog.Info("[AUTH] Using GitHub App installation token", "app_id", cfg.AppID, "installation_id", cfg.InstallationID)

	return oauth2.ReuseTokenSourceWithExpiry(nil, src, installationTokenEarlyExpiry), nil
}

// Token creates a new installation access token.
func (s *appTokenSource) Token() (*oauth2.Token, error) {
	jwtToken, err := generateJWT(s.appID, s.privateKey, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), installationTokenTimeout)
	defer cancel()

	apiURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.baseURL, s.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation token: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("failed to create installation token (status %d) and read error: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to create installation token (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		ExpiresAt time.Time `json:"expires_at"`
		Token     string    `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return nil, errors.New("received empty installation token")
	}

	slog.Info("[AUTH] Created installation access token", "installation_id", s.installationID, "expires_at", tokenResp.ExpiresAt.Format(time.RFC3339))
	return &oauth2.Token{AccessToken: tokenResp.Token, TokenType: "Bearer", Expiry: tokenResp.ExpiresAt}, nil
}

// generateJWT generates a JWT token for GitHub App authentication.
func generateJWT(appID string, privateKey []byte, now time.Time) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format if PKCS1 fails
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	claims := jwt.MapClaims{
		"iat": now.Add(-time.Minute).Unix(), // clock drift allowance
		"exp": now.Add(10 * time.Minute).Unix(), // GitHub Apps JWTs expire after 10 minutes max
		"iss": appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// validateAppID validates the GitHub App ID.
func validateAppID(appID string) error {
	if appID == "" {
		return errors.New("GitHub App ID is required")
	}
	appIDNum, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("GITHUB_APP_ID must be numeric: %w", err)
	}
	if appIDNum <= 0 || appIDNum > maxAppID {
		return errors.New("GITHUB_APP_ID out of valid range")
	}
	return nil
}

// loadPrivateKey loads the private key from content or file path.
func loadPrivateKey(privateKeyContent []byte, keyPath string) ([]byte, error) {
	var privateKey []byte
	var err error

	switch {
	case len(privateKeyContent) > 0:
		privateKey = privateKeyContent
	case keyPath != "":
		privateKey, err = readPrivateKeyFile(keyPath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("no private key provided (neither content nor path)")
	}

	if !bytes.Contains(privateKey, []byte("BEGIN RSA PRIVATE KEY")) &&
		!bytes.Contains(privateKey, []byte("BEGIN PRIVATE KEY")) {
		return nil, errors.New("private key does not appear to be a valid PEM private key")
	}

	return privateKey, nil
}

// readPrivateKeyFile reads and validates a private key file.
func readPrivateKeyFile(keyPath string) ([]byte, error) {
	cleanPath := filepath.Clean(keyPath)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("GITHUB_APP_KEY_PATH must be an absolute path")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access private key file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, errors.New("GITHUB_APP_KEY_PATH must be a file, not a directory")
	}

	// Check file permissions - must be exactly 0600 or 0400
	perm := fileInfo.Mode().Perm()
	if perm != filePermOwnerRW && perm != filePermReadOnly {
		return nil, fmt.Errorf("private key file has insecure permissions %04o (must be 0600 or 0400)", perm)
	}

	return os.ReadFile(cleanPath)
}

// validateToken validates a GitHub personal access token.
func validateToken(token string) error {
	if token == "" {
		return errors.New("no GitHub token found")
	}
	if len(token) > maxTokenLength || len(token) < minTokenLength {
		return errors.New("invalid token length")
	}

	// GitHub tokens have specific prefixes
	validPrefixes := []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}

	// Could be a classic token (40 hex chars)
	if len(token) != classicTokenLength {
		return errors.New("invalid token format")
	}
	for _, r := range token {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return errors.New("invalid classic token format")
		}
	}

	return nil
}

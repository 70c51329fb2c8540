package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// TokenFile holds a saved authentication token.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Server    string    `json:"server"`
	Username  string    `json:"username"`
}

// IsExpired returns true if the token is known to have expired (with
// optional margin). A token without a known expiry never reports expired;
// the server's 401 stays the authority.
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// Login authenticates with username/password and returns the issued token.
// A 401 here means bad credentials and does not run the OnUnauthorized hook.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	body := protocol.LoginRequest{Username: username, Password: password}

	var resp protocol.LoginResponse
	if err := c.do(ctx, http.MethodPost, protocol.PathLogin, nil, body, &resp, false); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return nil, errors.New("login failed: server returned an empty token")
	}
	return &resp, nil
}

// TokenClaims reads the expiry and subject of a JWT without verifying its
// signature. The values are informational only.
func TokenClaims(token string) (expiresAt time.Time, subject string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, "", fmt.Errorf("parse token: %w", err)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	subject, _ = claims.GetSubject()
	return expiresAt, subject, nil
}

// NewTokenFile builds a TokenFile for a freshly issued token. Username falls
// back to the token subject.
func NewTokenFile(token, server, username string) *TokenFile {
	tf := &TokenFile{Token: token, Server: server, Username: username}
	if exp, sub, err := TokenClaims(token); err == nil {
		tf.ExpiresAt = exp
		if tf.Username == "" {
			tf.Username = sub
		}
	}
	return tf
}

// DefaultTokenFilePath returns the default path for the token file.
func DefaultTokenFilePath() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "FilesBoard", "token.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "filesboard", "token.json")
}

// SaveToken writes a token file to path.
func SaveToken(path string, tf *TokenFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadToken loads a token file from path.
func LoadToken(path string) (*TokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	return &tf, nil
}

// DeleteToken removes the token file at path. A missing file is not an error.
func DeleteToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

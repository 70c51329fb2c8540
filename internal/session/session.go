// Package session holds the authentication state of one client session.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/pkg/client"
	"github.com/ayxkaddd/FilesBoard/pkg/protocol"
)

// ErrNoToken is returned by Restore when no saved token exists.
var ErrNoToken = errors.New("no saved token")

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error)
}

// Session is the token of one user against one server. The token is read
// at request time, so a re-login applies to every request sent afterwards.
type Session struct {
	server    string
	tokenPath string

	mu            sync.RWMutex
	token         string
	username      string
	expiresAt     time.Time
	loginRequired bool
}

// New creates a session for server. tokenPath may be empty to disable
// persistence.
func New(server, tokenPath string) *Session {
	return &Session{server: server, tokenPath: tokenPath, loginRequired: true}
}

// Token implements client.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken installs token without persisting it.
func (s *Session) SetToken(token string) {
	tf := client.NewTokenFile(token, s.server, "")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(tf)
}

func (s *Session) apply(tf *client.TokenFile) {
	s.token = tf.Token
	s.username = tf.Username
	s.expiresAt = tf.ExpiresAt
	s.loginRequired = tf.Token == ""
}

// Restore loads the saved token. A token saved for another server is
// ignored.
func (s *Session) Restore() error {
	if s.tokenPath == "" {
		return ErrNoToken
	}
	tf, err := client.LoadToken(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoToken
		}
		return fmt.Errorf("load token: %w", err)
	}
	if tf.Server != "" && tf.Server != s.server {
		logging.Info("saved token belongs to another server, ignoring",
			logging.String("saved", tf.Server),
			logging.String("server", s.server),
		)
		return ErrNoToken
	}

	s.mu.Lock()
	s.apply(tf)
	s.mu.Unlock()
	logging.Debug("token restored", logging.String("username", tf.Username))
	return nil
}

// Login authenticates and persists the new token.
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string) error {
	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		return err
	}

	tf := client.NewTokenFile(resp.Token, s.server, username)
	s.mu.Lock()
	s.apply(tf)
	s.mu.Unlock()

	logging.Info("logged in", logging.String("username", username))
	if s.tokenPath != "" {
		if err := client.SaveToken(s.tokenPath, tf); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	return nil
}

// Logout forgets the token and removes the saved copy.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.apply(&client.TokenFile{})
	s.mu.Unlock()

	if s.tokenPath == "" {
		return nil
	}
	return client.DeleteToken(s.tokenPath)
}

// Expire marks the session as needing a new login. It is the transport's
// unauthorized hook; the token itself is kept until replaced.
func (s *Session) Expire() {
	s.mu.Lock()
	s.loginRequired = true
	s.mu.Unlock()
}

// LoginRequired reports whether the user must log in again.
func (s *Session) LoginRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loginRequired
}

// Username returns the logged in user, if known.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// ExpiresAt returns the token expiry read from its claims (zero if unknown).
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Server returns the server the session authenticates against.
func (s *Session) Server() string {
	return s.server
}

// TokenPath returns where the token is persisted.
func (s *Session) TokenPath() string {
	return s.tokenPath
}

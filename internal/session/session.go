package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/datathon-cli/internal/models"
)

const fileName = "session.json"

// Session is the explicit auth context: the current user and bearer token,
// loaded at startup and passed to the components that need it. It replaces
// ambient global state so that login and logout are explicit operations.
type Session struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user,omitempty"`

	path string
}

// TokenClaims mirrors the claims the backend signs into its tokens.
type TokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Load reads the persisted session from dir. A missing file yields an
// empty, unauthenticated session bound to the same path; a corrupt file is
// discarded with a warning rather than blocking every command.
func Load(dir string) (*Session, error) {
	s := &Session{path: filepath.Join(dir, fileName)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("Discarding unreadable session file")
		*s = Session{path: s.path}
	}
	return s, nil
}

// Save persists the session. The file is user-readable only since it holds
// the bearer token.
func (s *Session) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear drops the in-memory auth state and removes the persisted file.
func (s *Session) Clear() error {
	s.Token = ""
	s.User = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// Authenticated reports whether a token is present. Whether it is still
// valid is for the backend to decide.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// BearerToken implements api.TokenSource.
func (s *Session) BearerToken() string {
	if s == nil {
		return ""
	}
	return s.Token
}

// UserID returns the current user's id, falling back to the token claims
// when the user record was not persisted.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	if s.User != nil {
		return s.User.ID
	}
	if claims, err := s.Claims(); err == nil {
		return claims.UserID
	}
	return ""
}

// Claims decodes the token payload without verifying the signature. The
// client has no signing key; this is display-only information such as the
// expiry shown by whoami.
func (s *Session) Claims() (*TokenClaims, error) {
	if !s.Authenticated() {
		return nil, fmt.Errorf("not logged in")
	}
	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.Token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

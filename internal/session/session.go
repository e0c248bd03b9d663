// Package session holds the process-wide credential attached to backend calls.
package session

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the user the credential was issued for, when the token says so.
type Identity struct {
	UserID   string
	Email    string
	UserType string
}

// Session is an injected credential store. Reads are concurrent-safe; the only
// mutation after construction is Clear.
type Session struct {
	mu       sync.RWMutex
	token    string
	identity *Identity
	cleared  int
}

// New wraps a bearer token. Identity is read from the token's claims when it
// is a JWT; the signature is not checked because the backend owns that.
func New(token string) *Session {
	s := &Session{token: token}
	if token != "" {
		s.identity = identityFromToken(token)
	}
	return s
}

// Token returns the bearer credential, or "" when none is held.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the session user, or nil when unknown or cleared.
func (s *Session) Identity() *Identity {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Clear drops the credential and identity. It reports whether anything was
// held, so callers can tell the first clear from repeats.
func (s *Session) Clear() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" && s.identity == nil {
		return false
	}
	s.token = ""
	s.identity = nil
	s.cleared++
	return true
}

// Clears counts effective Clear calls.
func (s *Session) Clears() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cleared
}

type claims struct {
	UserID    string `json:"userId"`
	TeacherID string `json:"teacher_id"`
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	jwt.RegisteredClaims
}

func identityFromToken(token string) *Identity {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil
	}
	id := c.UserID
	if id == "" {
		id = c.TeacherID
	}
	if id == "" {
		id = c.Subject
	}
	if id == "" && c.Email == "" {
		return nil
	}
	return &Identity{UserID: id, Email: c.Email, UserType: c.UserType}
}

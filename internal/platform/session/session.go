// Package session holds the console's authenticated identity: the bearer
// credential handed out by the CarePulse API at login and the role it was
// issued for. A Session is created empty, filled by Init on login, and
// emptied by Teardown on logout or when the API answers 401.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is one of the four console roles.
type Role string

const (
	RoleNurse  Role = "nurse"
	RoleDoctor Role = "doctor"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// ParseRole normalises s and returns the matching Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleNurse, RoleDoctor, RoleStaff, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Claims are the fields read from a JWT-shaped credential. The signature is
// never checked here; the API remains the authority on validity.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the claims carry an expiry that lies before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Session is safe for concurrent use.
type Session struct {
	mu         sync.RWMutex
	token      string
	role       Role
	name       string
	claims     *Claims
	onTeardown []func()
}

// New returns an empty (logged out) session.
func New() *Session {
	return &Session{}
}

// Init installs a credential. If role is empty it is taken from the
// credential's "role" claim when the credential is a JWT.
func (s *Session) Init(token string, role Role, name string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("session: credential is required")
	}

	claims := inspect(token)
	if role == "" && claims != nil && claims.Role != "" {
		parsed, err := ParseRole(claims.Role)
		if err != nil {
			return fmt.Errorf("session: %w", err)
		}
		role = parsed
	}
	if role == "" {
		return fmt.Errorf("session: role is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.role = role
	s.name = name
	s.claims = claims
	return nil
}

// Teardown clears the credential and runs the registered teardown hooks.
// Calling it on an empty session still runs the hooks.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.token = ""
	s.role = ""
	s.name = ""
	s.claims = nil
	hooks := append([]func(){}, s.onTeardown...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnTeardown registers fn to run after every Teardown.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = append(s.onTeardown, fn)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Active reports whether a credential is installed.
func (s *Session) Active() bool {
	return s.Token() != ""
}

// Claims returns the decoded credential claims, if the credential is a JWT.
func (s *Session) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return Claims{}, false
	}
	return *s.claims, true
}

// inspect decodes a JWT without verifying it. Opaque tokens yield nil.
func inspect(token string) *Claims {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil
	}

	c := &Claims{}
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if r, ok := mc["role"].(string); ok {
		c.Role = r
	}
	return c
}

// Package account signs the console in and out of the CarePulse API and
// keeps the process session in step with the result.
package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carepulse/console/internal/platform/gateway"
	"github.com/carepulse/console/internal/platform/session"
)

// Profile is the authenticated user as the API reports it.
type Profile struct {
	ID    int64        `json:"id"`
	Email string       `json:"email"`
	Role  session.Role `json:"role"`
	Name  string       `json:"name"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type Service struct {
	client *gateway.Client
	logger zerolog.Logger
}

func NewService(client *gateway.Client, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Login exchanges credentials for a bearer token and installs it in the
// client's session. Rejected credentials come back as a 401 ApiError, which
// also ends any session that was active before.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	var res loginResponse
	body := map[string]string{"email": email, "password": password}
	if err := s.client.Post(ctx, "/auth/login", body, &res); err != nil {
		return nil, err
	}

	var role session.Role
	if res.Role != "" {
		r, err := session.ParseRole(res.Role)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		role = r
	}
	sess := s.client.Session()
	if err := sess.Init(res.Token, role, res.Name); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.logger.Info().Str("role", string(sess.Role())).Msg("signed in")
	return sess, nil
}

// Logout tells the API to revoke the credential and tears the session down
// whether or not the API call succeeded.
func (s *Service) Logout(ctx context.Context) error {
	sess := s.client.Session()
	if !sess.Active() {
		return nil
	}
	err := s.client.Post(ctx, "/auth/logout", nil, nil)
	sess.Teardown()
	if err != nil {
		s.logger.Warn().Err(err).Msg("logout request failed")
		return err
	}
	s.logger.Info().Msg("signed out")
	return nil
}

// Me returns the profile behind the current credential.
func (s *Service) Me(ctx context.Context) (*Profile, error) {
	if !s.client.Session().Active() {
		return nil, fmt.Errorf("not signed in")
	}
	var p Profile
	if err := s.client.Get(ctx, "/auth/me", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

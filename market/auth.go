package market

import (
	"context"
	"net/http"

	"github.com/troca-app/troca-go/httpx"
)

// AuthService drives the cookie-based session: the transport keeps the
// session cookie in its jar, so Login is enough to authenticate every later
// call on the same client.
type AuthService struct {
	http *httpx.Client
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) error {
	_, err := s.http.Request(ctx, "/auth/register", true,
		httpx.WithMethod(http.MethodPost),
		httpx.WithBody(map[string]string{
			"username": username,
			"email":    email,
			"password": password,
		}))
	return err
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*User, error) {
	var out struct {
		Message string `json:"message"`
		User    User   `json:"user"`
	}
	_, err := s.http.Request(ctx, "/auth/login", true,
		httpx.WithMethod(http.MethodPost),
		httpx.WithBody(map[string]string{
			"username": username,
			"password": password,
		}),
		httpx.WithResult(&out))
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Me returns the logged-in user. Presentation is suppressed: pages probe
// this on load to restore a session and a 401 is an expected answer, not
// something to alert about.
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var user User
	_, err := s.http.Request(ctx, "/auth/me", false, httpx.WithResult(&user))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	_, err := s.http.Request(ctx, "/auth/logout", true, httpx.WithMethod(http.MethodPost))
	return err
}

package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carepulse/console/internal/platform/gateway"
	"github.com/carepulse/console/internal/platform/session"
)

func newAuthStub(t *testing.T) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error {
		var body map[string]string
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"detail": "bad body"})
		}
		if body["email"] != "nurse@carepulse.test" || body["password"] != "secret" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
		}
		return c.JSON(http.StatusOK, map[string]string{"token": "opaque-token", "role": "Nurse", "name": "Asha"})
	})
	e.POST("/auth/logout", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer opaque-token" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		}
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	e.GET("/auth/me", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer opaque-token" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
		}
		return c.JSON(http.StatusOK, map[string]any{"id": 12, "email": "nurse@carepulse.test", "role": "nurse", "name": "Asha"})
	})
	return httptest.NewServer(e)
}

func TestService_LoginMeLogout(t *testing.T) {
	srv := newAuthStub(t)
	defer srv.Close()

	client := gateway.NewClient(srv.URL, session.New())
	svc := NewService(client, zerolog.Nop())
	ctx := context.Background()

	sess, err := svc.Login(ctx, "  Nurse@CarePulse.test ", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Role() != session.RoleNurse || sess.Name() != "Asha" || sess.Token() != "opaque-token" {
		t.Errorf("unexpected session: role=%s name=%s", sess.Role(), sess.Name())
	}

	me, err := svc.Me(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if me.ID != 12 || me.Role != session.RoleNurse {
		t.Errorf("unexpected profile: %+v", me)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Active() {
		t.Error("expected session to be torn down")
	}
	if _, err := svc.Me(ctx); err == nil {
		t.Error("expected error after logout")
	}
}

func TestService_LoginRejected(t *testing.T) {
	srv := newAuthStub(t)
	defer srv.Close()

	svc := NewService(gateway.NewClient(srv.URL, session.New()), zerolog.Nop())
	_, err := svc.Login(context.Background(), "nurse@carepulse.test", "wrong")
	if !gateway.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 ApiError, got %v", err)
	}
	if err.Error() != "Invalid credentials" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestService_LoginRequiresCredentials(t *testing.T) {
	svc := NewService(gateway.NewClient("http://127.0.0.1:1", session.New()), zerolog.Nop())
	if _, err := svc.Login(context.Background(), "", "x"); err == nil {
		t.Error("expected error for missing email")
	}
	if _, err := svc.Login(context.Background(), "a@b.c", ""); err == nil {
		t.Error("expected error for missing password")
	}
}

func TestService_LogoutWhenSignedOut(t *testing.T) {
	svc := NewService(gateway.NewClient("http://127.0.0.1:1", session.New()), zerolog.Nop())
	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("expected no-op logout, got %v", err)
	}
}

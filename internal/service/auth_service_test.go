package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/studio-booking/internal/testfixtures"
)

func TestRegisterLoginRefreshLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.auth.Register(ctx, Registration{Name: "Ana", Email: " Ana@Example.com ", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.User.Email != "ana@example.com" || sess.User.IsAdmin {
		t.Fatalf("unexpected user %+v", sess.User)
	}
	if sess.Tokens.Access.Token == "" || sess.Tokens.Refresh.Raw == "" {
		t.Fatal("expected a token pair")
	}

	if _, err := h.auth.Login(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.auth.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
	login, err := h.auth.Login(ctx, "ana@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := h.auth.Refresh(ctx, login.Tokens.Refresh.Raw)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := h.auth.Refresh(ctx, login.Tokens.Refresh.Raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("reused refresh token: expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.auth.Logout(ctx, 0, rotated.Tokens.Refresh.Raw); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := h.auth.Refresh(ctx, rotated.Tokens.Refresh.Raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("logged-out token: expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.auth.Logout(ctx, sess.User.ID, ""); err != nil {
		t.Fatalf("Logout all: %v", err)
	}
	if _, err := h.auth.Refresh(ctx, sess.Tokens.Refresh.Raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("revoked token: expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.auth.Logout(ctx, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty logout: expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.auth.Register(ctx, Registration{Name: "A", Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := map[string]struct {
		r    Registration
		want error
	}{
		"no name":       {Registration{Email: "b@example.com", Password: "secret1"}, ErrInvalidInput},
		"bad email":     {Registration{Name: "B", Email: "nope", Password: "secret1"}, ErrInvalidInput},
		"short pass":    {Registration{Name: "B", Email: "b@example.com", Password: "123"}, ErrInvalidInput},
		"taken email":   {Registration{Name: "B", Email: "A@example.com", Password: "secret1"}, ErrConflict},
		"admin refused": {Registration{Name: "B", Email: "c@example.com", Password: "secret1", IsAdmin: true}, ErrForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.auth.Register(ctx, tc.r); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestIsAdminReadsStoredFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testfixtures.User(t, h.db, "boss", true)
	member := testfixtures.User(t, h.db, "member", false)

	if ok, err := h.auth.IsAdmin(ctx, admin.ID); err != nil || !ok {
		t.Fatalf("admin: got %v, %v", ok, err)
	}
	if ok, err := h.auth.IsAdmin(ctx, member.ID); err != nil || ok {
		t.Fatalf("member: got %v, %v", ok, err)
	}
	if ok, err := h.auth.IsAdmin(ctx, 9999); err != nil || ok {
		t.Fatalf("unknown: got %v, %v", ok, err)
	}
	if _, err := h.auth.Me(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Me unknown: expected ErrNotFound, got %v", err)
	}
}

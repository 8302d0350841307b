package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/utils"
)

// AuthConfig holds token and hashing settings for AuthService.
type AuthConfig struct {
	JWTSecret        string
	AccessTTLMin     int
	RefreshTTLDays   int
	BcryptCost       int
	AllowAdminSignup bool
}

// AuthService registers users and issues access/refresh token pairs.
// Refresh tokens rotate: each use revokes the presented token.
type AuthService struct {
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	cfg    AuthConfig
	log    logrus.FieldLogger
}

func NewAuthService(users *repository.UserRepo, tokens *repository.TokenRepo, cfg AuthConfig, log logrus.FieldLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, cfg: cfg, log: log}
}

// Registration is the input of Register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	IsAdmin  bool   `json:"is_admin"`
}

// TokenPair is a freshly issued access token with its refresh token.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Session is returned by Register, Login and Refresh.
type Session struct {
	User   model.User
	Tokens TokenPair
}

// Register creates a user and logs them in.  Admin accounts can only be
// self-registered when AllowAdminSignup is set.
func (s *AuthService) Register(ctx context.Context, r Registration) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if strings.TrimSpace(r.Name) == "" {
		return Session{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(r.Password) < 6 {
		return Session{}, fmt.Errorf("%w: password must have at least 6 characters", ErrInvalidInput)
	}
	if r.IsAdmin && !s.cfg.AllowAdminSignup {
		return Session{}, fmt.Errorf("%w: admin signup disabled", ErrForbidden)
	}
	uid, err := s.users.Create(ctx, repository.NewUser{
		Name: r.Name, Email: email, Password: r.Password, Phone: r.Phone, IsAdmin: r.IsAdmin,
	}, s.cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, fmt.Errorf("%w: email already exists", ErrConflict)
	}
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return Session{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": uid, "admin": u.IsAdmin}).Info("user registered")
	return Session{User: u, Tokens: pair}, nil
}

// Login verifies the password and issues a new token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Tokens: pair}, nil
}

// Logout revokes one refresh token when raw is given, otherwise every
// refresh token of userID.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidCredentials
			}
			return err
		}
		return s.tokens.RevokeByHash(ctx, hash)
	}
	if userID == 0 {
		return fmt.Errorf("%w: provide Authorization header or refresh_token", ErrInvalidInput)
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Me returns the stored user record.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return u, err
}

// IsAdmin reports the stored admin flag of userID.  Unknown users are not
// admins.
func (s *AuthService) IsAdmin(ctx context.Context, userID uint64) (bool, error) {
	admin, err := s.users.IsAdmin(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return admin, err
}

// ListUsers returns every user.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *AuthService) issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role(), u.IsAdmin, s.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, fmt.Errorf("save refresh: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

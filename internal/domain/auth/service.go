package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const DefaultTokenTTL = 8 * time.Hour

type Service struct {
	Store    StoreAPI
	Secret   string
	TokenTTL time.Duration
}

func NewService(store StoreAPI, secret string) *Service {
	return &Service{Store: store, Secret: secret, TokenTTL: DefaultTokenTTL}
}

// Login checks the credentials of an active user and issues a signed token.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.Store.FindActiveUserByEmail(ctx, email, UserStatusActive)
	if err != nil {
		return Session{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, Claims{
		UserID:     user.ID,
		TenantID:   user.TenantID,
		EmployeeID: user.EmployeeID,
		RoleName:   user.RoleName,
	}, s.TokenTTL)
	if err != nil {
		return Session{}, err
	}

	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	user.Password = ""
	return Session{Token: token, User: user}, nil
}

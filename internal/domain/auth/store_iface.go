package auth

import "context"

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email, status string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

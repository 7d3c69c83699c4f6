package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// TokenDenylist 是 repository.TokenDenylist 的 Mock。
type TokenDenylist struct {
	mock.Mock
}

func (m *TokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	args := m.Called(ctx, jti, ttl)
	return args.Error(0)
}

func (m *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindlink-backend/infrastructure/persistence/memory"
	"mindlink-backend/pkg/auth"
	apperrors "mindlink-backend/pkg/errors"
)

func newAuthFixture() (*AuthService, *auth.JWTService) {
	tokens := auth.NewJWTService("test-secret", "mindlink-backend", []string{"mindlink-api"}, time.Hour)
	return NewAuthService(memory.NewUserRepository(), tokens, zap.NewNop()), tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newAuthFixture()
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	token, username, err := svc.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), "alice", "not-an-email", "hunter22")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	// Same address, different case.
	_, err = svc.Register(ctx, "alice2", "ALICE@example.com", "hunter22")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, "User already exists.", apperrors.UserMessage(err))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture()

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	assert.Equal(t, "User not found. Please register.", apperrors.UserMessage(err))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	assert.Equal(t, "Invalid password.", apperrors.UserMessage(err))
}

package services

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/user"
	"mindlink-backend/pkg/auth"
	apperrors "mindlink-backend/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService implements account registration and login.
type AuthService struct {
	users  ports.UserRepository
	tokens *auth.JWTService
	logger *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users ports.UserRepository, tokens *auth.JWTService, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Register creates a new account. Emails are normalized to lowercase and
// must be unique.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*user.User, error) {
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidationError("Invalid email address format.")
	}

	normalized := user.NormalizeEmail(email)
	if _, err := s.users.FindByEmail(ctx, normalized); err == nil {
		return nil, apperrors.NewValidationError("User already exists.")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	u, err := user.New(username, normalized, password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password").WithCause(err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("userID", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Login verifies credentials and issues a session token. Both an unknown
// email and a wrong password surface as 401s.
func (s *AuthService) Login(ctx context.Context, email, password string) (token string, username string, err error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", "", apperrors.NewUnauthorizedError("User not found. Please register.")
		}
		return "", "", err
	}

	if !u.ComparePassword(password) {
		return "", "", apperrors.NewUnauthorizedError("Invalid password.")
	}

	token, err = s.tokens.GenerateToken(u.ID, u.Email, u.Username)
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to issue token").WithCause(err)
	}

	s.logger.Info("user logged in", zap.String("userID", u.ID))
	return token, u.Username, nil
}

/**
 * @description
 * Registration and login. Passwords are stored as bcrypt hashes; a successful
 * login issues an HS256 JWT carrying the user's id and admin flag, which the
 * API middleware later verifies and turns back into an Identity.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Password hashing.
 * - github.com/golang-jwt/jwt/v5: Token issuance.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
)

// AuthService handles user registration and token issuance.
type AuthService struct {
	repo      store.Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo store.Repository, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// Register creates a new non-admin user with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Admin:        false,
		Status:       domain.UserStatusActive,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues a signed token. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	user, err := s.repo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != domain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"admin": user.Admin,
		"iat":   time.Now().Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return &domain.TokenResponse{Token: signed, ExpiresAt: expiresAt}, nil
}

// GetUser fetches one user record. Callers may read themselves; admins may
// read anyone.
func (s *AuthService) GetUser(ctx context.Context, caller Identity, userID uuid.UUID) (*domain.User, error) {
	if err := RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	return s.repo.FindUserByID(ctx, userID)
}

// ListUsers returns every user. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, caller Identity) ([]domain.User, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

package services

import (
	"context"
	"log"

	"github.com/gridbase/gridbase/internal/domain/models"
	"github.com/gridbase/gridbase/internal/infrastructure/persistence"
	"github.com/gridbase/gridbase/pkg/apperr"
	"github.com/gridbase/gridbase/pkg/auth"
)

// AuthService handles user registration and token-based login
type AuthService struct {
	users *persistence.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Register creates a new user with a bcrypt-hashed password
func (as *AuthService) Register(ctx context.Context, name, password string) (*models.User, error) {
	if name == "" {
		return nil, apperr.NewValidationError("name", "is required")
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, apperr.NewValidationError("password", err.Error())
	}

	existing, err := as.users.GetByName(ctx, name)
	if err != nil {
		return nil, apperr.NewPersistenceError("check user name", err)
	}
	if existing != nil {
		return nil, apperr.NewConflictError("user", "name", name)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.NewPersistenceError("hash password", err)
	}

	u := &models.User{Name: name, PasswordHash: hash}
	if err := as.users.Create(ctx, u); err != nil {
		return nil, err
	}

	log.Printf("👤 Registered user %q (ID: %d)", u.Name, u.ID)
	return u, nil
}

// Login verifies credentials and issues a signed token. Unknown user and
// wrong password are indistinguishable to the caller.
func (as *AuthService) Login(ctx context.Context, name, password string) (string, *models.User, error) {
	u, err := as.users.GetByName(ctx, name)
	if err != nil {
		return "", nil, apperr.NewPersistenceError("load user", err)
	}
	if u == nil || !auth.VerifyPassword(password, u.PasswordHash) {
		return "", nil, apperr.NewUnauthorizedError("invalid credentials")
	}

	token, err := auth.GenerateToken(auth.UserSession{ID: u.ID, Name: u.Name})
	if err != nil {
		return "", nil, apperr.NewPersistenceError("sign token", err)
	}
	return token, u, nil
}

// Authenticate resolves a bearer token to its user session
func (as *AuthService) Authenticate(token string) (*auth.UserSession, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return nil, apperr.NewUnauthorizedError("invalid or expired token")
	}
	return &claims.User, nil
}

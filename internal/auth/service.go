// Package auth implements account registration, credential checks and the
// signed session cookie.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"procodus.dev/scmxpert/internal/store"
)

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Username        string `label:"Username" validate:"required,max=64"`
	Email           string `label:"Email" validate:"required,max=120"`
	Password        string `label:"Password" validate:"required"`
	ConfirmPassword string `label:"Confirm password" validate:"required"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string
	Password string
}

// ServiceConfig holds the dependencies of the auth Service.
type ServiceConfig struct {
	Logger *slog.Logger
	Store  *store.Store

	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

// bcryptMaxInput is the number of password bytes bcrypt accepts.
const bcryptMaxInput = 72

// Service registers users and verifies credentials.
type Service struct {
	logger *slog.Logger
	store  *store.Store

	// dummyHash is compared against when the username is unknown so both
	// login failures cost one bcrypt comparison.
	dummyHash string
	cost      int
}

// NewService creates an auth service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("auth config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummyHash, err := HashPassword("scmxpert-unknown-user", cost)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:    cfg.Logger,
		store:     cfg.Store,
		dummyHash: dummyHash,
		cost:      cost,
	}, nil
}

// Register validates the request and creates the account. Validation
// failures are returned as *ValidationError and leave storage untouched.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	if req.Password != req.ConfirmPassword {
		return nil, validationError("Passwords do not match")
	}

	users := s.store.Users()

	taken, err := users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationError("Username already exists")
	}

	taken, err = users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationError("Email already exists")
	}

	hash, err := HashPassword(req.Password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, validationError("Username or email already exists")
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks the credentials and returns the session to issue.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			CheckPassword(s.dummyHash, req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	return &Session{
		UserID:   user.ID,
		Username: user.Username,
		Theme:    user.ThemePreference,
	}, nil
}

// bcryptInput returns the bytes handed to bcrypt. Passwords longer than
// bcrypt accepts are replaced by their base64 SHA-256 digest.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// HashPassword hashes password with bcrypt at the given cost. Any length is
// accepted.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

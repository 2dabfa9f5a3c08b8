package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/alexedwards/argon2id"
)

// MinPasswordLength is the minimum accepted password length in characters
const MinPasswordLength = 6

// Service handles account registration and login
type Service struct {
	users  UserStore
	params *argon2id.Params

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new auth service. params may be nil to use
// argon2id.DefaultParams.
func NewService(users UserStore, params *argon2id.Params) *Service {
	if params == nil {
		params = argon2id.DefaultParams
	}
	return &Service{
		users:  users,
		params: params,
	}
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	// Hash password using Argon2id
	passwordHash, err := argon2id.CreateHash(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, passwordHash)
	if err != nil {
		return nil, err
	}

	monitoring.RecordUserRegistered()
	return user, nil
}

// Login authenticates a user. Unknown usernames and wrong passwords both
// yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing work as a real comparison
			argon2id.ComparePasswordAndHash(password, s.dummy())
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = argon2id.CreateHash("linehook-dummy-password", s.params)
	})
	return s.dummyHash
}

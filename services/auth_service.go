package services

import (
	"fmt"
	"time"

	"dm-lab/auth"
	"dm-lab/domain"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

type IAuthService interface {
	Register(username, email, password string) (Token, domain.User, error)
	Login(email, password string) (Token, domain.User, error)
}

type Token string

// AuthService is the credential collaborator: it owns registration and
// login and issues the session token the real-time channel verifies.
type AuthService struct {
	users         repositories.IUserRepository
	tokenDuration time.Duration
}

func NewAuthService(users repositories.IUserRepository, tokenDuration time.Duration) *AuthService {
	return &AuthService{users: users, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(username, email, password string) (Token, domain.User, error) {
	// Validation runs before any expensive cryptographic work.
	req := auth.RegisterRequest{Username: username, Email: email, Password: password}
	if err := auth.ValidateRegister(req); err != nil {
		return "", domain.User{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.Create(username, email, hashedPassword)
	if err != nil {
		return "", domain.User{}, err
	}

	token, err := auth.GenerateToken(user.ID, user.Username, user.Email, s.tokenDuration)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("token generation: %w", err)
	}
	return Token(token), user, nil
}

func (s *AuthService) Login(email, password string) (Token, domain.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		// Generic error to prevent account enumeration.
		return "", domain.User{}, apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", domain.User{}, apperrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, user.Email, s.tokenDuration)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("token generation: %w", err)
	}
	return Token(token), user, nil
}

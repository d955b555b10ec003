package services

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"dm-lab/auth"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users, err := repositories.NewUserRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = users.Close() })

	return NewAuthService(users, time.Hour)
}

func Test_Register_Returns_Working_Token(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	token, user, err := service.Register("alice", "alice@example.com", "Sup3r$ecretPass")
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.NotEqual("Sup3r$ecretPass", user.PasswordHash)

	// The issued token resolves back to the new account
	claims, err := auth.VerifyToken(string(token))
	req.NoError(err)
	req.Equal(user.ID, claims.UserID)
	req.Equal("alice", claims.Username)
}

func Test_Register_Rejects_Invalid_Input(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, _, err := service.Register("al", "alice@example.com", "Sup3r$ecretPass")
	req.ErrorIs(err, apperrors.ErrValidation)

	_, _, err = service.Register("alice", "nope", "Sup3r$ecretPass")
	req.ErrorIs(err, apperrors.ErrValidation)

	_, _, err = service.Register("alice", "alice@example.com", "weakpassword")
	req.ErrorIs(err, apperrors.ErrValidation)

	// Duplicates surface the conflict from the store
	_, _, err = service.Register("alice", "alice@example.com", "Sup3r$ecretPass")
	req.NoError(err)
	_, _, err = service.Register("alice", "other@example.com", "Sup3r$ecretPass")
	req.ErrorIs(err, apperrors.ErrUsernameTaken)
}

func Test_Login(t *testing.T) {
	req := require.New(t)
	service := newAuthFixture(t)

	_, registered, err := service.Register("alice", "alice@example.com", "Sup3r$ecretPass")
	req.NoError(err)

	// Correct credentials
	token, user, err := service.Login("alice@example.com", "Sup3r$ecretPass")
	req.NoError(err)
	req.Equal(registered.ID, user.ID)
	req.NotEmpty(token)

	// Wrong password and unknown account fail identically
	_, _, err = service.Login("alice@example.com", "WrongPass1$word")
	req.ErrorIs(err, apperrors.ErrInvalidCredentials)
	_, _, err = service.Login("ghost@example.com", "Sup3r$ecretPass")
	req.ErrorIs(err, apperrors.ErrInvalidCredentials)
}

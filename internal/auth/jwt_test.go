package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/divvyapp/divvy/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("test-secret-key-32-bytes-long!!!", time.Hour)
	user := &models.User{ID: "u1", Email: "alice@example.com"}

	token, err := manager.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "alice@example.com", claims.Email)
}

func TestValidateRejectsGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret-key-32-bytes-long!!!", time.Hour)

	_, err := manager.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	manager := NewTokenManager("test-secret-key-32-bytes-long!!!", time.Hour)
	other := NewTokenManager("a-different-secret-key-entirely!", time.Hour)

	token, err := manager.Generate(&models.User{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	manager := NewTokenManager("test-secret-key-32-bytes-long!!!", -time.Minute)

	token, err := manager.Generate(&models.User{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

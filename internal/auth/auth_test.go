package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

func TestPasswordRoundTrip(t *testing.T) {
	encoded, err := HashPassword("rahasia123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))
	assert.Len(t, strings.Split(encoded, "$"), 6)

	ok, err := VerifyPassword("rahasia123", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("salah", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("rahasia123")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salt must differ per hash")
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"$bcrypt$v=19$m=1,t=1,p=1$AA$AA",
		"$argon2id$v=16$m=1,t=1,p=1$AA$AA",
		"$argon2id$v=19$m=x,t=1,p=1$AA$AA",
		"$argon2id$v=19$m=1,t=1,p=0$AA$AA",
		"$argon2id$v=19$m=1,t=1,p=1$AA$",
		"argon2id$1$65536$4$c2FsdA$aGFzaA",
	} {
		_, err := VerifyPassword("pw", bad)
		assert.Error(t, err, bad)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", 0)
	token, exp, err := m.Issue(42, "a@b.c")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, time.Minute)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _, err := m.Issue(1, "x@y.z")
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	later := NewTokenManager("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = m.Parse("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestIssueRequiresSecret(t *testing.T) {
	_, _, err := NewTokenManager("", 0).Issue(1, "a")
	assert.Error(t, err)
}

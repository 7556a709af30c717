package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)

	raw, exp, err := m.Issue("user-1", "artist", "a@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "artist", claims.Role)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestParseRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)

	t.Run("Wrong secret", func(t *testing.T) {
		raw, _, err := NewManager("other", time.Hour).Issue("u", "artist", "")
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		past := NewManager("secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		raw, _, err := past.Issue("u", "artist", "")
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Missing role", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

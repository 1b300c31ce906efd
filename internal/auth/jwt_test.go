package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m, err := NewManager("secret-secret-secret-secret-1234", time.Hour, "pattern-analyzer")
	require.NoError(t, err)

	tok, err := m.GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)

	u, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, &User{UID: "u1", Email: "u1@example.com"}, u)
}

func TestManager_RequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour, "")
	assert.Error(t, err)
}

func TestManager_Expired(t *testing.T) {
	m, err := NewManager("s", time.Minute, "")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	tok, err := m.GenerateToken("u1", "")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC) }
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_WrongSecret(t *testing.T) {
	a, _ := NewManager("secret-a", time.Hour, "")
	b, _ := NewManager("secret-b", time.Hour, "")

	tok, err := a.GenerateToken("u1", "")
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_SubjectFallback(t *testing.T) {
	m, _ := NewManager("s", time.Hour, "")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "from-sub",
		"email": "x@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s"))
	require.NoError(t, err)

	u, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "from-sub", u.UID)
	assert.Equal(t, "x@example.com", u.Email)
}

func TestManager_RejectsOtherAlgorithms(t *testing.T) {
	m, _ := NewManager("s", time.Hour, "")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"uid": "u1"}).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_MissingUID(t *testing.T) {
	m, _ := NewManager("s", time.Hour, "")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"}).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

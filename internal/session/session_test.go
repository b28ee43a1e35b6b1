package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager([]byte("test-secret"), time.Hour)
}

func TestManager_OpenAndValid(t *testing.T) {
	m := newTestManager()

	token, err := m.Open("install-1")
	require.NoError(t, err)
	assert.True(t, m.Valid(token))
}

func TestManager_Revoke(t *testing.T) {
	m := newTestManager()

	token, err := m.Open("install-1")
	require.NoError(t, err)
	require.True(t, m.Valid(token))

	m.Revoke(token)
	assert.False(t, m.Valid(token))

	// Revoking again is a no-op.
	m.Revoke(token)
	assert.False(t, m.Valid(token))
}

func TestManager_IndependentSessions(t *testing.T) {
	m := newTestManager()

	first, err := m.Open("install-1")
	require.NoError(t, err)
	second, err := m.Open("install-1")
	require.NoError(t, err)

	m.Revoke(first)
	assert.False(t, m.Valid(first))
	assert.True(t, m.Valid(second))
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := newTestManager()

	assert.False(t, m.Valid(""))
	assert.False(t, m.Valid("not-a-token"))
	m.Revoke("not-a-token")
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	m := newTestManager()
	other := NewManager([]byte("different-secret"), time.Hour)

	token, err := other.Open("install-1")
	require.NoError(t, err)
	assert.False(t, m.Valid(token))
}

func TestManager_RejectsExpired(t *testing.T) {
	m := NewManager([]byte("test-secret"), -time.Minute)

	token, err := m.Open("install-1")
	require.NoError(t, err)
	assert.False(t, m.Valid(token))
}

func TestManager_RejectsUnsignedToken(t *testing.T) {
	m := newTestManager()

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sid": "forged",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.False(t, m.Valid(token))
}

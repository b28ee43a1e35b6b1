package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("session: invalid token")

// Manager issues and tracks caller liveness capabilities. A token is handed
// out when a calling context opens its channel; revoking it marks the
// context invalid. Validity is queried synchronously (pure in-memory), so
// the broker's liveness check never suspends.
type Manager struct {
	secret []byte
	ttl    time.Duration

	mu     sync.RWMutex
	active map[string]struct{}
}

// NewManager creates a session manager signing tokens with the given secret.
func NewManager(secret []byte, ttl time.Duration) *Manager {
	return &Manager{
		secret: secret,
		ttl:    ttl,
		active: make(map[string]struct{}),
	}
}

// Open issues a new liveness token bound to the installation and registers
// the session as live.
func (m *Manager) Open(installationID string) (string, error) {
	sessionID := uuid.New().String()
	now := time.Now()

	claims := jwt.MapClaims{
		"sid": sessionID,
		"sub": installationID,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.active[sessionID] = struct{}{}
	m.mu.Unlock()

	return signed, nil
}

// Revoke marks the session behind the token as torn down. Unknown or
// malformed tokens are a no-op.
func (m *Manager) Revoke(token string) {
	sessionID, err := m.sessionID(token)
	if err != nil {
		return
	}

	m.mu.Lock()
	delete(m.active, sessionID)
	m.mu.Unlock()
}

// Valid reports whether the token names a live, unrevoked session. This is
// the broker's liveness check; it never suspends.
func (m *Manager) Valid(token string) bool {
	sessionID, err := m.sessionID(token)
	if err != nil {
		return false
	}

	m.mu.RLock()
	_, ok := m.active[sessionID]
	m.mu.RUnlock()
	return ok
}

// sessionID verifies the token and extracts the session ID claim.
func (m *Manager) sessionID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sessionID, ok := claims["sid"].(string)
	if !ok || sessionID == "" {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}

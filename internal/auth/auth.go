package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"depthstream/pkg/models"
)

// Manager issues and validates time-limited download tokens for exported
// model artifacts
type Manager struct {
	tokens map[string]*models.DownloadToken // token -> DownloadToken
	mu     sync.RWMutex

	// Config
	defaultExpiration time.Duration
	maxExpiration     time.Duration
}

// New creates a new auth manager
func New(defaultExpiration, maxExpiration time.Duration) *Manager {
	if defaultExpiration <= 0 {
		defaultExpiration = 1 * time.Hour
	}
	if maxExpiration <= 0 {
		maxExpiration = 24 * time.Hour
	}
	return &Manager{
		tokens:            make(map[string]*models.DownloadToken),
		defaultExpiration: defaultExpiration,
		maxExpiration:     maxExpiration,
	}
}

// GenerateDownloadToken creates a new download token for an export. A token
// covers all of the export's files until it expires.
func (m *Manager) GenerateDownloadToken(exportID string, expiresIn time.Duration, clientIP string) (*models.DownloadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	tokenString := hex.EncodeToString(tokenBytes)

	expiration := expiresIn
	if expiration <= 0 {
		expiration = m.defaultExpiration
	}
	if expiration > m.maxExpiration {
		expiration = m.maxExpiration
	}

	token := &models.DownloadToken{
		Token:     tokenString,
		ExportID:  exportID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(expiration),
		ClientIP:  clientIP,
	}

	m.tokens[tokenString] = token
	return token, nil
}

// ValidateToken checks if a token grants access to an export's files
func (m *Manager) ValidateToken(tokenString, exportID string) error {
	m.mu.RLock()
	token, exists := m.tokens[tokenString]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("invalid token")
	}
	if !token.IsValid() {
		return fmt.Errorf("token expired")
	}
	if token.ExportID != exportID {
		return fmt.Errorf("token not valid for this export")
	}
	return nil
}

// RevokeToken revokes a token
func (m *Manager) RevokeToken(tokenString string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tokenString)
}

// CleanupExpiredTokens removes all expired tokens (call periodically)
func (m *Manager) CleanupExpiredTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for tokenString, token := range m.tokens {
		if now.After(token.ExpiresAt) {
			delete(m.tokens, tokenString)
		}
	}
}

// GetTokenCount returns the number of active tokens
func (m *Manager) GetTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

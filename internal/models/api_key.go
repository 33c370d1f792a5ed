package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIKey represents a configured credential. The raw key value is never
// stored; only its SHA-256 hex hash and an 8-character display prefix.
// Keys are supplied through configuration and checked by the login handler.
type APIKey struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	KeyHash     string    `yaml:"key_hash" json:"key_hash"`
	Prefix      string    `yaml:"prefix" json:"prefix"`
	Permissions []string  `yaml:"permissions" json:"permissions"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

// NewAPIKey creates a new APIKey from a raw key string.
func NewAPIKey(id, name, rawKey string, permissions []string) *APIKey {
	prefix := rawKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return &APIKey{
		ID:          id,
		Name:        name,
		KeyHash:     HashAPIKey(rawKey),
		Prefix:      prefix,
		Permissions: permissions,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
}

// GenerateAPIKey produces a new random API key in the format gk_<44 url-safe base64 chars>.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 33) // 33 bytes → 44 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "gk_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey computes the SHA-256 hex digest of a raw API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// NewKeyID generates a new UUID v4 for use as an APIKey ID.
func NewKeyID() string {
	return uuid.New().String()
}

// Matches reports whether the raw key hashes to this key's stored hash.
// Comparison is constant-time over the hex digests.
func (ak *APIKey) Matches(rawKey string) bool {
	hash := HashAPIKey(rawKey)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(ak.KeyHash)) == 1
}

// HasPermission returns true when the key is enabled and possesses the required permission.
func (ak *APIKey) HasPermission(required string) bool {
	if !ak.Enabled {
		return false
	}
	for _, p := range ak.Permissions {
		switch p {
		case "*", "admin":
			return true
		case "write":
			if required == "read" || required == "write" {
				return true
			}
		case required:
			return true
		}
	}
	return false
}

package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Generate new API key, the value is shown to the user once
func NewAPIKey() string {
	return uuid.NewString()
}

// API keys are stored only as sha256 hex digest
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

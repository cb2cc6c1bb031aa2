package identity

import (
	"context"

	"github.com/nkiryanov/llmgate/internal/models"
)

type ctxKey string

const (
	identityKey ctxKey = "identity"
	apiKeyKey   ctxKey = "apikey"
)

// Create a new context with the caller identity
func New(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Extract the caller identity from the context
func FromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// Attach raw API key the request was authenticated with
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(apiKeyKey).(string)
	return key, ok && key != ""
}

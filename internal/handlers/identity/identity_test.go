package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/llmgate/internal/models"
)

func TestIdentity(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		_, ok := FromContext(context.Background())
		require.False(t, ok)

		_, ok = APIKeyFromContext(context.Background())
		require.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		want := models.Identity{UserID: 5, IsAdministrator: true}
		ctx := WithAPIKey(New(context.Background(), want), "key")

		got, ok := FromContext(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)

		key, ok := APIKeyFromContext(ctx)
		require.True(t, ok)
		require.Equal(t, "key", key)
	})
}

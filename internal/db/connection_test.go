package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_migrateURL(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost:5432/llmgate", "pgx5://u:p@localhost:5432/llmgate"},
		{"postgresql://u:p@localhost/llmgate?sslmode=disable", "pgx5://u:p@localhost/llmgate?sslmode=disable"},
		{"pgx5://u:p@localhost/llmgate", "pgx5://u:p@localhost/llmgate"},
	}

	for _, tc := range tests {
		t.Run(tc.dsn, func(t *testing.T) {
			assert.Equal(t, tc.want, migrateURL(tc.dsn))
		})
	}
}

func TestConnect_InvalidDSN(t *testing.T) {
	pool, err := Connect(t.Context(), "postgres://u:p@localhost:notaport/llmgate")

	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "invalid database dsn")
}

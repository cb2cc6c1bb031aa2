package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func Test_writeSecrets(t *testing.T) {
	t.Run("dotenv readable", func(t *testing.T) {
		var buf bytes.Buffer

		err := writeSecrets(&buf, SecretKeyBytesLen)
		require.NoError(t, err)

		env, err := godotenv.Parse(strings.NewReader(buf.String()))
		require.NoError(t, err)
		require.Len(t, env["ACCESS_SECRET"], 2*SecretKeyBytesLen)
		require.Len(t, env["REFRESH_SECRET"], 2*SecretKeyBytesLen)
		require.NotEqual(t, env["ACCESS_SECRET"], env["REFRESH_SECRET"])
	})

	t.Run("too short", func(t *testing.T) {
		err := writeSecrets(&bytes.Buffer{}, 8)
		require.Error(t, err)
	})
}

package persistence

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *CredentialCipher {
	t.Helper()
	c, err := NewCredentialCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return c
}

func TestCredentialCipher(t *testing.T) {
	t.Run("round trips a secret", func(t *testing.T) {
		c := newTestCipher(t)

		sealed, err := c.Seal([]byte("shpat_abc123"))
		require.NoError(t, err)
		assert.NotContains(t, string(sealed), "shpat_abc123")

		plain, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "shpat_abc123", string(plain))
	})

	t.Run("uses a fresh nonce per seal", func(t *testing.T) {
		c := newTestCipher(t)

		a, err := c.Seal([]byte("same"))
		require.NoError(t, err)
		b, err := c.Seal([]byte("same"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("tampered values fail", func(t *testing.T) {
		c := newTestCipher(t)
		sealed, err := c.Seal([]byte("secret"))
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xff

		_, err = c.Open(sealed)

		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})

	t.Run("another key cannot open", func(t *testing.T) {
		c := newTestCipher(t)
		other, err := NewCredentialCipher(bytes.Repeat([]byte{9}, 32))
		require.NoError(t, err)
		sealed, err := c.Seal([]byte("secret"))
		require.NoError(t, err)

		_, err = other.Open(sealed)

		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})

	t.Run("short input", func(t *testing.T) {
		_, err := newTestCipher(t).Open([]byte("short"))
		assert.ErrorIs(t, err, ErrCredentialDecrypt)
	})
}

func TestNewCredentialCipher(t *testing.T) {
	t.Run("rejects a wrong key size", func(t *testing.T) {
		_, err := NewCredentialCipher([]byte("too-short"))
		assert.Error(t, err)
	})

	t.Run("decodes a base64 key", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
		c, err := NewCredentialCipherFromBase64(encoded)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		_, err := NewCredentialCipherFromBase64("%%%")
		assert.Error(t, err)
	})
}

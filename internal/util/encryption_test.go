package util

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestEncryptDecrypt(t *testing.T) {
	t.Run("round trips plaintext", func(t *testing.T) {
		encrypted, err := Encrypt(testKey, "ya29.access-token-value")
		require.NoError(t, err)
		assert.NotEqual(t, "ya29.access-token-value", encrypted)

		decrypted, err := Decrypt(testKey, encrypted)
		require.NoError(t, err)
		assert.Equal(t, "ya29.access-token-value", decrypted)
	})

	t.Run("encrypting twice yields different ciphertexts", func(t *testing.T) {
		a, err := Encrypt(testKey, "value")
		require.NoError(t, err)
		b, err := Encrypt(testKey, "value")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("wrong key fails to decrypt", func(t *testing.T) {
		otherKey := hex.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
		encrypted, err := Encrypt(testKey, "value")
		require.NoError(t, err)

		_, err = Decrypt(otherKey, encrypted)
		assert.Error(t, err)
	})

	t.Run("rejects keys that are not 32 bytes", func(t *testing.T) {
		shortKey := hex.EncodeToString([]byte("too-short"))
		_, err := Encrypt(shortKey, "value")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("rejects non-hex key", func(t *testing.T) {
		_, err := Encrypt(strings.Repeat("z", 64), "value")
		assert.Error(t, err)
	})

	t.Run("rejects truncated ciphertext", func(t *testing.T) {
		_, err := Decrypt(testKey, "aGk=")
		assert.Error(t, err)
	})
}

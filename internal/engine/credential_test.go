package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(EncryptorConfig{Passphrase: "correct-horse-battery-staple"})
	require.NoError(t, err)

	ciphertext, err := enc.EncryptString("s3cr3t")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cr3t", ciphertext)

	plaintext, err := enc.DecryptString(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", plaintext)
}

func TestEncryptedMapCredentialProviderResolvesKnownID(t *testing.T) {
	enc, err := NewEncryptor(EncryptorConfig{Passphrase: "pw"})
	require.NoError(t, err)

	apiKey, err := enc.EncryptString("sk-test-123")
	require.NoError(t, err)

	provider := NewEncryptedMapCredentialProvider(enc, map[string]map[string]interface{}{
		"cred-1": {"apiKey": apiKey, "plain": "unchanged"},
	})

	resolved, err := provider.Resolve(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", resolved["apiKey"])
	assert.Equal(t, "unchanged", resolved["plain"])
}

func TestEncryptedMapCredentialProviderUnknownID(t *testing.T) {
	provider := NewEncryptedMapCredentialProvider(nil, map[string]map[string]interface{}{})
	_, err := provider.Resolve(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNoopCredentialProviderResolvesEmpty(t *testing.T) {
	resolved, err := (NoopCredentialProvider{}).Resolve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

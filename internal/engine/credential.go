package engine

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// CredentialProvider resolves a node's credential reference into the
// decrypted data an executor needs. Storing and managing credentials is an
// external collaborator's job; this execution core only needs to pull them
// at run time, so it depends on this narrow interface rather than a
// concrete credential store.
type CredentialProvider interface {
	Resolve(ctx context.Context, credentialID string) (map[string]interface{}, error)
}

// NoopCredentialProvider resolves every reference to an empty credential
// set. It is the default a Runner gets when no provider is configured, so
// workflows with no credentialed nodes never need one wired up.
type NoopCredentialProvider struct{}

func (NoopCredentialProvider) Resolve(ctx context.Context, credentialID string) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

// Encryptor performs AES-256-GCM encryption with a key derived from a
// passphrase via PBKDF2. A CredentialProvider implementation backed by a
// real secret store typically uses one of these to decrypt stored fields
// before returning them to a Runner.
type Encryptor struct {
	key []byte
}

// EncryptorConfig configures key derivation for an Encryptor.
type EncryptorConfig struct {
	Passphrase string
	Salt       string
	Iterations int
}

// DefaultEncryptorConfig returns the derivation parameters this core uses
// when none are supplied.
func DefaultEncryptorConfig() EncryptorConfig {
	return EncryptorConfig{Iterations: 100000}
}

// NewEncryptor derives a 256-bit key from cfg via PBKDF2-SHA256.
func NewEncryptor(cfg EncryptorConfig) (*Encryptor, error) {
	salt := []byte(cfg.Salt)
	if len(salt) == 0 {
		salt = []byte("enginecore-default-salt")
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 100000
	}
	key := pbkdf2.Key([]byte(cfg.Passphrase), salt, iterations, 32, sha256.New)
	return &Encryptor{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM, prefixing the output with its
// nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

// DecryptString decrypts a base64-encoded ciphertext produced by
// EncryptString.
func (e *Encryptor) DecryptString(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	plaintext, err := e.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptString encrypts plaintext and returns it base64-encoded.
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptedMapCredentialProvider resolves credential ids against an
// in-memory map of envelope-encrypted field sets, decrypting every string
// field whose value was produced by Encryptor.EncryptString. It's a
// self-contained stand-in for a real credential service (usually backed by
// a vault or KMS), wired up in tests and small deployments.
type EncryptedMapCredentialProvider struct {
	encryptor   *Encryptor
	credentials map[string]map[string]interface{}
}

// NewEncryptedMapCredentialProvider builds a provider over an in-memory
// credential set, decrypting values with encryptor on Resolve.
func NewEncryptedMapCredentialProvider(encryptor *Encryptor, credentials map[string]map[string]interface{}) *EncryptedMapCredentialProvider {
	return &EncryptedMapCredentialProvider{encryptor: encryptor, credentials: credentials}
}

func (p *EncryptedMapCredentialProvider) Resolve(ctx context.Context, credentialID string) (map[string]interface{}, error) {
	raw, ok := p.credentials[credentialID]
	if !ok {
		return nil, fmt.Errorf("credential %q not found", credentialID)
	}

	resolved := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		strVal, ok := v.(string)
		if !ok {
			resolved[k] = v
			continue
		}
		plain, err := p.encryptor.DecryptString(strVal)
		if err != nil {
			resolved[k] = v
			continue
		}
		resolved[k] = plain
	}
	return resolved, nil
}

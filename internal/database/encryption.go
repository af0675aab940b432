package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"chatrelay/internal/constants"
	"chatrelay/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

// encryptor seals comment text at rest. A nil gcm means encryption is off and
// values pass through untouched.
type encryptor struct {
	gcm cipher.AEAD
}

func NewEncryptor() (*encryptor, error) {
	if !isEncryptionEnabled() {
		return &encryptor{gcm: nil}, nil
	}

	key, err := deriveKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) Enabled() bool {
	return e != nil && e.gcm != nil
}

func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || !e.Enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Nonce is stored in front of the ciphertext
	result := append(nonce, sealed...)
	return base64.StdEncoding.EncodeToString(result), nil
}

func (e *encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" || !e.Enabled() {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < models.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:models.NonceSize], data[models.NonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func deriveKey() ([]byte, error) {
	secret := os.Getenv(constants.EncryptionKeyEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s environment variable is required when encryption is enabled", constants.EncryptionKeyEnv)
	}

	if len(secret) < constants.MinEncryptionSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", constants.MinEncryptionSecretLength)
	}

	salt := []byte(constants.EncryptionSalt)
	return pbkdf2.Key([]byte(secret), salt, models.Iterations, models.KeySize, sha256.New), nil
}

func isEncryptionEnabled() bool {
	return os.Getenv(constants.EncryptionFlagEnv) == "true"
}

package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/storesync/internal/tenant/domain"
	"golang.org/x/crypto/hkdf"
)

const (
	credentialPrefix = "v1:"
	credentialInfo   = "storesync/tenant-credential"
)

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func deriveCredentialKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(credentialInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func sealCredential(key []byte, plaintext string) (string, error) {
	if len(key) == 0 {
		return "", domain.ErrEncryptionKeyUnset
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out, err := json.Marshal(encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", err
	}
	return credentialPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// openCredential returns plain values as-is. Sealed values must decrypt.
func openCredential(key []byte, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, credentialPrefix) {
		return value, nil
	}
	if len(key) == 0 {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidCredential, domain.ErrEncryptionKeyUnset)
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, credentialPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: envelope encoding", domain.ErrInvalidCredential)
	}
	var payload encryptedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: envelope format", domain.ErrInvalidCredential)
	}
	if payload.Version != 1 {
		return "", fmt.Errorf("%w: unsupported version %d", domain.ErrInvalidCredential, payload.Version)
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: nonce", domain.ErrInvalidCredential)
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext", domain.ErrInvalidCredential)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: nonce size", domain.ErrInvalidCredential)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decrypt", domain.ErrInvalidCredential)
	}
	return string(plaintext), nil
}

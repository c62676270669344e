package invites

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrKeyLengthInvalid is returned when a sealing key does not decode to exactly 32 bytes.
	ErrKeyLengthInvalid = errors.New("invites: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when a token fails base64 decoding or is too short to hold a nonce.
	ErrCiphertextCorrupted = errors.New("invites: token is corrupted or truncated")
	// ErrDecryptionFailed is returned when AES-GCM authentication fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("invites: token decryption failed")
)

// Protector seals and opens invitation payloads with AES-256-GCM. Tokens are
// opaque to everyone without the key; authentication failure is
// indistinguishable from corruption by design of the cipher mode.
type Protector struct {
	key []byte
}

// NewProtector creates a protector with a 32-byte sealing key
func NewProtector(key []byte) (*Protector, error) {
	if len(key) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, key)
	return &Protector{key: keyCopy}, nil
}

// ParseKey decodes a hex or base64 encoded sealing key. Configuration carries
// keys as strings; this is the single decode point.
func ParseKey(encoded string) ([]byte, error) {
	if raw, err := hex.DecodeString(encoded); err == nil && len(raw) == 32 {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(raw) == 32 {
		return raw, nil
	}
	if raw, err := base64.URLEncoding.DecodeString(encoded); err == nil && len(raw) == 32 {
		return raw, nil
	}
	return nil, fmt.Errorf("failed to parse sealing key: %w", ErrKeyLengthInvalid)
}

// GenerateKey creates a cryptographically secure random 32-byte sealing key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Seal encrypts a payload and returns a base64url-encoded token with the
// random nonce prepended
func (p *Protector) Seal(payload string) (string, error) {
	blockCipher, err := aes.NewCipher(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return "", fmt.Errorf("failed to initialize GCM: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(payload), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a base64url-encoded token and returns the payload
func (p *Protector) Open(token string) (string, error) {
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}

	blockCipher, err := aes.NewCipher(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return "", fmt.Errorf("failed to initialize GCM: %w", err)
	}

	nonceLen := aead.NonceSize()
	if len(sealed) < nonceLen {
		return "", ErrCiphertextCorrupted
	}

	nonce := sealed[:nonceLen]
	ciphertext := sealed[nonceLen:]

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(payload), nil
}

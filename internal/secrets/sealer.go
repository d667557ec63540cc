package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "enc:"

// Sealer encrypts PII strings at rest. A zero-value Sealer (no key) is a
// passthrough, matching deployments that have no ENCRYPTION_KEY configured.
type Sealer struct {
	key []byte
}

func NewSealer(hexKey string) (*Sealer, error) {
	if strings.TrimSpace(hexKey) == "" {
		return &Sealer{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.New("secrets: encryption key must be 32 bytes")
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Enabled() bool { return len(s.key) > 0 }

func (s *Sealer) Encrypt(value string) (string, error) {
	if value == "" || !s.Enabled() {
		return value, nil
	}
	if strings.HasPrefix(value, prefix) {
		return value, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Decrypt(value string) (string, error) {
	if value == "" || !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	if !s.Enabled() {
		return "", errors.New("secrets: encrypted value but no key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("secrets: ciphertext too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

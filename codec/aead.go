package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "chat-relay message codec v1"

// AEAD seals message bodies with ChaCha20-Poly1305.
// The wire form is base64(nonce || ciphertext || tag).
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD derives a 256-bit key from the shared secret with HKDF-SHA256.
func NewAEAD(secret string) (*AEAD, error) {
	if secret == "" {
		return nil, fmt.Errorf("aead codec needs a non-empty secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a}, nil
}

func (*AEAD) Name() string { return NameAEAD }

func (c *AEAD) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AEAD) Decode(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrDecode)
	}
	nonce, body := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(plain), nil
}

// Package codec holds the reversible transforms applied to chat message bodies.
//
// The XOR transform reproduces the legacy obfuscation byte for byte so existing
// clients can still read messages. It hides nothing from anyone who knows the key.
// Deployments that need confidentiality use the AEAD codec instead.
package codec

import (
	"encoding/base64"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrDecode is returned when a ciphertext cannot be reversed.
var ErrDecode = fmt.Errorf("malformed ciphertext")

// Encrypt XORs every UTF-16 code unit of plaintext with the key byte at the same
// index (the key cycles), then base64-encodes the UTF-8 form of the result.
func Encrypt(plaintext, key string) string {
	return base64.StdEncoding.EncodeToString([]byte(xor(plaintext, key)))
}

// Decrypt reverses Encrypt. It fails closed with ErrDecode instead of returning garbage.
func Decrypt(ciphertext, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	return xor(string(raw), key), nil
}

// xor only touches the low byte of each code unit, so surrogate pairs stay pairs.
func xor(text, key string) string {
	if key == "" {
		return text
	}
	units := utf16.Encode([]rune(text))
	for i := range units {
		units[i] ^= uint16(key[i%len(key)])
	}
	return string(utf16.Decode(units))
}

// XOR is the Codec form of Encrypt/Decrypt bound to a fixed key.
type XOR struct {
	key string
}

func NewXOR(key string) XOR {
	return XOR{key: key}
}

func (XOR) Name() string { return NameXOR }

func (c XOR) Encode(plaintext string) (string, error) {
	return Encrypt(plaintext, c.key), nil
}

func (c XOR) Decode(ciphertext string) (string, error) {
	return Decrypt(ciphertext, c.key)
}

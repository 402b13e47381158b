package codec

import "fmt"

const (
	NameXOR  = "xor"
	NameAEAD = "chacha20poly1305"
)

// Codec transforms message bodies before broadcast. Decode(Encode(x)) == x.
type Codec interface {
	Name() string
	Encode(plaintext string) (string, error)
	Decode(ciphertext string) (string, error)
}

// New selects a codec by name.
func New(name, key string) (Codec, error) {
	switch name {
	case NameXOR, "":
		return NewXOR(key), nil
	case NameAEAD:
		return NewAEAD(key)
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

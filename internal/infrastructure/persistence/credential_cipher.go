package persistence

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	credentialKeySize   = 32
	credentialNonceSize = 24
)

// ErrCredentialDecrypt is returned when a sealed value fails authentication
var ErrCredentialDecrypt = errors.New("persistence: credential decryption failed")

// CredentialCipher seals marketplace tokens and credentials at rest with
// NaCl secretbox. Sealed values are nonce || box.
type CredentialCipher struct {
	key [credentialKeySize]byte
}

// NewCredentialCipher creates a cipher from a 32-byte key
func NewCredentialCipher(key []byte) (*CredentialCipher, error) {
	if len(key) != credentialKeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", credentialKeySize, len(key))
	}
	c := &CredentialCipher{}
	copy(c.key[:], key)
	return c, nil
}

// NewCredentialCipherFromBase64 creates a cipher from a base64 encoded key
func NewCredentialCipherFromBase64(encoded string) (*CredentialCipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode credential key: %w", err)
	}
	return NewCredentialCipher(key)
}

// Seal encrypts plaintext under a fresh random nonce
func (c *CredentialCipher) Seal(plaintext []byte) ([]byte, error) {
	var nonce [credentialNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &c.key), nil
}

// Open decrypts a value produced by Seal
func (c *CredentialCipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < credentialNonceSize+secretbox.Overhead {
		return nil, ErrCredentialDecrypt
	}
	var nonce [credentialNonceSize]byte
	copy(nonce[:], sealed[:credentialNonceSize])
	plain, ok := secretbox.Open(nil, sealed[credentialNonceSize:], &nonce, &c.key)
	if !ok {
		return nil, ErrCredentialDecrypt
	}
	return plain, nil
}

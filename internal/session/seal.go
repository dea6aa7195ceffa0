package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var errSealTooShort = errors.New("sealed blob too short")

// sealer encrypts the session file at rest with AES-256-GCM under a key
// derived from the configured passphrase. A blob that fails to open is
// treated by the store as corruption, not as an error.
type sealer struct {
	key []byte
}

func newSealer(passphrase string) *sealer {
	h := hkdf.New(sha256.New, []byte(passphrase), []byte("simguard-session"), []byte("session-seal"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		// hkdf over sha256 cannot fail for a 32-byte read
		panic(err)
	}
	return &sealer{key: key}
}

func (s *sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// close seals plaintext into nonce||ciphertext.
func (s *sealer) close(plaintext []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *sealer) open(blob []byte) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, errSealTooShort
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keySalt       = "gochat.message.key.v1"
	keyIterations = 4096
)

// Cipher provides symmetric encryption for message content. Messages
// are encrypted with AES-256-CBC and stored as "iv_hex:ciphertext_hex"
// with a fresh random IV per call.
//
// Both Encrypt and Decrypt fail open: on an internal crypto fault they
// return their input unchanged so message delivery is never blocked by
// a crypto problem. SECURITY CAVEAT: a fault on the encrypt path stores
// plaintext at rest. The trade-off is intentional
// (availability over confidentiality, matching the system this design
// is derived from), and every fallback is counted and logged so it is
// observable rather than silent.
type Cipher struct {
	block     cipher.Block
	logger    *zap.SugaredLogger
	fallbacks atomic.Uint64
}

// NewCipher derives a 32-byte AES key from the provided secret using
// PBKDF2-SHA256. Arbitrary-length secrets (e.g. from existing .env
// files) are accepted.
func NewCipher(secret string, logger *zap.SugaredLogger) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption secret must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	key := pbkdf2.Key([]byte(secret), []byte(keySalt), keyIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, logger: logger}, nil
}

// Encrypt returns the "iv_hex:ciphertext_hex" encoding of plain. On an
// internal fault it returns plain unchanged.
func (c *Cipher) Encrypt(plain string) string {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		c.fallback("encrypt", err)
		return plain
	}
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out)
}

// Decrypt parses the "iv:data" format and returns the plaintext. Input
// not matching the two-part format is returned unchanged (it may be a
// legacy unencrypted row); so is input that fails to decrypt.
func (c *Cipher) Decrypt(enc string) string {
	parts := strings.Split(enc, ":")
	if len(parts) != 2 {
		return enc
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		c.fallback("decrypt", errors.New("malformed iv"))
		return enc
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		c.fallback("decrypt", errors.New("malformed ciphertext"))
		return enc
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, data)
	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		c.fallback("decrypt", err)
		return enc
	}
	return string(unpadded)
}

// Fallbacks reports how many times the cipher has fallen back to
// passthrough since startup.
func (c *Cipher) Fallbacks() uint64 {
	return c.fallbacks.Load()
}

func (c *Cipher) fallback(op string, err error) {
	c.fallbacks.Add(1)
	c.logger.Warnw("cipher fallback to passthrough", "op", op, "error", err)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}

/**
 * @description
 * Reversible confidentiality protection for card numbers and CVVs at rest,
 * plus the masked display rendering. The scheme is AES-256-CBC with PKCS#7
 * padding; every Encrypt call draws a fresh random 16-byte IV from
 * crypto/rand, prepends it to the ciphertext, and base64-encodes the blob.
 *
 * @notes
 * - The configured secret is normalized to exactly 32 bytes by truncation or
 *   zero-padding. This is a compatibility shim carried over from the data this
 *   service inherits, not a recommended key-derivation scheme; changing it
 *   would orphan existing ciphertext.
 * - Decrypt fails soft (ok=false, no error) on malformed tokens so that one
 *   corrupt legacy row cannot break a bulk read. Cipher-level failures after
 *   the format checks pass are hard errors.
 */

package cardcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bankcards/bankcards-service/internal/domain"
)

const keyLength = 32 // AES-256

// ErrEncrypt wraps failures to produce a ciphertext token.
var ErrEncrypt = errors.New("cardcrypto: encryption failed")

// ErrDecrypt wraps cipher-level failures on well-formed tokens.
var ErrDecrypt = errors.New("cardcrypto: decryption failed")

// Codec encrypts and decrypts card data with a process-wide symmetric key.
type Codec struct {
	block  cipher.Block
	logger *slog.Logger
}

// New builds a Codec from the configured secret. The secret is normalized to
// the exact AES-256 key length; a warning is logged when that loses or pads
// key material.
func New(secret string, logger *slog.Logger) (*Codec, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: empty encryption key", ErrEncrypt)
	}

	key := normalizeKey([]byte(secret), logger)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return &Codec{block: block, logger: logger}, nil
}

func normalizeKey(key []byte, logger *slog.Logger) []byte {
	if len(key) == keyLength {
		return key
	}
	normalized := make([]byte, keyLength)
	copy(normalized, key)
	if len(key) > keyLength {
		logger.Warn("encryption key truncated", "from_bytes", len(key), "to_bytes", keyLength)
	} else {
		logger.Warn("encryption key zero-padded", "from_bytes", len(key), "to_bytes", keyLength)
	}
	return normalized
}

// Encrypt produces a transportable token for the given plaintext. Empty input
// is an error: there is no legitimate empty card number or CVV.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", ErrEncrypt)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt recovers the plaintext behind a token. ok is false, with a nil
// error, when the token is empty, not valid base64, or too short to contain an
// IV plus at least one byte of ciphertext; such rows are tolerated on read
// paths. A non-nil error means the token looked well formed but the cipher
// text did not decrypt, which is worth surfacing.
func (c *Codec) Decrypt(token string) (plaintext string, ok bool, err error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		c.logger.Debug("decrypt skipped: empty token")
		return "", false, nil
	}

	blob, decodeErr := base64.StdEncoding.DecodeString(trimmed)
	if decodeErr != nil {
		c.logger.Debug("decrypt skipped: token is not base64")
		return "", false, nil
	}
	if len(blob) <= aes.BlockSize || len(blob)%aes.BlockSize != 0 {
		c.logger.Debug("decrypt skipped: token too short", "bytes", len(blob))
		return "", false, nil
	}

	iv := blob[:aes.BlockSize]
	ciphertext := blob[aes.BlockSize:]
	decrypted := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(decrypted, ciphertext)

	unpadded, padErr := pkcs7Unpad(decrypted, aes.BlockSize)
	if padErr != nil {
		return "", false, fmt.Errorf("%w: %v", ErrDecrypt, padErr)
	}
	return string(unpadded), true, nil
}

// Mask renders the card number behind a ciphertext token with only the last
// four digits visible. Any decrypt failure, hard or soft, yields the full
// mask; the output never contains more than four digits of the original.
func (c *Codec) Mask(token string) string {
	plaintext, ok, err := c.Decrypt(token)
	if err != nil {
		c.logger.Error("card number decrypt failed for display", "error", err)
		return domain.FullMask
	}
	if !ok {
		return domain.FullMask
	}
	return domain.PAN(plaintext).String()
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}

// Package crypto provides AES-256-GCM encryption, decryption and display
// masking for outbound webhook target URLs. Target URLs embed bearer-like
// secret tokens and are never stored or rendered in plaintext.
//
// The package uses AES-256-GCM which provides both confidentiality and
// authenticity. Each encryption operation uses a unique random nonce, so
// encrypting the same URL twice produces different ciphertexts, both of
// which decrypt back to the original.
//
// Example usage:
//
//	codec, err := crypto.NewTargetCodec(cfg.EncryptionKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	encrypted, err := codec.Encrypt("https://example.com/hook?key=secret")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	plain, err := codec.Decrypt(encrypted)
//	if err != nil {
//		// authentication failure: drop this target
//	}
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"signal-router/internal/common/errors"
)

// keyDerivationSalt is static so the same configured key material always
// derives the same AES key across restarts.
const keyDerivationSalt = "signal-router-target-salt"

// TargetCodec encrypts and decrypts outbound target URLs using AES-256-GCM.
// The key material is derived once at construction and immutable afterwards,
// so a TargetCodec is safe for concurrent use by multiple goroutines.
type TargetCodec struct {
	key []byte // 32-byte AES-256 key
}

// NewTargetCodec creates a TargetCodec from the configured key material.
//
// The material is processed with PBKDF2 so any non-empty string yields a
// valid 32-byte AES-256 key; construction never fails for loosely formatted
// key material, only for an empty one.
func NewTargetCodec(key string) (*TargetCodec, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	derivedKey := pbkdf2.Key([]byte(key), []byte(keyDerivationSalt), 10000, 32, sha256.New)

	return &TargetCodec{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext target URL and returns base64(nonce || ciphertext).
// The nonce is freshly random per call, so two encryptions of the same URL
// never produce the same ciphertext.
func (c *TargetCodec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a ciphertext produced by Encrypt and returns the original
// target URL. Any failure - malformed encoding, truncated data, wrong key or
// tampering - is reported as an authentication error; callers treat it as
// "drop this target".
func (c *TargetCodec) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.AuthError("ciphertext is not valid base64")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.AuthError("ciphertext too short")
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.AuthError("ciphertext failed integrity check")
	}

	return string(plaintext), nil
}

// Mask returns a display-safe rendering of a target URL, obscuring the
// credential carried in a key= query parameter. It is a pure function and
// involves no key material; the output is for human display only.
//
// With a key= parameter: everything up to key= is kept; the key value shows
// its first 4 and last 4 characters around a literal *** when longer than 8
// characters, and collapses to key=*** otherwise so short secrets leak
// nothing from either end. Without a key= parameter: first 6 and last 4
// characters around ***, or just *** for strings of 12 characters or less.
func Mask(url string) string {
	idx := strings.LastIndex(url, "key=")
	if idx < 0 {
		if len(url) <= 12 {
			return "***"
		}
		return url[:6] + "***" + url[len(url)-4:]
	}

	prefix, key := url[:idx], url[idx+len("key="):]
	if len(key) <= 8 {
		return prefix + "key=***"
	}
	return prefix + "key=" + key[:4] + "***" + key[len(key)-4:]
}

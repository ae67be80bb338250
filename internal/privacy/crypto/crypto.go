// Package crypto implements the symmetric encryption and hashing primitives
// backing pseudonymization records.
//
// Encryption is AES-256-CBC with PKCS#7 padding under a fixed process-wide
// key and IV. The fixed IV means identical plaintexts produce identical
// ciphertexts, which leaks equality between records. This is kept for
// compatibility with the existing record format; a hardened deployment should
// generate a random IV per call and store it alongside the ciphertext.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	dErrors "maestro/pkg/domain-errors"
)

const (
	keySize = 32 // AES-256
	ivSize  = aes.BlockSize
)

// Service provides deterministic symmetric encryption and one-way hashing.
// Operations are CPU-only; the service is safe for concurrent use.
type Service struct {
	key []byte
	iv  []byte
}

// New builds a Service from textual key and IV material. Material shorter
// than the required length is right-padded with spaces, longer material is
// truncated; after normalization the key must be exactly 32 bytes and the IV
// exactly one AES block. Construction fails fast so a misconfigured service
// is never handed to callers.
func New(key, iv string) (*Service, error) {
	if strings.TrimSpace(key) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crypto key material cannot be empty")
	}
	if strings.TrimSpace(iv) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crypto IV material cannot be empty")
	}

	return &Service{key: normalize(key, keySize), iv: normalize(iv, ivSize)}, nil
}

// normalize right-pads material with spaces to size, then truncates. The
// material is treated as raw bytes: everything past the boundary is cut,
// including the tail of a multi-byte rune straddling it.
func normalize(material string, size int) []byte {
	b := []byte(material)
	for len(b) < size {
		b = append(b, ' ')
	}
	return b[:size]
}

// Encrypt encrypts plaintext and returns it base64-encoded. Empty or
// whitespace-only input is rejected: silently passing it through would store
// an unprotected record.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "plaintext cannot be empty")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "initialize cipher")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Empty input returns empty output: reversal of a
// record that was never populated is a no-op, not an error.
func (s *Service) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "ciphertext is not valid base64")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ciphertext length is not a multiple of the block size")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "initialize cipher")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "ciphertext padding is invalid")
	}
	return string(unpadded), nil
}

// Hash returns the base64-encoded SHA-256 digest of text. Deterministic so
// digests can serve as lookup keys without decrypting. Empty input hashes to
// the empty string.
func (s *Service) Hash(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyHash reports whether digest is the hash of text.
func (s *Service) VerifyHash(text, digest string) bool {
	return s.Hash(text) == digest
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "data is not block-aligned")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "padding byte out of range")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "padding bytes are inconsistent")
		}
	}
	return data[:len(data)-padding], nil
}

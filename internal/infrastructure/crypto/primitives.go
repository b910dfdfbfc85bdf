// Package crypto implements the authenticated-encryption and signing
// primitives glvault uses to seal credentials at rest and authenticate
// relay requests, plus the StorageBackend implementations that sit behind
// a key-management system (HashiCorp Vault).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// gcmNonceSize is the standard AES-GCM nonce length in bytes.
const gcmNonceSize = 12

// AESGCMService implements service.CryptoService with AES-256-GCM for
// credential encryption and HMAC-SHA-256 for relay request signing. The two
// keys are independent: masterKey never signs, signingKey never encrypts.
type AESGCMService struct {
	masterKey  []byte
	signingKey []byte
}

// NewAESGCMService builds a crypto service from a 32-byte master encryption
// key and an HMAC signing secret. It panics if masterKey is not 32 bytes,
// since that can only happen from a misconfigured deployment and must be
// caught at startup, not at request time.
func NewAESGCMService(masterKey, signingKey []byte) *AESGCMService {
	if len(masterKey) != 32 {
		panic(fmt.Sprintf("glvault: master encryption key must be 32 bytes, got %d", len(masterKey)))
	}
	return &AESGCMService{masterKey: masterKey, signingKey: signingKey}
}

// Encrypt seals plaintext under the master key with a fresh random nonce.
// The returned authTag is the GCM tag split off the sealed output so callers
// can store ciphertext, iv, and auth_tag as separate fields.
func (s *AESGCMService) Encrypt(plaintext []byte) (ciphertext, iv, authTag []byte, err error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, nil, nil, vaulterr.IntegrityFail("encryption failed").WithCause(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, vaulterr.IntegrityFail("encryption failed").WithCause(err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, vaulterr.IntegrityFail("encryption failed").WithCause(err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	tagSize := gcm.Overhead()
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return ct, nonce, tag, nil
}

// Decrypt reassembles ciphertext and authTag and opens the seal under iv.
// Any failure (wrong key, truncated input, a tampered tag) is reported
// uniformly as IntegrityFail so callers never learn which check failed.
func (s *AESGCMService) Decrypt(ciphertext, iv, authTag []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, vaulterr.IntegrityFail("decryption failed").WithCause(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, vaulterr.IntegrityFail("decryption failed").WithCause(err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, vaulterr.IntegrityFail("decryption failed")
	}

	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, vaulterr.IntegrityFail("decryption failed").WithCause(err)
	}
	return plaintext, nil
}

// Sign computes HMAC-SHA-256(signingKey, payload), hex-encoded lowercase.
func (s *AESGCMService) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares it to
// signatureHex in constant time. An invalid hex encoding is treated as a
// mismatch, not an error, so callers get one uniform BAD_SIGNATURE outcome.
func (s *AESGCMService) VerifySignature(payload []byte, signatureHex string) bool {
	expected := s.Sign(payload)
	return ConstantTimeEqual(expected, signatureHex)
}

// ConstantTimeEqual compares two strings without leaking length or content
// through timing. Unlike subtle.ConstantTimeCompare, it does not short-circuit
// when lengths differ: a length mismatch still walks the longer string
// against a zeroed buffer so comparison time is independent of input shape.
func ConstantTimeEqual(a, b string) bool {
	la, lb := len(a), len(b)
	n := la
	if lb > n {
		n = lb
	}

	bufA := make([]byte, n)
	bufB := make([]byte, n)
	copy(bufA, a)
	copy(bufB, b)

	eq := subtle.ConstantTimeCompare(bufA, bufB)
	lenEq := subtle.ConstantTimeEq(int32(la), int32(lb))
	return eq == 1 && lenEq == 1
}

// DeriveSubKey derives a context-scoped key from a master secret via
// HMAC-SHA-256(masterSecret, context), for callers that need a key bound to
// a specific purpose string rather than the raw master secret itself.
func DeriveSubKey(masterSecret []byte, context string) []byte {
	mac := hmac.New(sha256.New, masterSecret)
	mac.Write([]byte(context))
	return mac.Sum(nil)
}

// RandomHex returns n random bytes hex-encoded, used for nonce and audit-ID
// generation where a collision-resistant opaque token is needed.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

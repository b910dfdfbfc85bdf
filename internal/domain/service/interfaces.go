// Package service declares the contracts the application layer is built
// against: the raw key-value storage backend, the credential vault built on
// top of it, the crypto primitives it uses, request authentication, and the
// audit trail. Concrete implementations live under internal/infrastructure.
package service

import (
	"context"

	"github.com/genlayerlabs/glvault/internal/domain/models"
)

// StorageBackend is the minimal contract every persistence implementation
// (in-memory, Redis, Vault) satisfies. Keys and values are opaque strings;
// callers are responsible for serialization and for respecting the
// glvault: key namespace.
type StorageBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Scan returns every key with the given prefix. Order is not guaranteed.
	Scan(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// CryptoService is the set of authenticated-encryption and signing
// primitives the credential store and request authenticator depend on.
type CryptoService interface {
	// Encrypt seals plaintext under the master key, returning ciphertext,
	// iv, and authTag separately so they can be stored alongside the record.
	Encrypt(plaintext []byte) (ciphertext, iv, authTag []byte, err error)
	// Decrypt opens a record sealed by Encrypt. Returns IntegrityFail if the
	// auth tag does not verify.
	Decrypt(ciphertext, iv, authTag []byte) ([]byte, error)
	// Sign computes the HMAC-SHA-256 of payload under the signing key,
	// returned as 64 lowercase hex characters.
	Sign(payload []byte) string
	// VerifySignature reports whether signatureHex is the correct signature
	// for payload, in constant time.
	VerifySignature(payload []byte, signatureHex string) bool
}

// CredentialStore is the application-facing vault: register, read, rotate,
// remove, list, and quota-track third-party API credentials by alias.
type CredentialStore interface {
	Register(ctx context.Context, alias, plaintext, baseURL string, quotaLimit int64, owner string) (*models.CredentialRecord, error)
	GetPlaintext(ctx context.Context, alias string) (string, error)
	GetRecord(ctx context.Context, alias string) (*models.CredentialRecord, error)
	Rotate(ctx context.Context, alias, newPlaintext string) (*models.CredentialRecord, error)
	Remove(ctx context.Context, alias string) error
	List(ctx context.Context) ([]models.CredentialSummary, error)
	// IncrementUsage applies the fixed-window quota counter for alias and
	// reports whether the call is within quota, plus the remaining budget.
	IncrementUsage(ctx context.Context, alias string) (allowed bool, remaining int64, retryAfterMs int64, err error)
}

// RequestAuthenticator verifies the two kinds of caller credentials glvault
// accepts: HMAC-signed relay requests and admin bearer tokens.
type RequestAuthenticator interface {
	VerifyRelayRequest(alias, method, path string, timestampMs int64, nonce, signatureHex string) error
	VerifyAdmin(authorizationHeader string) error
}

// AuditLog is the append-only trail of relay attempts, queryable per alias.
type AuditLog interface {
	Record(ctx context.Context, entry models.AuditEntry) error
	Query(ctx context.Context, alias string, since, until *int64, limit int) ([]models.AuditEntry, error)
	Stats(ctx context.Context, alias string, since *int64) (models.AuditStats, error)
}

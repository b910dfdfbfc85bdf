// Package auth implements glvault's two caller-authentication paths: HMAC
// signature verification for relay requests and bearer-token verification
// for admin operations.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/genlayerlabs/glvault/internal/domain/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// allowedMethods are the HTTP verbs a signed relay request may use.
var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
}

// Authenticator implements service.RequestAuthenticator.
type Authenticator struct {
	crypto       service.CryptoService
	adminToken   string
	maxRequestAge time.Duration
}

// NewAuthenticator builds an Authenticator. adminToken is the shared secret
// admin callers must present as "Bearer <adminToken>".
func NewAuthenticator(cryptoSvc service.CryptoService, adminToken string, maxRequestAge time.Duration) *Authenticator {
	return &Authenticator{crypto: cryptoSvc, adminToken: adminToken, maxRequestAge: maxRequestAge}
}

// VerifyRelayRequest checks a signed relay request against the canonical
// payload alias:method:path:timestamp_ms:nonce, in this order: staleness,
// missing fields, method whitelist, then signature. The order matters:
// callers key off which failure fired first.
func (a *Authenticator) VerifyRelayRequest(alias, method, path string, timestampMs int64, nonce, signatureHex string) error {
	nowMs := time.Now().UTC().UnixMilli()
	age := nowMs - timestampMs
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Millisecond > a.maxRequestAge {
		return vaulterr.Unauthenticated("Request expired")
	}

	if alias == "" || method == "" || path == "" || nonce == "" || signatureHex == "" {
		return vaulterr.Unauthenticated("MISSING_FIELD")
	}

	if !allowedMethods[method] {
		return vaulterr.Unauthenticated("BAD_METHOD")
	}

	payload := canonicalPayload(alias, method, path, timestampMs, nonce)
	if !a.crypto.VerifySignature([]byte(payload), signatureHex) {
		return vaulterr.Unauthenticated("BAD_SIGNATURE")
	}

	return nil
}

// canonicalPayload builds the exact string that is HMAC-signed by callers.
func canonicalPayload(alias, method, path string, timestampMs int64, nonce string) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", alias, method, path, timestampMs, nonce)
}

// VerifyAdmin checks that authorizationHeader is exactly "Bearer <token>"
// for the configured admin token, compared in constant time. The three
// failure modes are distinguished so callers can tell a missing header
// from a malformed scheme from a wrong token.
func (a *Authenticator) VerifyAdmin(authorizationHeader string) error {
	if authorizationHeader == "" {
		return vaulterr.Unauthenticated("Missing")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return vaulterr.Unauthenticated("Invalid Authorization format")
	}
	presented := strings.TrimPrefix(authorizationHeader, prefix)
	if !crypto.ConstantTimeEqual(presented, a.adminToken) {
		return vaulterr.Unauthenticated("Invalid admin token")
	}
	return nil
}

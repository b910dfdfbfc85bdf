package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/genlayerlabs/glvault/internal/application/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/audit"
	"github.com/genlayerlabs/glvault/internal/infrastructure/auth"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/monitoring"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/handlers"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// testMetrics is constructed once: monitoring.NewMetrics registers its
// collectors with the default Prometheus registry, and a second call in
// the same process would panic on duplicate registration.
var testMetrics = monitoring.NewMetrics()

type relayFixture struct {
	handler   *handlers.RelayHandler
	cryptoSvc *crypto.AESGCMService
	auditLog  *audit.KVLog
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	backend := memory.NewBackend()
	cryptoSvc := crypto.NewAESGCMService(make([]byte, 32), []byte("signing-secret"))
	store := appservice.NewCredentialStore(backend, cryptoSvc, logger.NewNoopLogger(), 60*time.Second)
	idGen := func() (string, error) { return crypto.RandomHex(8) }
	auditLog := audit.NewKVLog(backend, idGen, logger.NewNoopLogger())
	authenticator := auth.NewAuthenticator(cryptoSvc, "admin-secret-token", 30*time.Second)

	h := handlers.NewRelayHandler(authenticator, store, auditLog, testMetrics, logger.NewNoopLogger(), nil, handlers.RelayOptions{})

	_, err := store.Register(t.Context(), "weather-api", "sk-live-123", "", 2, "ops")
	require.NoError(t, err)

	return &relayFixture{handler: h, cryptoSvc: cryptoSvc, auditLog: auditLog}
}

func signPayload(cryptoSvc *crypto.AESGCMService, alias, method, path string, timestampMs int64, nonce string) string {
	payload := fmt.Sprintf("%s:%s:%s:%d:%s", alias, method, path, timestampMs, nonce)
	return cryptoSvc.Sign([]byte(payload))
}

// postRelay sends body to POST /proxy with the signature carried in the
// Authorization header, matching the wire contract callers use.
func postRelay(h *handlers.RelayHandler, body []byte, signatureHex, callerID string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/proxy", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signatureHex != "" {
		req.Header.Set("Authorization", "Signature "+signatureHex)
	}
	if callerID != "" {
		req.Header.Set("X-Caller-Id", callerID)
	}
	c.Request = req
	h.Relay(c)
	return rec
}

func TestRelaySuccessReturnsSanitizedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotURI, gotAccept, gotUserAgent string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		gotAccept = r.Header.Get("Accept")
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"temp":72}`))
	}))
	defer upstream.Close()

	backend := memory.NewBackend()
	cryptoSvc := crypto.NewAESGCMService(make([]byte, 32), []byte("signing-secret"))
	store := appservice.NewCredentialStore(backend, cryptoSvc, logger.NewNoopLogger(), 60*time.Second)
	idGen := func() (string, error) { return crypto.RandomHex(8) }
	auditLog := audit.NewKVLog(backend, idGen, logger.NewNoopLogger())
	authenticator := auth.NewAuthenticator(cryptoSvc, "admin-secret-token", 30*time.Second)
	h := handlers.NewRelayHandler(authenticator, store, auditLog, testMetrics, logger.NewNoopLogger(), nil, handlers.RelayOptions{})

	_, err := store.Register(t.Context(), "weather-api", "sk-live-123", upstream.URL, 10, "ops")
	require.NoError(t, err)

	now := time.Now().UTC().UnixMilli()
	sig := signPayload(cryptoSvc, "weather-api", "GET", "/v1/current", now, "nonce-1")
	body, _ := json.Marshal(map[string]interface{}{
		"alias":     "weather-api",
		"method":    "GET",
		"path":      "/v1/current",
		"timestamp": now,
		"nonce":     "nonce-1",
	})

	rec := postRelay(h, body, sig, "contract-0xabc")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status         int         `json:"status"`
		Data           interface{} `json:"data"`
		Cached         bool        `json:"cached"`
		LatencyMs      int64       `json:"latency_ms"`
		RemainingQuota int64       `json:"remaining_quota"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.False(t, resp.Cached)
	assert.Equal(t, int64(9), resp.RemainingQuota)
	assert.Equal(t, map[string]interface{}{"temp": float64(72)}, resp.Data)

	// The decrypted credential is injected as the trailing query parameter,
	// under the default name since the test upstream matches no host suffix.
	assert.Equal(t, "/v1/current?api_key=sk-live-123", gotURI)
	assert.Equal(t, "application/json", gotAccept)
	assert.Contains(t, gotUserAgent, "glvault/")

	entries, err := auditLog.Query(t.Context(), "weather-api", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusOK, entries[0].Status)
	assert.Equal(t, "contract-0xabc", entries[0].Caller)
}

func TestRelayBadSignatureIsNotAudited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fx := newRelayFixture(t)

	now := time.Now().UTC().UnixMilli()
	body, _ := json.Marshal(map[string]interface{}{
		"alias":     "weather-api",
		"method":    "GET",
		"path":      "/v1/current",
		"timestamp": now,
		"nonce":     "nonce-1",
	})

	rec := postRelay(fx.handler, body, "0000000000000000000000000000000000000000000000000000000000000000", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	entries, err := fx.auditLog.Query(t.Context(), "weather-api", nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestRelayUnknownAliasReturns404Unaudited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fx := newRelayFixture(t)

	now := time.Now().UTC().UnixMilli()
	sig := signPayload(fx.cryptoSvc, "ghost-api", "GET", "/v1/current", now, "nonce-1")
	body, _ := json.Marshal(map[string]interface{}{
		"alias":     "ghost-api",
		"method":    "GET",
		"path":      "/v1/current",
		"timestamp": now,
		"nonce":     "nonce-1",
	})

	rec := postRelay(fx.handler, body, sig, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	entries, err := fx.auditLog.Query(t.Context(), "ghost-api", nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 0)
}

func TestRelayQuotaExceededReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fx := newRelayFixture(t)

	call := func(nonce string) *httptest.ResponseRecorder {
		now := time.Now().UTC().UnixMilli()
		sig := signPayload(fx.cryptoSvc, "weather-api", "GET", "/v1/current", now, nonce)
		body, _ := json.Marshal(map[string]interface{}{
			"alias":     "weather-api",
			"method":    "GET",
			"path":      "/v1/current",
			"timestamp": now,
			"nonce":     nonce,
		})
		return postRelay(fx.handler, body, sig, "")
	}

	// fixture registers weather-api with quota_limit=2; the first two
	// calls dispatch against an empty base_url and fail upstream, but
	// still consume quota before a third call is rejected.
	_ = call("nonce-a")
	_ = call("nonce-b")
	rec := call("nonce-c")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After-Ms"))

	entries, err := fx.auditLog.Query(t.Context(), "weather-api", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, http.StatusTooManyRequests, entries[0].Status)
	assert.Equal(t, "Rate limit exceeded", entries[0].Error)
}

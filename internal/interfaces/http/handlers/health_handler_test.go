package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/genlayerlabs/glvault/internal/application/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/handlers"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

func TestHealthCheckReportsKeysRegistered(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := memory.NewBackend()
	cryptoSvc := crypto.NewAESGCMService(make([]byte, 32), []byte("signing-secret"))
	store := appservice.NewCredentialStore(backend, cryptoSvc, logger.NewNoopLogger(), 60*time.Second)
	_, err := store.Register(t.Context(), "weather-api", "sk-live-123", "https://example.com", 0, "")
	require.NoError(t, err)

	h := handlers.NewHealthHandler(store, logger.NewNoopLogger())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.HealthCheck(c)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status         string `json:"status"`
		Version        string `json:"version"`
		UptimeMs       int64  `json:"uptime_ms"`
		Storage        string `json:"storage"`
		KeysRegistered int    `json:"keys_registered"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "connected", resp.Storage)
	assert.Equal(t, 1, resp.KeysRegistered)
	assert.NotEmpty(t, resp.Version)
	assert.GreaterOrEqual(t, resp.UptimeMs, int64(0))
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservice "github.com/genlayerlabs/glvault/internal/application/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/audit"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	"github.com/genlayerlabs/glvault/internal/interfaces/http/handlers"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

func newAdminHandler() *handlers.AdminHandler {
	backend := memory.NewBackend()
	cryptoSvc := crypto.NewAESGCMService(make([]byte, 32), []byte("signing-secret"))
	store := appservice.NewCredentialStore(backend, cryptoSvc, logger.NewNoopLogger(), 60*time.Second)
	idGen := func() (string, error) { return crypto.RandomHex(8) }
	auditLog := audit.NewKVLog(backend, idGen, logger.NewNoopLogger())
	return handlers.NewAdminHandler(store, auditLog)
}

func performRequest(h gin.HandlerFunc, method, path string, body []byte, params gin.Params) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = params
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	h(c)
	c.Writer.WriteHeaderNow()
	return rec
}

func TestAdminRegisterAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAdminHandler()

	body, _ := json.Marshal(map[string]interface{}{
		"alias":    "weather-api",
		"api_key":  "sk-live-123",
		"base_url": "https://api.openweathermap.org",
	})
	rec := performRequest(h.Register, http.MethodPost, "/keys/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performRequest(h.List, http.MethodGet, "/keys/list", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Count int                      `json:"count"`
		Keys  []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Count)
	require.Len(t, listResp.Keys, 1)
	assert.Equal(t, "weather-api", listResp.Keys[0]["alias"])
	assert.NotContains(t, listResp.Keys[0], "ciphertext")
}

func TestAdminRegisterRejectsInvalidAlias(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAdminHandler()

	body, _ := json.Marshal(map[string]interface{}{
		"alias":    "bad alias!",
		"api_key":  "sk-live-123",
		"base_url": "https://api.openweathermap.org",
	})
	rec := performRequest(h.Register, http.MethodPost, "/keys/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRotateAndRemove(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAdminHandler()

	body, _ := json.Marshal(map[string]interface{}{
		"alias":    "weather-api",
		"api_key":  "sk-live-123",
		"base_url": "https://api.openweathermap.org",
	})
	rec := performRequest(h.Register, http.MethodPost, "/keys/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rotateBody, _ := json.Marshal(map[string]interface{}{
		"alias":       "weather-api",
		"new_api_key": "sk-live-456",
	})
	rec = performRequest(h.Rotate, http.MethodPost, "/keys/rotate", rotateBody, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rotateResp struct {
		Alias     string `json:"alias"`
		RotatedAt int64  `json:"rotated_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotateResp))
	assert.Equal(t, "weather-api", rotateResp.Alias)
	assert.NotZero(t, rotateResp.RotatedAt)

	rec = performRequest(h.Remove, http.MethodDelete, "/keys/weather-api", nil,
		gin.Params{{Key: "alias", Value: "weather-api"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = performRequest(h.Remove, http.MethodDelete, "/keys/weather-api", nil,
		gin.Params{{Key: "alias", Value: "weather-api"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuditCombinesEntriesAndStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAdminHandler()

	body, _ := json.Marshal(map[string]interface{}{
		"alias":    "weather-api",
		"api_key":  "sk-live-123",
		"base_url": "https://api.openweathermap.org",
	})
	rec := performRequest(h.Register, http.MethodPost, "/keys/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performRequest(h.Audit, http.MethodGet, "/keys/audit?alias=weather-api", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alias   string        `json:"alias"`
		Stats   interface{}   `json:"stats"`
		Entries []interface{} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "weather-api", resp.Alias)
	assert.NotNil(t, resp.Stats)
	assert.Len(t, resp.Entries, 0)
}

func TestAdminAuditRequiresAlias(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAdminHandler()

	rec := performRequest(h.Audit, http.MethodGet, "/keys/audit", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Package handlers implements glvault's HTTP surface: the relay endpoint
// that proxies signed requests to third-party APIs, the admin endpoints
// that manage credentials, and health/audit reporting.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	"github.com/genlayerlabs/glvault/internal/domain/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/monitoring"
	"github.com/genlayerlabs/glvault/internal/infrastructure/nonceguard"
	"github.com/genlayerlabs/glvault/pkg/constants"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// defaultCredentialParams maps a third-party API host suffix to the query
// parameter name its credential is passed under. Operators extend the table
// through RelayOptions; defaultCredentialParam applies when no suffix matches.
var defaultCredentialParams = map[string]string{
	"openweathermap.org": "appid",
	"newsapi.org":        "apiKey",
	"alphavantage.co":    "apikey",
	"googleapis.com":     "key",
}

const defaultCredentialParam = "api_key"

// defaultUpstreamTimeout bounds a single upstream dispatch when RelayOptions
// doesn't override it.
const defaultUpstreamTimeout = 15 * time.Second

// RelayOptions tunes upstream dispatch without code changes: extra
// host-suffix credential parameter mappings (overriding the built-in table
// on conflict) and the upstream HTTP timeout.
type RelayOptions struct {
	CredentialParams map[string]string
	UpstreamTimeout  time.Duration
}

// relayRequest is the POST /proxy request body. The signature itself
// travels out-of-band in the Authorization header, not in this body.
type relayRequest struct {
	Alias       string            `json:"alias"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	TimestampMs int64             `json:"timestamp"`
	Nonce       string            `json:"nonce"`
	Body        json.RawMessage   `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// signaturePrefix is the Authorization scheme a relay request's HMAC
// signature is carried under: "Authorization: Signature <64-hex>".
const signaturePrefix = "Signature "

// extractSignature pulls the hex signature out of an Authorization header
// formatted as "Signature <hex>", returning "" if the header is absent or
// uses a different scheme.
func extractSignature(header string) string {
	if !strings.HasPrefix(header, signaturePrefix) {
		return ""
	}
	return strings.TrimPrefix(header, signaturePrefix)
}

// relayResponse is the sanitized response every /proxy call returns.
// Credential material and upstream headers never appear here.
type relayResponse struct {
	Status         int         `json:"status"`
	Data           interface{} `json:"data"`
	Cached         bool        `json:"cached"`
	LatencyMs      int64       `json:"latency_ms"`
	RemainingQuota int64       `json:"remaining_quota"`
}

// RelayHandler implements the VERIFY -> RATE -> DECRYPT -> DISPATCH ->
// SANITIZE -> AUDIT relay state machine.
type RelayHandler struct {
	auth       service.RequestAuthenticator
	store      service.CredentialStore
	audit      service.AuditLog
	metrics    *monitoring.Metrics
	log        logger.Logger
	client     *http.Client
	nonceGuard *nonceguard.Guard
	credParams map[string]string
}

// NewRelayHandler builds a RelayHandler with a bounded-timeout HTTP client
// for upstream dispatch. nonceGuard may be nil, in which case replay
// protection beyond the signature's own staleness window is skipped.
func NewRelayHandler(auth service.RequestAuthenticator, store service.CredentialStore, auditLog service.AuditLog, metrics *monitoring.Metrics, log logger.Logger, nonceGuard *nonceguard.Guard, opts RelayOptions) *RelayHandler {
	timeout := opts.UpstreamTimeout
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	credParams := make(map[string]string, len(defaultCredentialParams)+len(opts.CredentialParams))
	for suffix, param := range defaultCredentialParams {
		credParams[suffix] = param
	}
	for suffix, param := range opts.CredentialParams {
		credParams[suffix] = param
	}
	return &RelayHandler{
		auth:       auth,
		store:      store,
		audit:      auditLog,
		metrics:    metrics,
		log:        log,
		client:     &http.Client{Timeout: timeout},
		nonceGuard: nonceGuard,
		credParams: credParams,
	}
}

// Relay handles POST /proxy.
func (h *RelayHandler) Relay(c *gin.Context) {
	ctx := c.Request.Context()

	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, vaulterr.InvalidInput("malformed request body"))
		return
	}
	caller := c.GetHeader("X-Caller-Id")
	signatureHex := extractSignature(c.GetHeader("Authorization"))

	// VERIFY: an authentication failure is never audited.
	if err := h.auth.VerifyRelayRequest(req.Alias, req.Method, req.Path, req.TimestampMs, req.Nonce, signatureHex); err != nil {
		h.writeError(c, err)
		return
	}
	if h.nonceGuard != nil {
		seen, err := h.nonceGuard.SeenBefore(ctx, req.Alias, req.Nonce)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if seen {
			h.writeError(c, vaulterr.Unauthenticated("REPLAYED"))
			return
		}
	}

	start := time.Now()

	// RATE: unknown alias short-circuits to 404 unaudited; over-quota is 429
	// and audited.
	allowed, remaining, retryAfterMs, err := h.store.IncrementUsage(ctx, req.Alias)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !allowed {
		h.metrics.RecordQuotaRejection(req.Alias)
		h.recordAudit(ctx, req, caller, http.StatusTooManyRequests, time.Since(start), "Rate limit exceeded")
		c.Header("Retry-After-Ms", strconv.FormatInt(retryAfterMs, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          "RATE_LIMITED",
			"status":         http.StatusTooManyRequests,
			"remaining":      0,
			"retry_after_ms": retryAfterMs,
		})
		return
	}

	// DECRYPT
	rec, err := h.store.GetRecord(ctx, req.Alias)
	if err != nil {
		h.recordAudit(ctx, req, caller, httpStatusOf(err), time.Since(start), err.Error())
		h.writeError(c, err)
		return
	}
	plaintext, err := h.store.GetPlaintext(ctx, req.Alias)
	if err != nil {
		h.recordAudit(ctx, req, caller, http.StatusInternalServerError, time.Since(start), "integrity failure")
		h.writeError(c, err)
		return
	}

	// DISPATCH
	status, data, dispatchErr := h.dispatch(ctx, rec.BaseURL, req, plaintext)
	latency := time.Since(start)

	if dispatchErr != nil {
		h.metrics.RecordRelay(req.Alias, "upstream_fail", latency)
		h.recordAudit(ctx, req, caller, http.StatusBadGateway, latency, dispatchErr.Error())
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "UPSTREAM_FAIL",
			"status":     http.StatusBadGateway,
			"latency_ms": latency.Milliseconds(),
		})
		return
	}

	// SANITIZE
	resp := relayResponse{
		Status:         status,
		Data:           data,
		Cached:         false,
		LatencyMs:      latency.Milliseconds(),
		RemainingQuota: remaining,
	}

	h.metrics.RecordRelay(req.Alias, "success", latency)
	h.recordAudit(ctx, req, caller, status, latency, "")

	c.JSON(http.StatusOK, resp)
}

func (h *RelayHandler) dispatch(ctx context.Context, baseURL string, req relayRequest, credential string) (int, interface{}, error) {
	target, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(req.Path, "/"))
	if err != nil {
		return 0, nil, err
	}

	// Append rather than re-encode, so the caller's query survives verbatim
	// and the credential always rides last.
	credParam := h.credentialParamFor(target.Host) + "=" + url.QueryEscape(credential)
	if target.RawQuery == "" {
		target.RawQuery = credParam
	} else {
		target.RawQuery += "&" + credParam
	}

	var bodyReader io.Reader
	if req.Method != http.MethodGet && len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bodyReader)
	if err != nil {
		return 0, nil, err
	}
	// Base header set first, then the caller's headers on top.
	httpReq.Header.Set("User-Agent", "glvault/"+constants.ServiceVersion)
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	upstreamResp, err := h.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer upstreamResp.Body.Close()

	rawBody, err := io.ReadAll(upstreamResp.Body)
	if err != nil {
		return 0, nil, err
	}

	var data interface{}
	if strings.Contains(upstreamResp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rawBody, &data); err != nil {
			data = string(rawBody)
		}
	} else {
		data = string(rawBody)
	}

	return upstreamResp.StatusCode, data, nil
}

// credentialParamFor picks the query parameter name a host expects its
// credential under, matching by domain suffix.
func (h *RelayHandler) credentialParamFor(host string) string {
	for suffix, param := range h.credParams {
		if strings.HasSuffix(host, suffix) {
			return param
		}
	}
	return defaultCredentialParam
}

func (h *RelayHandler) recordAudit(ctx context.Context, req relayRequest, caller string, status int, latency time.Duration, errMsg string) {
	entry := models.AuditEntry{
		Alias:     req.Alias,
		Caller:    caller,
		Path:      req.Path,
		Method:    req.Method,
		Status:    status,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC().UnixMilli(),
		Error:     errMsg,
	}
	id, err := crypto.RandomHex(16)
	if err == nil {
		entry.ID = id
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		h.log.Warn(ctx, "audit record failed", logger.Fields{"alias": req.Alias, "error": err.Error()})
	}
}

func (h *RelayHandler) writeError(c *gin.Context, err error) {
	resp, status := vaulterr.ToErrorResponse(err)
	c.JSON(status, resp)
}

func httpStatusOf(err error) int {
	if ve, ok := vaulterr.As(err); ok {
		return ve.HTTPStatus()
	}
	return http.StatusInternalServerError
}

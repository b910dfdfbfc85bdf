package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/genlayerlabs/glvault/internal/domain/service"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/utils"
)

// AdminHandler implements the admin-token-gated credential and audit
// management endpoints.
type AdminHandler struct {
	store service.CredentialStore
	audit service.AuditLog
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(store service.CredentialStore, auditLog service.AuditLog) *AdminHandler {
	return &AdminHandler{store: store, audit: auditLog}
}

type registerRequest struct {
	Alias      string `json:"alias" binding:"required" validate:"required,alias"`
	ApiKey     string `json:"api_key" binding:"required" validate:"required"`
	BaseURL    string `json:"base_url" binding:"required" validate:"required,url"`
	QuotaLimit int64  `json:"quota_limit"`
	Owner      string `json:"owner"`
}

// Register handles POST /keys/register.
func (h *AdminHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, vaulterr.InvalidInput("malformed request body"))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		writeErr(c, err)
		return
	}

	rec, err := h.store.Register(c.Request.Context(), req.Alias, req.ApiKey, req.BaseURL, req.QuotaLimit, req.Owner)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec.Summary())
}

// List handles GET /keys/list.
func (h *AdminHandler) List(c *gin.Context) {
	summaries, err := h.store.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(summaries), "keys": summaries})
}

type rotateRequest struct {
	Alias     string `json:"alias" binding:"required"`
	NewApiKey string `json:"new_api_key" binding:"required"`
}

// Rotate handles POST /keys/rotate.
func (h *AdminHandler) Rotate(c *gin.Context) {
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, vaulterr.InvalidInput("malformed request body"))
		return
	}

	rec, err := h.store.Rotate(c.Request.Context(), req.Alias, req.NewApiKey)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alias":      rec.Alias,
		"rotated_at": rec.RotatedAt,
	})
}

// Remove handles DELETE /keys/:alias.
func (h *AdminHandler) Remove(c *gin.Context) {
	alias := c.Param("alias")
	if err := h.store.Remove(c.Request.Context(), alias); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Audit handles GET /keys/audit?alias=X&since=ms&limit=N, combining the
// matching entries with their aggregate stats in a single response.
func (h *AdminHandler) Audit(c *gin.Context) {
	alias := c.Query("alias")
	if alias == "" {
		writeErr(c, vaulterr.InvalidInput("alias query parameter is required"))
		return
	}

	var since *int64
	if s := c.Query("since"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = &v
		}
	}
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	entries, err := h.audit.Query(c.Request.Context(), alias, since, nil, limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	stats, err := h.audit.Stats(c.Request.Context(), alias, since)
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alias":   alias,
		"stats":   stats,
		"entries": entries,
	})
}

func writeErr(c *gin.Context, err error) {
	resp, status := vaulterr.ToErrorResponse(err)
	c.JSON(status, resp)
}

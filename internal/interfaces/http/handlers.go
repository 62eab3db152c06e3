package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/level10nurd/documentExtraction/internal/repository"
	"go.uber.org/zap"
)

// Version is reported by the health check
var Version = "dev"

// Handlers contains all HTTP request handlers
type Handlers struct {
	store  ReportStore
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(store ReportStore, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:  store,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListRunsRequest represents query parameters for listing runs
type ListRunsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// ListRuns handles GET /api/v1/runs
func (h *Handlers) ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	runs, err := h.store.ListRuns(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.internalError(c, "failed to retrieve runs", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

// GetRun handles GET /api/v1/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: run})
}

// ListInvoices handles GET /api/v1/runs/:id/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	invoices, err := h.store.ListInvoices(c.Request.Context(), run.ID)
	if err != nil {
		h.internalError(c, "failed to retrieve invoices", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoices})
}

// ListFailures handles GET /api/v1/runs/:id/failures
func (h *Handlers) ListFailures(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	failures, err := h.store.ListFailures(c.Request.Context(), run.ID)
	if err != nil {
		h.internalError(c, "failed to retrieve failures", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: failures})
}

// ListDuplicates handles GET /api/v1/runs/:id/duplicates
func (h *Handlers) ListDuplicates(c *gin.Context) {
	run, ok := h.lookupRun(c)
	if !ok {
		return
	}
	groups, err := h.store.ListDuplicates(c.Request.Context(), run.ID)
	if err != nil {
		h.internalError(c, "failed to retrieve duplicates", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: groups})
}

// lookupRun loads the run named by the :id parameter, writing 404 or 500 when it cannot
func (h *Handlers) lookupRun(c *gin.Context) (*repository.RunSummary, bool) {
	id := c.Param("id")
	run, err := h.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "run not found",
		})
		return nil, false
	}
	if err != nil {
		h.internalError(c, "failed to retrieve run", err)
		return nil, false
	}
	return run, true
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   msg,
	})
}

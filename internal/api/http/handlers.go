package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devforge/workbench/internal/infrastructure/logging"
	"github.com/devforge/workbench/internal/infrastructure/monitoring"
	"github.com/devforge/workbench/internal/service"
	"github.com/devforge/workbench/internal/shared/id"
	"github.com/devforge/workbench/internal/shared/types"
	"github.com/devforge/workbench/internal/term"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *service.Registry
	terms    *term.Manager
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(registry *service.Registry, terms *term.Manager, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		terms:    terms,
		metrics:  metrics,
		log:      log.Named("http"),
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "workbench daemon",
		"version": "0.1.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"uptime_seconds":    int64(h.metrics.Uptime().Seconds()),
		"terminal_sessions": h.terms.Count(),
		"service_registry":  h.registry.Stats(),
	})
}

// ListServices lists registered services, optionally by category.
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if categoryStr := c.Query("category"); categoryStr != "" {
		cat := types.Category(categoryStr)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// ExecuteService runs one tool through the registry.
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := string(id.NewRequestID())
	appCtx := &types.Context{RequestID: &requestID}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		h.log.Debug("tool execution failed",
			zap.String("tool_id", req.ToolID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		status := http.StatusBadRequest
		if result != nil && result.Error != nil {
			c.JSON(status, gin.H{"error": *result.Error, "request_id": requestID})
		} else {
			c.JSON(status, gin.H{"error": err.Error(), "request_id": requestID})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":     result,
		"request_id": requestID,
	})
}

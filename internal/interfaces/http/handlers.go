package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/case-workflow/internal/application/service"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

// ActorHeader carries the id of the user performing the request
const ActorHeader = "X-User-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	health   HealthChecker
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthChecker, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		health:   health,
		logger:   logger,
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
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if h.health != nil {
		resp.Components = h.health.HealthCheck(c.Request.Context())
		for _, state := range resp.Components {
			if state != "ok" {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				break
			}
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    resp,
	})
}

func ok(c *gin.Context, code int, data interface{}) {
	c.JSON(code, Response{Success: true, Data: data})
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Response{Success: false, Error: msg})
}

// statusFor maps service and domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, domainwf.ErrForeignPhase),
		errors.Is(err, domainwf.ErrInvalidDefinition):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrWorkflowInUse),
		errors.Is(err, service.ErrPhaseInUse),
		errors.Is(err, service.ErrActionInUse),
		errors.Is(err, domainwf.ErrConfigurationGap):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and answers with its mapped status.
// Internal errors are not echoed to the client.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "path", c.Request.URL.Path, "error", err)
		fail(c, code, "internal error")
		return
	}
	fail(c, code, err.Error())
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}

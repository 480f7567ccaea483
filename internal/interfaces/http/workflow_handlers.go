package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/case-workflow/internal/application/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DuplicateRequest is the body of POST /api/workflows/:id/duplicate
type DuplicateRequest struct {
	ClientID  int64 `json:"client_id" binding:"required"`
	ProductID int64 `json:"product_id" binding:"required"`
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	summaries, err := h.services.Workflows.ListWorkflows(c.Request.Context())
	if err != nil {
		h.writeError(c, "list_workflows", err)
		return
	}
	ok(c, http.StatusOK, summaries)
}

// SaveWorkflow handles POST /api/workflows; an id in the body updates that workflow
func (h *Handlers) SaveWorkflow(c *gin.Context) {
	var def service.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		fail(c, http.StatusBadRequest, "invalid workflow definition")
		return
	}

	ctx := c.Request.Context()
	id, err := h.services.Workflows.SaveWorkflow(ctx, def)
	if err != nil {
		h.writeError(c, "save_workflow", err)
		return
	}

	saved, err := h.services.Workflows.GetWorkflow(ctx, id)
	if err != nil {
		h.writeError(c, "get_workflow", err)
		return
	}

	code := http.StatusOK
	if def.ID == 0 {
		code = http.StatusCreated
	}
	ok(c, code, saved)
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	def, err := h.services.Workflows.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_workflow", err)
		return
	}
	ok(c, http.StatusOK, def)
}

// DeleteWorkflow handles DELETE /api/workflows/:id
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	if err := h.services.Workflows.DeleteWorkflow(c.Request.Context(), id); err != nil {
		h.writeError(c, "delete_workflow", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// DuplicateWorkflow handles POST /api/workflows/:id/duplicate
func (h *Handlers) DuplicateWorkflow(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req DuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "client_id and product_id are required")
		return
	}

	ctx := c.Request.Context()
	newID, err := h.services.Workflows.DuplicateWorkflow(ctx, id, req.ClientID, req.ProductID)
	if err != nil {
		h.writeError(c, "duplicate_workflow", err)
		return
	}

	def, err := h.services.Workflows.GetWorkflow(ctx, newID)
	if err != nil {
		h.writeError(c, "get_workflow", err)
		return
	}
	ok(c, http.StatusCreated, def)
}

// Board handles GET /api/workflows/:id/board
func (h *Handlers) Board(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	board, err := h.services.Actions.Board(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "board", err)
		return
	}
	ok(c, http.StatusOK, board)
}

// ExportCases handles GET /api/exports/cases.
// The workbook is buffered so failures still answer with JSON.
func (h *Handlers) ExportCases(c *gin.Context) {
	var q CaseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	var buf bytes.Buffer
	if err := h.services.Exports.ExportCases(c.Request.Context(), q.filter(), &buf); err != nil {
		h.writeError(c, "export_cases", err)
		return
	}

	fileName := fmt.Sprintf("casos_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

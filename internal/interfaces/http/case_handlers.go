package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/application/service"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
)

// CaseQuery holds the list filters of GET /api/cases and the export
type CaseQuery struct {
	Status      string `form:"status"`
	ClientID    int64  `form:"client_id"`
	ProductID   int64  `form:"product_id"`
	Responsible string `form:"responsible"`
	Search      string `form:"q"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

func (q CaseQuery) filter() port.CaseFilter {
	return port.CaseFilter{
		Status:            q.Status,
		ClientID:          q.ClientID,
		ProductID:         q.ProductID,
		ResponsibleUserID: q.Responsible,
		Search:            q.Search,
		Limit:             q.Limit,
		Offset:            q.Offset,
	}
}

// UpdateStatusRequest is the body of PATCH /api/cases/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// NoteRequest is the body of POST /api/cases/:id/notes
type NoteRequest struct {
	Description string `json:"description" binding:"required"`
}

// TransitionRequest is the body of POST /api/cases/:id/transition
type TransitionRequest struct {
	PhaseID int64 `json:"phase_id" binding:"required"`
}

// ExecuteRequest is the body of POST /api/actions/:id/execute
type ExecuteRequest struct {
	Response string `json:"response"`
	Comment  string `json:"comment"`
}

// ActionQuery holds the filters of GET /api/actions
type ActionQuery struct {
	Status   string `form:"status"`
	Assignee string `form:"assignee"`
	CaseID   int64  `form:"case_id"`
	Limit    int    `form:"limit"`
}

// CreateCase handles POST /api/cases
func (h *Handlers) CreateCase(c *gin.Context) {
	var req service.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResponsibleUserID == "" {
		req.ResponsibleUserID = actor(c)
	}

	result, err := h.services.Cases.CreateCase(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create_case", err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// ListCases handles GET /api/cases
func (h *Handlers) ListCases(c *gin.Context) {
	var q CaseQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	cases, err := h.services.Cases.ListCases(c.Request.Context(), q.filter())
	if err != nil {
		h.writeError(c, "list_cases", err)
		return
	}
	ok(c, http.StatusOK, cases)
}

// GetCase handles GET /api/cases/:id
func (h *Handlers) GetCase(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	view, err := h.services.Cases.GetCase(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_case", err)
		return
	}
	ok(c, http.StatusOK, view)
}

// UpdateCaseStatus handles PATCH /api/cases/:id/status
func (h *Handlers) UpdateCaseStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.services.Cases.UpdateStatus(c.Request.Context(), id, req.Status, actor(c))
	if err != nil {
		h.writeError(c, "update_status", err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// AddNote handles POST /api/cases/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "description is required")
		return
	}

	event, err := h.services.Cases.AddNote(c.Request.Context(), id, req.Description, actor(c))
	if err != nil {
		h.writeError(c, "add_note", err)
		return
	}
	ok(c, http.StatusCreated, event)
}

// Timeline handles GET /api/cases/:id/timeline
func (h *Handlers) Timeline(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	events, err := h.services.Cases.Timeline(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "timeline", err)
		return
	}
	ok(c, http.StatusOK, events)
}

// PhaseHistory handles GET /api/cases/:id/history
func (h *Handlers) PhaseHistory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	history, err := h.services.Cases.PhaseHistory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "phase_history", err)
		return
	}
	ok(c, http.StatusOK, history)
}

// ActionPanel handles GET /api/cases/:id/actions
func (h *Handlers) ActionPanel(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	panel, err := h.services.Engine.Panel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "action_panel", err)
		return
	}
	ok(c, http.StatusOK, panel)
}

// TransitionCase handles POST /api/cases/:id/transition
func (h *Handlers) TransitionCase(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "phase_id is required")
		return
	}

	ctx := c.Request.Context()
	if err := h.services.Engine.Transition(ctx, id, req.PhaseID); err != nil {
		h.writeError(c, "transition", err)
		return
	}
	h.logger.Info("Case moved", "case_id", id, "phase_id", req.PhaseID, "user", actor(c))

	panel, err := h.services.Engine.Panel(ctx, id)
	if err != nil {
		h.writeError(c, "action_panel", err)
		return
	}
	ok(c, http.StatusOK, panel)
}

// ListActions handles GET /api/actions
func (h *Handlers) ListActions(c *gin.Context) {
	var q ActionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	instances, err := h.services.Actions.ListActions(c.Request.Context(), port.ActionFilter{
		Status:     q.Status,
		AssigneeID: q.Assignee,
		CaseID:     q.CaseID,
		Limit:      q.Limit,
	})
	if err != nil {
		h.writeError(c, "list_actions", err)
		return
	}
	ok(c, http.StatusOK, instances)
}

// ExecuteAction handles POST /api/actions/:id/execute
func (h *Handlers) ExecuteAction(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ExecuteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	panel, err := h.services.Engine.ExecuteAction(c.Request.Context(), appwf.ExecuteActionRequest{
		InstanceID: id,
		Response:   req.Response,
		Comment:    req.Comment,
		ResolverID: actor(c),
	})
	if err != nil {
		h.writeError(c, "execute_action", err)
		return
	}
	ok(c, http.StatusOK, panel)
}

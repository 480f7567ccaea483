package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/case-workflow/internal/application/service"
	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// ModelQuery holds the filters of GET /api/analysis-models
type ModelQuery struct {
	ClientID  int64 `form:"client_id" binding:"required"`
	ProductID int64 `form:"product_id" binding:"required"`
}

func (h *Handlers) requireAnalyses(c *gin.Context) {
	if h.services.Analyses == nil {
		fail(c, http.StatusServiceUnavailable, "document analysis is disabled")
		c.Abort()
		return
	}
	c.Next()
}

// RequestAnalysis handles POST /api/analyses
func (h *Handlers) RequestAnalysis(c *gin.Context) {
	var req service.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RequestedBy = actor(c)

	result, err := h.services.Analyses.Request(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "request_analysis", err)
		return
	}
	ok(c, http.StatusAccepted, result)
}

// GetAnalysis handles GET /api/analyses/:id
func (h *Handlers) GetAnalysis(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	result, err := h.services.Analyses.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_analysis", err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ListAnalysisModels handles GET /api/analysis-models
func (h *Handlers) ListAnalysisModels(c *gin.Context) {
	var q ModelQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "client_id and product_id are required")
		return
	}

	models, err := h.services.Analyses.ListModels(c.Request.Context(), q.ClientID, q.ProductID)
	if err != nil {
		h.writeError(c, "list_models", err)
		return
	}
	ok(c, http.StatusOK, models)
}

// SaveAnalysisModel handles POST /api/analysis-models
func (h *Handlers) SaveAnalysisModel(c *gin.Context) {
	var model entity.AnalysisModel
	if err := c.ShouldBindJSON(&model); err != nil {
		fail(c, http.StatusBadRequest, "invalid analysis model")
		return
	}

	if err := h.services.Analyses.SaveModel(c.Request.Context(), &model); err != nil {
		h.writeError(c, "save_model", err)
		return
	}
	ok(c, http.StatusOK, model)
}

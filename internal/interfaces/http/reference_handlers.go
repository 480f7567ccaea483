package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/case-workflow/internal/application/service"
)

// ProductRequest is the body of POST /api/products
type ProductRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListClients handles GET /api/clients
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.services.Reference.ListClients(c.Request.Context())
	if err != nil {
		h.writeError(c, "list_clients", err)
		return
	}
	ok(c, http.StatusOK, clients)
}

// CreateClient handles POST /api/clients
func (h *Handlers) CreateClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.services.Reference.CreateClient(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create_client", err)
		return
	}
	ok(c, http.StatusCreated, client)
}

// ListProducts handles GET /api/products
func (h *Handlers) ListProducts(c *gin.Context) {
	products, err := h.services.Reference.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, "list_products", err)
		return
	}
	ok(c, http.StatusOK, products)
}

// CreateProduct handles POST /api/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "name is required")
		return
	}

	product, err := h.services.Reference.CreateProduct(c.Request.Context(), req.Name)
	if err != nil {
		h.writeError(c, "create_product", err)
		return
	}
	ok(c, http.StatusCreated, product)
}

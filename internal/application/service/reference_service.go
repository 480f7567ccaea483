package service

import (
	"context"
	"strings"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/pkg/utils"
)

// ReferenceService manages the clients and products cases are opened for
type ReferenceService interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (*entity.Client, error)
	ListClients(ctx context.Context) ([]*entity.Client, error)
	CreateProduct(ctx context.Context, name string) (*entity.Product, error)
	ListProducts(ctx context.Context) ([]*entity.Product, error)
}

// CreateClientRequest carries the fields of a new client
type CreateClientRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Document string `json:"document"`
}

type referenceServiceImpl struct {
	clients  port.ClientRepository
	products port.ProductRepository
	logger   Logger
}

// NewReferenceService creates a new ReferenceService
func NewReferenceService(clients port.ClientRepository, products port.ProductRepository, logger Logger) ReferenceService {
	return &referenceServiceImpl{
		clients:  clients,
		products: products,
		logger:   logger,
	}
}

func (s *referenceServiceImpl) CreateClient(ctx context.Context, req CreateClientRequest) (*entity.Client, error) {
	name := strings.TrimSpace(req.Name)
	kind := req.Kind
	if kind == "" {
		kind = entity.ClientKindCompany
	}

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if kind != entity.ClientKindPerson && kind != entity.ClientKindCompany {
		problems = append(problems, "kind must be PF or PJ")
	} else if err := utils.ValidateDocument(kind, req.Document); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return nil, validationErr(problems...)
	}

	client := &entity.Client{
		Name:     name,
		Kind:     kind,
		Document: utils.NormalizeDocument(req.Document),
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, err
	}

	s.logger.Info("Client created", "client_id", client.ID, "kind", kind)
	return client, nil
}

func (s *referenceServiceImpl) ListClients(ctx context.Context) ([]*entity.Client, error) {
	return s.clients.List(ctx)
}

func (s *referenceServiceImpl) CreateProduct(ctx context.Context, name string) (*entity.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("name is required")
	}

	existing, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, name) {
			return nil, validationErr("product " + name + " already exists")
		}
	}

	product := &entity.Product{Name: name}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", "product_id", product.ID)
	return product, nil
}

func (s *referenceServiceImpl) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	return s.products.List(ctx)
}

package service

import (
	"context"
	"testing"

	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReferenceService(t *testing.T) ReferenceService {
	t.Helper()
	repos := testutil.NewRepos(testutil.NewDB(t))
	return NewReferenceService(repos.Clients, repos.Products, &mockLogger{})
}

func TestReferenceService_CreateClient(t *testing.T) {
	ctx := context.Background()
	svc := newReferenceService(t)

	client, err := svc.CreateClient(ctx, CreateClientRequest{Name: " Maria Souza ", Kind: entity.ClientKindPerson, Document: "123.456.789-09"})
	require.NoError(t, err)
	assert.NotZero(t, client.ID)
	assert.Equal(t, "Maria Souza", client.Name)
	assert.Equal(t, "12345678909", client.Document)

	company, err := svc.CreateClient(ctx, CreateClientRequest{Name: "Acme Seguros"})
	require.NoError(t, err)
	assert.Equal(t, entity.ClientKindCompany, company.Kind)

	clients, err := svc.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestReferenceService_CreateClientValidation(t *testing.T) {
	ctx := context.Background()
	svc := newReferenceService(t)

	tests := []struct {
		name string
		req  CreateClientRequest
	}{
		{name: "missing name", req: CreateClientRequest{Kind: entity.ClientKindCompany}},
		{name: "bad kind", req: CreateClientRequest{Name: "X", Kind: "LTDA"}},
		{name: "cnpj too short", req: CreateClientRequest{Name: "X", Kind: entity.ClientKindCompany, Document: "123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateClient(ctx, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestReferenceService_CreateProduct(t *testing.T) {
	ctx := context.Background()
	svc := newReferenceService(t)

	product, err := svc.CreateProduct(ctx, "Trabalhista")
	require.NoError(t, err)
	assert.NotZero(t, product.ID)

	_, err = svc.CreateProduct(ctx, "trabalhista")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Trabalhista", products[0].Name)
}

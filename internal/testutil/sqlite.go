// Package testutil provides a migrated sqlite database and seed data for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/case-workflow/internal/migrations"
	"github.com/garyjia/case-workflow/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Repos groups the sqlite repositories used by tests
type Repos struct {
	Cases     port.CaseRepository
	Clients   port.ClientRepository
	Products  port.ProductRepository
	Workflows port.WorkflowRepository
	History   port.PhaseHistoryRepository
	Instances port.ActionInstanceRepository
	Events    port.EventRepository
	Folders   port.FolderTemplateRepository
	Analyses  port.AnalysisRepository
}

// NewDB opens a migrated sqlite database in a temporary directory
func NewDB(t *testing.T) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	return sqlite.NewDB(db.DB, logger)
}

// NewRepos builds every repository on db
func NewRepos(db *sqlite.DB) Repos {
	logger := zap.NewNop()
	return Repos{
		Cases:     repository.NewCaseRepository(db.DB, logger),
		Clients:   repository.NewClientRepository(db.DB, logger),
		Products:  repository.NewProductRepository(db.DB, logger),
		Workflows: repository.NewWorkflowRepository(db.DB, logger),
		History:   repository.NewPhaseHistoryRepository(db.DB, logger),
		Instances: repository.NewActionInstanceRepository(db.DB, logger),
		Events:    repository.NewEventRepository(db.DB, logger),
		Folders:   repository.NewFolderTemplateRepository(db.DB, logger),
		Analyses:  repository.NewAnalysisRepository(db.DB, logger),
	}
}

// Intake is the "Intake" workflow: phase A holds "Review" (approved -> B,
// rejected -> A); phase B holds two follow-up actions.
type Intake struct {
	ClientID   int64
	ProductID  int64
	WorkflowID int64
	PhaseA     int64
	PhaseB     int64
	Review     int64
	File       int64
	Wait       int64
}

// SeedIntake stores the Intake workflow for a new client/product pair
func SeedIntake(t *testing.T, repos Repos) Intake {
	t.Helper()
	ctx := context.Background()

	client := &entity.Client{Name: "Acme Seguros", Kind: entity.ClientKindCompany}
	require.NoError(t, repos.Clients.Create(ctx, client))
	product := &entity.Product{Name: "Intake " + t.Name()}
	require.NoError(t, repos.Products.Create(ctx, product))

	wf := &entity.Workflow{Name: "Intake", ClientID: client.ID, ProductID: product.ID}
	require.NoError(t, repos.Workflows.Create(ctx, wf))

	phaseA := &entity.Phase{WorkflowID: wf.ID, Name: "A", Order: 1}
	phaseB := &entity.Phase{WorkflowID: wf.ID, Name: "B", Order: 2, IsFinal: true}
	require.NoError(t, repos.Workflows.SavePhase(ctx, phaseA))
	require.NoError(t, repos.Workflows.SavePhase(ctx, phaseB))

	review := &entity.Action{PhaseID: phaseA.ID, Title: "Review", Type: entity.ActionTypeChoice, Options: []string{"approved", "rejected"}}
	file := &entity.Action{PhaseID: phaseB.ID, Title: "Protocolar", Type: entity.ActionTypeSimple, DeadlineDays: 5, DefaultAssigneeID: "clerk"}
	wait := &entity.Action{PhaseID: phaseB.ID, Title: "Aguardar retorno", Type: entity.ActionTypeWait, WaitDays: 10}
	for _, a := range []*entity.Action{review, file, wait} {
		require.NoError(t, repos.Workflows.SaveAction(ctx, a))
	}

	require.NoError(t, repos.Workflows.ReplaceTransitions(ctx, wf.ID, []*entity.Transition{
		{SourcePhaseID: phaseA.ID, ActionID: review.ID, Condition: "approved", DestinationPhaseID: phaseB.ID},
		{SourcePhaseID: phaseA.ID, ActionID: review.ID, Condition: "rejected", DestinationPhaseID: phaseA.ID},
	}))

	return Intake{
		ClientID:   client.ID,
		ProductID:  product.ID,
		WorkflowID: wf.ID,
		PhaseA:     phaseA.ID,
		PhaseB:     phaseB.ID,
		Review:     review.ID,
		File:       file.ID,
		Wait:       wait.ID,
	}
}

// NewCase stores an ATIVO case for the pair without entering any phase
func NewCase(t *testing.T, repos Repos, clientID, productID int64, responsible string) *entity.Case {
	t.Helper()

	c := &entity.Case{
		ClientID:          clientID,
		ProductID:         productID,
		Title:             "Sinistro " + t.Name(),
		Status:            entity.CaseStatusActive,
		ResponsibleUserID: responsible,
	}
	require.NoError(t, repos.Cases.Create(context.Background(), c))
	return c
}

package service

import (
	"context"
	"testing"

	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
	"github.com/garyjia/case-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configFixture struct {
	service   WorkflowConfigService
	repos     testutil.Repos
	engine    *mockEngine
	clientID  int64
	productID int64
}

func newConfigFixture(t *testing.T) configFixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	engine := &mockEngine{}

	client := &entity.Client{Name: "Banco Sul", Kind: entity.ClientKindCompany}
	require.NoError(t, repos.Clients.Create(ctx, client))
	product := &entity.Product{Name: "Trabalhista"}
	require.NoError(t, repos.Products.Create(ctx, product))

	return configFixture{
		service:   NewWorkflowConfigService(repos.Workflows, repos.Cases, repos.Folders, db, engine, &mockLogger{}),
		repos:     repos,
		engine:    engine,
		clientID:  client.ID,
		productID: product.ID,
	}
}

func index(i int) *int { return &i }

func (f configFixture) definition() WorkflowDefinition {
	return WorkflowDefinition{
		Name:      "Trabalhista padrão",
		ClientID:  f.clientID,
		ProductID: f.productID,
		Folders:   []string{"Petições", "Provas"},
		Phases: []PhaseDefinition{
			{
				Name: "Triagem",
				Actions: []ActionDefinition{
					{
						Title:          "Analisar viabilidade",
						Type:           entity.ActionTypeDecision,
						DeadlineDays:   3,
						DestinationYes: index(1),
						DestinationNo:  index(2),
					},
				},
			},
			{
				Name: "Instrução",
				Actions: []ActionDefinition{
					{
						Title:        "Resultado da audiência",
						Type:         entity.ActionTypeChoice,
						Options:      []string{"acordo", "sentença"},
						Destinations: map[string]int{"acordo": 2, "sentença": 2},
					},
					{Title: "Aguardar perícia", Type: entity.ActionTypeWait, WaitDays: 30},
				},
			},
			{
				Name: "Encerramento",
				Actions: []ActionDefinition{
					{Title: "Arquivar", Type: entity.ActionTypeSimple, SetCaseStatus: entity.CaseStatusClosed},
				},
			},
		},
	}
}

func TestWorkflowConfigService_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	id, err := f.service.SaveWorkflow(ctx, f.definition())
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, f.engine.invalidated)

	def, err := f.service.GetWorkflow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Trabalhista padrão", def.Name)
	assert.Equal(t, []string{"Petições", "Provas"}, def.Folders)
	require.Len(t, def.Phases, 3)

	triage := def.Phases[0].Actions[0]
	require.NotNil(t, triage.DestinationYes)
	require.NotNil(t, triage.DestinationNo)
	assert.Equal(t, 1, *triage.DestinationYes)
	assert.Equal(t, 2, *triage.DestinationNo)
	assert.Equal(t, 3, triage.DeadlineDays)

	hearing := def.Phases[1].Actions[0]
	assert.Equal(t, map[string]int{"acordo": 2, "sentença": 2}, hearing.Destinations)
	assert.Nil(t, def.Phases[1].Actions[1].DefaultDestination)

	phases, err := f.repos.Workflows.ListPhases(ctx, id)
	require.NoError(t, err)
	for i, p := range phases {
		assert.Equal(t, i+1, p.Order)
		assert.Equal(t, i == len(phases)-1, p.IsFinal, p.Name)
	}

	// the stored configuration builds into a valid graph
	graph, err := buildStoredGraph(ctx, f, id)
	require.NoError(t, err)
	next, ok := graph.Next(triage.ID, entity.ConditionNo)
	require.True(t, ok)
	assert.Equal(t, def.Phases[2].ID, next)
}

func buildStoredGraph(ctx context.Context, f configFixture, id int64) (*domainwf.Graph, error) {
	phases, err := f.repos.Workflows.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	actions, err := f.repos.Workflows.ListActionsByWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	transitions, err := f.repos.Workflows.ListTransitions(ctx, id)
	if err != nil {
		return nil, err
	}

	b := domainwf.NewBuilder(id)
	for _, p := range phases {
		b.Phase(p.ID, p.Order)
	}
	configs := make(map[int64]domainwf.ActionConfiguration)
	for _, a := range actions {
		configs[a.ID] = b.Action(a.ID, a.PhaseID, a.Type, a.Options...)
	}
	for _, t := range transitions {
		configs[t.ActionID].Permit(t.Condition, t.DestinationPhaseID)
	}
	return b.Build()
}

func TestWorkflowConfigService_RejectsInvalidDefinitions(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	tests := []struct {
		name    string
		mutate  func(def *WorkflowDefinition)
		wantErr error
	}{
		{
			name:    "missing name",
			mutate:  func(def *WorkflowDefinition) { def.Name = " " },
			wantErr: ErrValidation,
		},
		{
			name:    "no phases",
			mutate:  func(def *WorkflowDefinition) { def.Phases = nil },
			wantErr: ErrValidation,
		},
		{
			name: "destination outside the workflow",
			mutate: func(def *WorkflowDefinition) {
				def.Phases[0].Actions[0].DestinationYes = index(7)
			},
			wantErr: domainwf.ErrForeignPhase,
		},
		{
			name: "unregistered choice",
			mutate: func(def *WorkflowDefinition) {
				def.Phases[1].Actions[0].Destinations["recurso"] = 0
			},
			wantErr: domainwf.ErrUnregisteredCondition,
		},
		{
			name: "unknown action type",
			mutate: func(def *WorkflowDefinition) {
				def.Phases[2].Actions[0].Type = "TELEFONAR"
			},
			wantErr: domainwf.ErrInvalidActionType,
		},
		{
			name: "invalid status change",
			mutate: func(def *WorkflowDefinition) {
				def.Phases[2].Actions[0].SetCaseStatus = "ARQUIVADO"
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := f.definition()
			tt.mutate(&def)

			_, err := f.service.SaveWorkflow(ctx, def)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	workflows, err := f.service.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows, "nothing is written for rejected definitions")
}

func TestWorkflowConfigService_OnePerPair(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	_, err := f.service.SaveWorkflow(ctx, f.definition())
	require.NoError(t, err)

	_, err = f.service.SaveWorkflow(ctx, f.definition())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWorkflowConfigService_UpdateInPlace(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	id, err := f.service.SaveWorkflow(ctx, f.definition())
	require.NoError(t, err)
	def, err := f.service.GetWorkflow(ctx, id)
	require.NoError(t, err)

	c := testutil.NewCase(t, f.repos, f.clientID, f.productID, "")
	require.NoError(t, f.repos.Cases.UpdatePhase(ctx, c.ID, &def.Phases[1].ID))

	t.Run("removing a phase with cases is refused", func(t *testing.T) {
		edited := *def
		edited.Phases = []PhaseDefinition{def.Phases[0], def.Phases[2]}
		edited.Phases[0].Actions = []ActionDefinition{{ID: def.Phases[0].Actions[0].ID, Title: "Analisar", Type: entity.ActionTypeSimple}}

		_, err := f.service.SaveWorkflow(ctx, edited)
		assert.ErrorIs(t, err, ErrPhaseInUse)

		phases, err := f.repos.Workflows.ListPhases(ctx, id)
		require.NoError(t, err)
		assert.Len(t, phases, 3)
	})

	t.Run("reorder and rename keeps ids", func(t *testing.T) {
		edited := *def
		edited.Name = "Trabalhista revisado"
		edited.Phases = []PhaseDefinition{def.Phases[1], def.Phases[0], def.Phases[2]}
		edited.Phases[1].Actions = []ActionDefinition{{
			ID:                 def.Phases[0].Actions[0].ID,
			Title:              "Analisar",
			Type:               entity.ActionTypeSimple,
			DefaultDestination: index(0),
		}}
		// the choice now points at the renumbered closing phase
		edited.Phases[0].Actions = []ActionDefinition{def.Phases[1].Actions[0]}
		edited.Phases[0].Actions[0].Destinations = map[string]int{"acordo": 2}

		_, err := f.service.SaveWorkflow(ctx, edited)
		require.NoError(t, err)

		got, err := f.service.GetWorkflow(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Trabalhista revisado", got.Name)
		require.Len(t, got.Phases, 3)
		assert.Equal(t, def.Phases[1].ID, got.Phases[0].ID)
		assert.Equal(t, def.Phases[0].ID, got.Phases[1].ID)

		require.Len(t, got.Phases[0].Actions, 1, "removed wait action is gone")
		assert.Equal(t, map[string]int{"acordo": 2}, got.Phases[0].Actions[0].Destinations)
		require.NotNil(t, got.Phases[1].Actions[0].DefaultDestination)
		assert.Equal(t, 0, *got.Phases[1].Actions[0].DefaultDestination)

		stored, err := f.repos.Cases.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, def.Phases[1].ID, *stored.CurrentPhaseID)
	})

	assert.Equal(t, []int64{id, id}, f.engine.invalidated)
}

func TestWorkflowConfigService_DeleteWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	id, err := f.service.SaveWorkflow(ctx, f.definition())
	require.NoError(t, err)
	def, err := f.service.GetWorkflow(ctx, id)
	require.NoError(t, err)

	c := testutil.NewCase(t, f.repos, f.clientID, f.productID, "")
	require.NoError(t, f.repos.Cases.UpdatePhase(ctx, c.ID, &def.Phases[0].ID))

	assert.ErrorIs(t, f.service.DeleteWorkflow(ctx, id), ErrWorkflowInUse)

	require.NoError(t, f.repos.Cases.UpdatePhase(ctx, c.ID, nil))
	require.NoError(t, f.service.DeleteWorkflow(ctx, id))

	_, err = f.service.GetWorkflow(ctx, id)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
	assert.ErrorIs(t, f.service.DeleteWorkflow(ctx, id), domainwf.ErrNotFound)
}

func TestWorkflowConfigService_KeepsCaseRecords(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)
	engine := appwf.NewEngine(repos.Cases, repos.Workflows, repos.History, repos.Instances, repos.Events, db)
	svc := NewWorkflowConfigService(repos.Workflows, repos.Cases, repos.Folders, db, engine, &mockLogger{})

	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "ana")
	_, err := engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	panel, err := engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 1)
	_, err = engine.ExecuteAction(ctx, appwf.ExecuteActionRequest{InstanceID: panel.Pending[0].ID, Response: "approved"})
	require.NoError(t, err)

	def, err := svc.GetWorkflow(ctx, intake.WorkflowID)
	require.NoError(t, err)
	require.Len(t, def.Phases, 2)

	assertRecordsIntact := func(t *testing.T) {
		t.Helper()
		history, err := repos.History.ListByCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
		completed, err := repos.Instances.ListByCase(ctx, c.ID, entity.InstanceStatusCompleted)
		require.NoError(t, err)
		assert.Len(t, completed, 1)
	}

	t.Run("phase the case passed through", func(t *testing.T) {
		edited := *def
		edited.Phases = []PhaseDefinition{def.Phases[1]}

		_, err := svc.SaveWorkflow(ctx, edited)
		assert.ErrorIs(t, err, ErrPhaseInUse)
		assertRecordsIntact(t)
	})

	t.Run("action with a resolved instance", func(t *testing.T) {
		edited := *def
		edited.Phases = []PhaseDefinition{{ID: def.Phases[0].ID, Name: "A"}, def.Phases[1]}

		_, err := svc.SaveWorkflow(ctx, edited)
		assert.ErrorIs(t, err, ErrActionInUse)
		assertRecordsIntact(t)

		review, err := repos.Workflows.GetAction(ctx, intake.Review)
		require.NoError(t, err)
		assert.NotNil(t, review)
	})

	t.Run("workflow with history but no current cases", func(t *testing.T) {
		require.NoError(t, repos.Cases.UpdatePhase(ctx, c.ID, nil))

		assert.ErrorIs(t, svc.DeleteWorkflow(ctx, intake.WorkflowID), ErrWorkflowInUse)
		assertRecordsIntact(t)
	})
}

func TestWorkflowConfigService_DuplicateWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t)

	id, err := f.service.SaveWorkflow(ctx, f.definition())
	require.NoError(t, err)

	other := &entity.Product{Name: "Cível"}
	require.NoError(t, f.repos.Products.Create(ctx, other))

	copyID, err := f.service.DuplicateWorkflow(ctx, id, f.clientID, other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, id, copyID)

	original, err := f.service.GetWorkflow(ctx, id)
	require.NoError(t, err)
	copied, err := f.service.GetWorkflow(ctx, copyID)
	require.NoError(t, err)

	assert.Equal(t, "Trabalhista padrão (Cópia)", copied.Name)
	assert.Equal(t, other.ID, copied.ProductID)
	assert.Equal(t, original.Folders, copied.Folders)
	require.Len(t, copied.Phases, len(original.Phases))
	for i := range original.Phases {
		assert.NotEqual(t, original.Phases[i].ID, copied.Phases[i].ID)
		assert.Equal(t, original.Phases[i].Name, copied.Phases[i].Name)
		require.Len(t, copied.Phases[i].Actions, len(original.Phases[i].Actions))
	}
	assert.Equal(t, original.Phases[1].Actions[0].Destinations, copied.Phases[1].Actions[0].Destinations)

	summaries, err := f.service.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, 3, s.PhaseCount)
		assert.Zero(t, s.CaseCount)
	}
}

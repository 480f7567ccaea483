package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
	"github.com/garyjia/case-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

type engineFixture struct {
	engine WorkflowEngine
	repos  testutil.Repos
	intake testutil.Intake
}

func newEngineFixture(t *testing.T, opts ...EngineOption) engineFixture {
	t.Helper()

	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)

	opts = append([]EngineOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	engine := NewEngine(repos.Cases, repos.Workflows, repos.History, repos.Instances, repos.Events, db, opts...)

	return engineFixture{engine: engine, repos: repos, intake: intake}
}

// failingEvents fails appends of one event type
type failingEvents struct {
	port.EventRepository
	failType string
}

func (f *failingEvents) Append(ctx context.Context, event *entity.InternalEvent) error {
	if event.Type == f.failType {
		return errors.New("disk full")
	}
	return f.EventRepository.Append(ctx, event)
}

func pendingTitles(panel *ActionPanel) []string {
	titles := make([]string, 0, len(panel.Pending))
	for _, inst := range panel.Pending {
		titles = append(titles, inst.ActionTitle)
	}
	return titles
}

func TestEngine_IntakeScenario(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "lawyer-1")

	phase, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, phase)
	assert.Equal(t, f.intake.PhaseA, phase.ID)

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 1)
	review := panel.Pending[0]
	assert.Equal(t, "Review", review.ActionTitle)
	assert.Equal(t, "lawyer-1", review.AssigneeID)
	assert.Nil(t, review.DueDate)

	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{
		InstanceID: review.ID,
		Response:   "approved",
		Comment:    "documentos ok",
		ResolverID: "lawyer-1",
	})
	require.NoError(t, err)

	require.NotNil(t, panel.CurrentPhaseID)
	assert.Equal(t, f.intake.PhaseB, *panel.CurrentPhaseID)
	assert.ElementsMatch(t, []string{"Protocolar", "Aguardar retorno"}, pendingTitles(panel))
	require.Len(t, panel.Completed, 1)
	assert.Equal(t, review.ID, panel.Completed[0].ID)
	assert.Equal(t, "approved", panel.Completed[0].Response)
	assert.Equal(t, "lawyer-1", panel.Completed[0].CompletedBy)

	history, err := f.repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, f.intake.PhaseA, history[0].PhaseID)
	assert.NotNil(t, history[0].ExitedAt)
	assert.Equal(t, f.intake.PhaseB, history[1].PhaseID)
	assert.Nil(t, history[1].ExitedAt)

	events, err := f.repos.Events.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	var descriptions []string
	for _, e := range events {
		descriptions = append(descriptions, e.Description)
	}
	assert.Contains(t, descriptions, "Caso transitou da fase 'Nenhuma' para 'A'.")
	assert.Contains(t, descriptions, "Caso transitou da fase 'A' para 'B'.")
	assert.Contains(t, descriptions, "Ação 'Review' concluída. Comentário: documentos ok Resposta: approved")
}

func TestEngine_UnmatchedResponseKeepsPhase(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "lawyer-1")

	_, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 1)

	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{
		InstanceID: panel.Pending[0].ID,
		Response:   "maybe",
		ResolverID: "lawyer-1",
	})
	require.NoError(t, err)

	require.NotNil(t, panel.CurrentPhaseID)
	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
	assert.Empty(t, panel.Pending)
	require.Len(t, panel.Completed, 1)
	assert.Equal(t, entity.InstanceStatusCompleted, panel.Completed[0].Status)

	history, err := f.repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Nil(t, history[0].ExitedAt)
}

func TestEngine_ResponseMatchingIsExact(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	_, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)

	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: panel.Pending[0].ID, Response: "Approved"})
	require.NoError(t, err)
	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
}

func TestEngine_ExecuteTwiceReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	_, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	id := panel.Pending[0].ID

	_, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: id, Response: "maybe"})
	require.NoError(t, err)

	_, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: id, Response: "approved"})
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	current, err := f.repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.intake.PhaseA, *current.CurrentPhaseID)
}

func TestEngine_ExecuteUnknownInstance(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.ExecuteAction(context.Background(), ExecuteActionRequest{InstanceID: 9999, Response: "approved"})
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestEngine_RejectedReentersPhase(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	_, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	first := panel.Pending[0].ID

	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: first, Response: "rejected"})
	require.NoError(t, err)

	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
	require.Len(t, panel.Pending, 1)
	assert.NotEqual(t, first, panel.Pending[0].ID)
	assert.Equal(t, "Review", panel.Pending[0].ActionTitle)

	history, err := f.repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	open, err := f.repos.History.CountOpen(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestEngine_TransitionCreatesInstancesPerAction(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "lawyer-2")

	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseA))
	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseB))

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 2)

	byAction := make(map[int64]*entity.ActionInstance)
	for _, inst := range panel.Pending {
		byAction[inst.ActionID] = inst
	}

	file := byAction[f.intake.File]
	require.NotNil(t, file)
	assert.Equal(t, "clerk", file.AssigneeID)
	require.NotNil(t, file.DueDate)
	assert.True(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC).Equal(*file.DueDate), "due date = %v", file.DueDate)

	wait := byAction[f.intake.Wait]
	require.NotNil(t, wait)
	assert.Equal(t, "lawyer-2", wait.AssigneeID)
	assert.Nil(t, wait.DueDate)

	// Review instance from phase A is gone, not completed
	assert.Empty(t, panel.Completed)
}

func TestEngine_TransitionRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()

	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)
	events := &failingEvents{EventRepository: repos.Events, failType: entity.EventPhaseChanged}
	engine := NewEngine(repos.Cases, repos.Workflows, repos.History, repos.Instances, events, db)

	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	err := engine.Transition(ctx, c.ID, intake.PhaseA)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainwf.ErrPersistence)

	current, err := repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, current.CurrentPhaseID)

	history, err := repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	pending, err := repos.Instances.ListByCase(ctx, c.ID, entity.InstanceStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_ExecuteActionRollsBackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()

	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)
	events := &failingEvents{EventRepository: repos.Events, failType: entity.EventActionCompleted}
	engine := NewEngine(repos.Cases, repos.Workflows, repos.History, repos.Instances, events, db)

	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")
	require.NoError(t, engine.Transition(ctx, c.ID, intake.PhaseA))
	panel, err := engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	id := panel.Pending[0].ID

	_, err = engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: id, Response: "approved"})
	assert.ErrorIs(t, err, domainwf.ErrPersistence)

	panel, err = engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, intake.PhaseA, *panel.CurrentPhaseID)
	require.Len(t, panel.Pending, 1)
	assert.Equal(t, id, panel.Pending[0].ID)
	assert.Empty(t, panel.Completed)
}

func TestEngine_TransitionRejectsForeignPhase(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	other := &entity.Product{Name: "Outro produto"}
	require.NoError(t, f.repos.Products.Create(ctx, other))
	wf := &entity.Workflow{Name: "Outro", ClientID: f.intake.ClientID, ProductID: other.ID}
	require.NoError(t, f.repos.Workflows.Create(ctx, wf))
	foreign := &entity.Phase{WorkflowID: wf.ID, Name: "X", Order: 1}
	require.NoError(t, f.repos.Workflows.SavePhase(ctx, foreign))

	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	err := f.engine.Transition(ctx, c.ID, foreign.ID)
	assert.ErrorIs(t, err, domainwf.ErrForeignPhase)

	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseA))
	err = f.engine.Transition(ctx, c.ID, foreign.ID)
	assert.ErrorIs(t, err, domainwf.ErrForeignPhase)
}

func TestEngine_TransitionNotFound(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	assert.ErrorIs(t, f.engine.Transition(ctx, 4242, f.intake.PhaseA), domainwf.ErrNotFound)
	assert.ErrorIs(t, f.engine.Transition(ctx, c.ID, 4242), domainwf.ErrNotFound)
}

func TestEngine_EnterInitialPhaseConfigurationGaps(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	unconfigured := &entity.Product{Name: "Sem workflow"}
	require.NoError(t, f.repos.Products.Create(ctx, unconfigured))
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, unconfigured.ID, "")

	phase, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, phase)

	empty := &entity.Product{Name: "Workflow vazio"}
	require.NoError(t, f.repos.Products.Create(ctx, empty))
	require.NoError(t, f.repos.Workflows.Create(ctx, &entity.Workflow{Name: "Vazio", ClientID: f.intake.ClientID, ProductID: empty.ID}))
	c2 := testutil.NewCase(t, f.repos, f.intake.ClientID, empty.ID, "")

	phase, err = f.engine.EnterInitialPhase(ctx, c2.ID)
	require.NoError(t, err)
	assert.Nil(t, phase)

	stored, err := f.repos.Cases.GetByID(ctx, c2.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CurrentPhaseID)
}

func TestEngine_ActionSetsCaseStatus(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	closing := &entity.Action{PhaseID: f.intake.PhaseB, Title: "Encerrar", Type: entity.ActionTypeSimple, SetCaseStatus: entity.CaseStatusClosed}
	require.NoError(t, f.repos.Workflows.SaveAction(ctx, closing))

	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")
	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseA))
	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseB))

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	var closingID int64
	for _, inst := range panel.Pending {
		if inst.ActionID == closing.ID {
			closingID = inst.ID
		}
	}
	require.NotZero(t, closingID)

	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: closingID, ResolverID: "boss"})
	require.NoError(t, err)
	assert.Equal(t, entity.CaseStatusClosed, panel.CaseStatus)

	stored, err := f.repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CaseStatusClosed, stored.Status)
	assert.NotNil(t, stored.ClosedAt)
	assert.Equal(t, f.intake.PhaseB, *stored.CurrentPhaseID)
}

func TestEngine_ConcurrentExecutionsKeepSingleOpenHistory(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	// Resolving either action of phase B sends the case back to A
	require.NoError(t, f.repos.Workflows.ReplaceTransitions(ctx, f.intake.WorkflowID, []*entity.Transition{
		{SourcePhaseID: f.intake.PhaseA, ActionID: f.intake.Review, Condition: "approved", DestinationPhaseID: f.intake.PhaseB},
		{SourcePhaseID: f.intake.PhaseB, ActionID: f.intake.File, Condition: "", DestinationPhaseID: f.intake.PhaseA},
		{SourcePhaseID: f.intake.PhaseB, ActionID: f.intake.Wait, Condition: "", DestinationPhaseID: f.intake.PhaseA},
	}))
	f.engine.Invalidate(f.intake.WorkflowID)

	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")
	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseB))

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 2)

	var wg sync.WaitGroup
	errs := make([]error, len(panel.Pending))
	for i, inst := range panel.Pending {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: id})
		}(i, inst.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainwf.ErrNotFound)
	}
	assert.Equal(t, 1, succeeded)

	open, err := f.repos.History.CountOpen(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	panel, err = f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
	assert.Equal(t, []string{"Review"}, pendingTitles(panel))
}

func TestEngine_GraphCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")
	require.NoError(t, f.engine.Transition(ctx, c.ID, f.intake.PhaseA))

	// Warm the cache, then drop the approved rule behind the engine's back
	_, err := f.engine.EnterInitialPhase(ctx, testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "").ID)
	require.NoError(t, err)
	require.NoError(t, f.repos.Workflows.ReplaceTransitions(ctx, f.intake.WorkflowID, nil))
	f.engine.Invalidate(f.intake.WorkflowID)

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: panel.Pending[0].ID, Response: "approved"})
	require.NoError(t, err)
	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
}

func TestEngine_GraphCacheFollowsSavedWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, WithCacheExpiry(time.Hour))
	c := testutil.NewCase(t, f.repos, f.intake.ClientID, f.intake.ProductID, "")

	// Warm the cache
	_, err := f.engine.EnterInitialPhase(ctx, c.ID)
	require.NoError(t, err)

	// Another process drops the approved rule and saves the workflow without telling this engine
	require.NoError(t, f.repos.Workflows.ReplaceTransitions(ctx, f.intake.WorkflowID, nil))
	wf, err := f.repos.Workflows.GetByID(ctx, f.intake.WorkflowID)
	require.NoError(t, err)
	require.NoError(t, f.repos.Workflows.Update(ctx, wf))

	panel, err := f.engine.Panel(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, panel.Pending, 1)
	panel, err = f.engine.ExecuteAction(ctx, ExecuteActionRequest{InstanceID: panel.Pending[0].ID, Response: "approved"})
	require.NoError(t, err)
	assert.Equal(t, f.intake.PhaseA, *panel.CurrentPhaseID)
}

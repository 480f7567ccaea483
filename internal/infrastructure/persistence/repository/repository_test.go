package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseRepository_ViewAndFilters(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)

	first := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "ana")
	second := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "bruno")
	require.NoError(t, repos.Cases.UpdatePhase(ctx, first.ID, &intake.PhaseA))

	view, err := repos.Cases.GetView(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Acme Seguros", view.ClientName)
	assert.Equal(t, "A", view.PhaseName)

	view, err = repos.Cases.GetView(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, view.PhaseName)
	assert.Nil(t, view.CurrentPhaseID)

	missing, err := repos.Cases.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	tests := []struct {
		name   string
		filter port.CaseFilter
		want   []int64
	}{
		{name: "no filter newest first", filter: port.CaseFilter{}, want: []int64{second.ID, first.ID}},
		{name: "by responsible", filter: port.CaseFilter{ResponsibleUserID: "ana"}, want: []int64{first.ID}},
		{name: "search client name", filter: port.CaseFilter{Search: "Acme"}, want: []int64{second.ID, first.ID}},
		{name: "search without match", filter: port.CaseFilter{Search: "nada"}, want: nil},
		{name: "limit", filter: port.CaseFilter{Limit: 1}, want: []int64{second.ID}},
		{name: "closed only", filter: port.CaseFilter{Status: entity.CaseStatusClosed}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := repos.Cases.List(ctx, tt.filter)
			require.NoError(t, err)
			var ids []int64
			for _, v := range views {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	count, err := repos.Cases.CountByWorkflow(ctx, intake.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	active, err := repos.Cases.ListActiveByWorkflow(ctx, intake.WorkflowID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
}

func TestCaseRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	closedAt := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Cases.UpdateStatus(ctx, c.ID, entity.CaseStatusClosed, &closedAt))

	stored, err := repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.CaseStatusClosed, stored.Status)
	require.NotNil(t, stored.ClosedAt)
	assert.True(t, closedAt.Equal(*stored.ClosedAt))

	require.NoError(t, repos.Cases.UpdateStatus(ctx, c.ID, entity.CaseStatusActive, nil))
	stored, err = repos.Cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ClosedAt)

	assert.Error(t, repos.Cases.UpdateStatus(ctx, 999, entity.CaseStatusActive, nil))
	assert.Error(t, repos.Cases.UpdateStatus(ctx, c.ID, "ARQUIVADO", nil))
}

func TestPhaseHistoryRepository_SingleOpenRecord(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	now := time.Now()
	require.NoError(t, repos.History.Create(ctx, &entity.PhaseHistory{CaseID: c.ID, PhaseID: intake.PhaseA, EnteredAt: now}))

	// a second open record is rejected by the partial unique index
	err := repos.History.Create(ctx, &entity.PhaseHistory{CaseID: c.ID, PhaseID: intake.PhaseB, EnteredAt: now})
	assert.Error(t, err)

	closed, err := repos.History.CloseOpen(ctx, c.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	closed, err = repos.History.CloseOpen(ctx, c.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, closed)

	require.NoError(t, repos.History.Create(ctx, &entity.PhaseHistory{CaseID: c.ID, PhaseID: intake.PhaseB, EnteredAt: now.Add(time.Minute)}))

	open, err := repos.History.CountOpen(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	history, err := repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0].PhaseName)
	assert.Equal(t, "B", history[1].PhaseName)
}

func TestActionInstanceRepository_CompleteAndDelete(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	due := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	withDue := &entity.ActionInstance{CaseID: c.ID, ActionID: intake.File, Status: entity.InstanceStatusPending, DueDate: &due}
	noDue := &entity.ActionInstance{CaseID: c.ID, ActionID: intake.Wait, Status: entity.InstanceStatusPending}
	done := &entity.ActionInstance{CaseID: c.ID, ActionID: intake.Review, Status: entity.InstanceStatusPending}
	for _, inst := range []*entity.ActionInstance{noDue, withDue, done} {
		require.NoError(t, repos.Instances.Create(ctx, inst))
	}

	completedAt := time.Now()
	done.Response, done.CompletedBy, done.CompletedAt = "approved", "ana", &completedAt
	require.NoError(t, repos.Instances.Complete(ctx, done))
	assert.Equal(t, entity.InstanceStatusCompleted, done.Status)
	assert.Error(t, repos.Instances.Complete(ctx, done), "completing twice must fail")

	got, err := repos.Instances.GetPending(ctx, done.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	pending, err := repos.Instances.ListByCase(ctx, c.ID, entity.InstanceStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, withDue.ID, pending[0].ID, "dated instances come first")
	assert.Equal(t, "Protocolar", pending[0].ActionTitle)
	assert.Equal(t, "B", pending[0].PhaseName)

	mine, err := repos.Instances.List(ctx, port.ActionFilter{Status: entity.InstanceStatusCompleted, AssigneeID: ""})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "approved", mine[0].Response)

	deleted, err := repos.Instances.DeletePending(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	completed, err := repos.Instances.ListByCase(ctx, c.ID, entity.InstanceStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestEventRepository_AppendOnly(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repos := testutil.NewRepos(db)
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	event := &entity.InternalEvent{CaseID: c.ID, Type: entity.EventProgress, Description: "Petição protocolada", AuthorID: "ana"}
	require.NoError(t, repos.Events.Append(ctx, event))
	assert.NotZero(t, event.ID)

	_, err := db.ExecContext(ctx, `UPDATE internal_events SET description = 'x' WHERE id = ?`, event.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	events, err := repos.Events.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Petição protocolada", events[0].Description)
}

func TestWorkflowRepository_Configuration(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)

	wf, err := repos.Workflows.GetByClientProduct(ctx, intake.ClientID, intake.ProductID)
	require.NoError(t, err)
	require.NotNil(t, wf)
	assert.Equal(t, intake.WorkflowID, wf.ID)

	none, err := repos.Workflows.GetByClientProduct(ctx, intake.ClientID, 999)
	require.NoError(t, err)
	assert.Nil(t, none)

	review, err := repos.Workflows.GetAction(ctx, intake.Review)
	require.NoError(t, err)
	assert.Equal(t, []string{"approved", "rejected"}, review.Options)

	file, err := repos.Workflows.GetAction(ctx, intake.File)
	require.NoError(t, err)
	assert.Nil(t, file.Options)
	assert.Equal(t, "clerk", file.DefaultAssigneeID)

	actions, err := repos.Workflows.ListActionsByWorkflow(ctx, intake.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, actions, 3)

	transitions, err := repos.Workflows.ListTransitions(ctx, intake.WorkflowID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, intake.WorkflowID, transitions[0].WorkflowID)

	// swap the order of A and B
	require.NoError(t, repos.Workflows.ParkPhaseOrders(ctx, intake.WorkflowID))
	require.NoError(t, repos.Workflows.SavePhase(ctx, &entity.Phase{ID: intake.PhaseA, WorkflowID: intake.WorkflowID, Name: "A", Order: 2}))
	require.NoError(t, repos.Workflows.SavePhase(ctx, &entity.Phase{ID: intake.PhaseB, WorkflowID: intake.WorkflowID, Name: "B", Order: 1}))

	phases, err := repos.Workflows.ListPhases(ctx, intake.WorkflowID)
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, intake.PhaseB, phases[0].ID)

	require.NoError(t, repos.Workflows.Delete(ctx, intake.WorkflowID))
	phases, err = repos.Workflows.ListPhases(ctx, intake.WorkflowID)
	require.NoError(t, err)
	assert.Empty(t, phases)
}

func TestWorkflowRepository_CaseRecordsPinConfiguration(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	require.NoError(t, repos.History.Create(ctx, &entity.PhaseHistory{CaseID: c.ID, PhaseID: intake.PhaseA, EnteredAt: time.Now()}))
	require.NoError(t, repos.Instances.Create(ctx, &entity.ActionInstance{CaseID: c.ID, ActionID: intake.Review, Status: entity.InstanceStatusPending}))

	n, err := repos.Workflows.CountPhaseHistory(ctx, intake.PhaseA)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repos.Workflows.CountPhaseHistory(ctx, intake.PhaseB)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.Workflows.CountActionInstances(ctx, intake.Review)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repos.Workflows.CountWorkflowRecords(ctx, intake.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the schema refuses to drop rows that case records point at
	assert.Error(t, repos.Workflows.DeleteAction(ctx, intake.Review))
	assert.Error(t, repos.Workflows.DeletePhase(ctx, intake.PhaseA))
	assert.Error(t, repos.Workflows.Delete(ctx, intake.WorkflowID))

	history, err := repos.History.ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFolderTemplateRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)

	tpl, err := repos.Folders.GetByClientProduct(ctx, intake.ClientID, intake.ProductID)
	require.NoError(t, err)
	assert.Nil(t, tpl)

	require.NoError(t, repos.Folders.Save(ctx, &entity.FolderTemplate{ClientID: intake.ClientID, ProductID: intake.ProductID, Folders: []string{"Petições"}}))
	require.NoError(t, repos.Folders.Save(ctx, &entity.FolderTemplate{ClientID: intake.ClientID, ProductID: intake.ProductID, Folders: []string{"Petições", "Provas"}}))

	tpl, err = repos.Folders.GetByClientProduct(ctx, intake.ClientID, intake.ProductID)
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, []string{"Petições", "Provas"}, tpl.Folders)
}

func TestAnalysisRepository_ResultLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := testutil.NewRepos(testutil.NewDB(t))
	intake := testutil.SeedIntake(t, repos)
	c := testutil.NewCase(t, repos, intake.ClientID, intake.ProductID, "")

	model := &entity.AnalysisModel{
		Name:      "Apólice",
		ClientID:  intake.ClientID,
		ProductID: intake.ProductID,
		Fields:    []entity.AnalysisField{{Name: "numero_apolice", Label: "Número da apólice", Kind: "text"}},
		Active:    true,
	}
	require.NoError(t, repos.Analyses.SaveModel(ctx, model))

	models, err := repos.Analyses.ListModels(ctx, intake.ClientID, intake.ProductID)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, model.Fields, models[0].Fields)

	result := &entity.AnalysisResult{
		CaseID:  c.ID,
		ModelID: model.ID,
		Files:   []entity.AnalysisFile{{ID: "f1", Name: "apolice.pdf"}},
		Status:  entity.AnalysisStatusProcessing,
	}
	require.NoError(t, repos.Analyses.CreateResult(ctx, result))

	processing, err := repos.Analyses.ListProcessing(ctx, 10)
	require.NoError(t, err)
	require.Len(t, processing, 1)

	result.Status = entity.AnalysisStatusDone
	result.ExtractedData = map[string]interface{}{"numero_apolice": "123"}
	result.Duration = 1500 * time.Millisecond
	require.NoError(t, repos.Analyses.UpdateResult(ctx, result))
	require.NoError(t, repos.Analyses.AppendLog(ctx, &entity.AnalysisLog{ResultID: result.ID, Level: entity.LogLevelSuccess, Message: "ok"}))

	stored, err := repos.Analyses.GetResult(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusDone, stored.Status)
	assert.Equal(t, "123", stored.ExtractedData["numero_apolice"])
	assert.Equal(t, 1500*time.Millisecond, stored.Duration)
	assert.Equal(t, result.Files, stored.Files)

	processing, err = repos.Analyses.ListProcessing(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, processing)

	logs, err := repos.Analyses.ListLogs(ctx, result.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.LogLevelSuccess, logs[0].Level)
}

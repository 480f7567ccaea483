package port

import (
	"context"
	"time"

	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// CaseFilter narrows case listings and exports
type CaseFilter struct {
	Status            string
	ClientID          int64
	ProductID         int64
	ResponsibleUserID string
	Search            string
	Limit             int
	Offset            int
}

// ActionFilter narrows action instance listings
type ActionFilter struct {
	Status     string
	AssigneeID string
	CaseID     int64
	Limit      int
}

// CaseRepository defines persistence operations for Case
type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	GetByID(ctx context.Context, id int64) (*entity.Case, error)
	GetView(ctx context.Context, id int64) (*entity.CaseView, error)
	UpdatePhase(ctx context.Context, id int64, phaseID *int64) error
	UpdateStatus(ctx context.Context, id int64, status string, closedAt *time.Time) error
	SetFolderID(ctx context.Context, id int64, folderID string) error
	List(ctx context.Context, filter CaseFilter) ([]*entity.CaseView, error)
	ListActiveByWorkflow(ctx context.Context, workflowID int64) ([]*entity.CaseView, error)
	CountByWorkflow(ctx context.Context, workflowID int64) (int, error)
	CountByPhase(ctx context.Context, phaseID int64) (int, error)
}

// ClientRepository defines persistence operations for Client
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id int64) (*entity.Client, error)
	List(ctx context.Context) ([]*entity.Client, error)
}

// ProductRepository defines persistence operations for Product
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	List(ctx context.Context) ([]*entity.Product, error)
}

// WorkflowRepository exposes the phase/action/transition configuration.
// The engine only reads from it; writes come from workflow administration.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *entity.Workflow) error
	Update(ctx context.Context, wf *entity.Workflow) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*entity.Workflow, error)
	GetByClientProduct(ctx context.Context, clientID, productID int64) (*entity.Workflow, error)
	List(ctx context.Context) ([]*entity.Workflow, error)

	GetPhase(ctx context.Context, id int64) (*entity.Phase, error)
	ListPhases(ctx context.Context, workflowID int64) ([]*entity.Phase, error)
	SavePhase(ctx context.Context, phase *entity.Phase) error
	ParkPhaseOrders(ctx context.Context, workflowID int64) error
	DeletePhase(ctx context.Context, id int64) error

	GetAction(ctx context.Context, id int64) (*entity.Action, error)
	ListActions(ctx context.Context, phaseID int64) ([]*entity.Action, error)
	ListActionsByWorkflow(ctx context.Context, workflowID int64) ([]*entity.Action, error)
	SaveAction(ctx context.Context, action *entity.Action) error
	DeleteAction(ctx context.Context, id int64) error

	ListTransitions(ctx context.Context, workflowID int64) ([]*entity.Transition, error)
	ReplaceTransitions(ctx context.Context, workflowID int64, transitions []*entity.Transition) error

	// Case records that pin configuration rows
	CountPhaseHistory(ctx context.Context, phaseID int64) (int, error)
	CountActionInstances(ctx context.Context, actionID int64) (int, error)
	CountWorkflowRecords(ctx context.Context, workflowID int64) (int, error)
}

// PhaseHistoryRepository defines persistence operations for PhaseHistory
type PhaseHistoryRepository interface {
	Create(ctx context.Context, h *entity.PhaseHistory) error
	CloseOpen(ctx context.Context, caseID int64, exitedAt time.Time) (int64, error)
	ListByCase(ctx context.Context, caseID int64) ([]*entity.PhaseHistory, error)
	CountOpen(ctx context.Context, caseID int64) (int, error)
}

// ActionInstanceRepository defines persistence operations for ActionInstance
type ActionInstanceRepository interface {
	Create(ctx context.Context, inst *entity.ActionInstance) error
	GetPending(ctx context.Context, id int64) (*entity.ActionInstance, error)
	Complete(ctx context.Context, inst *entity.ActionInstance) error
	DeletePending(ctx context.Context, caseID int64) (int64, error)
	ListByCase(ctx context.Context, caseID int64, status string) ([]*entity.ActionInstance, error)
	List(ctx context.Context, filter ActionFilter) ([]*entity.ActionInstance, error)
}

// EventRepository is the append-only audit sink for case events
type EventRepository interface {
	Append(ctx context.Context, event *entity.InternalEvent) error
	ListByCase(ctx context.Context, caseID int64) ([]*entity.InternalEvent, error)
}

// FolderTemplateRepository defines persistence operations for FolderTemplate
type FolderTemplateRepository interface {
	Save(ctx context.Context, tpl *entity.FolderTemplate) error
	GetByClientProduct(ctx context.Context, clientID, productID int64) (*entity.FolderTemplate, error)
}

// AnalysisRepository defines persistence operations for analysis models, results and logs
type AnalysisRepository interface {
	SaveModel(ctx context.Context, model *entity.AnalysisModel) error
	GetModel(ctx context.Context, id int64) (*entity.AnalysisModel, error)
	ListModels(ctx context.Context, clientID, productID int64) ([]*entity.AnalysisModel, error)

	CreateResult(ctx context.Context, result *entity.AnalysisResult) error
	GetResult(ctx context.Context, id int64) (*entity.AnalysisResult, error)
	UpdateResult(ctx context.Context, result *entity.AnalysisResult) error
	ListProcessing(ctx context.Context, limit int) ([]*entity.AnalysisResult, error)

	AppendLog(ctx context.Context, log *entity.AnalysisLog) error
	ListLogs(ctx context.Context, resultID int64) ([]*entity.AnalysisLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

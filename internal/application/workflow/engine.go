package workflow

import (
	"context"

	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// WorkflowEngine moves cases through the phases of their workflow
type WorkflowEngine interface {
	// Transition atomically moves a case into the target phase, regenerating its pending actions
	Transition(ctx context.Context, caseID, phaseID int64) error

	// EnterInitialPhase moves a freshly created case into the first phase of its workflow.
	// It returns nil without error when there is nothing to enter.
	EnterInitialPhase(ctx context.Context, caseID int64) (*entity.Phase, error)

	// ExecuteAction resolves a pending action instance and follows the matching transition, if any
	ExecuteAction(ctx context.Context, req ExecuteActionRequest) (*ActionPanel, error)

	// Panel returns the pending and completed action instances of a case
	Panel(ctx context.Context, caseID int64) (*ActionPanel, error)

	// Invalidate drops the cached graph of a workflow after its configuration changed
	Invalidate(workflowID int64)
}

// ExecuteActionRequest is the resolution of one pending action instance
type ExecuteActionRequest struct {
	InstanceID int64  `json:"instance_id"`
	Response   string `json:"response"`
	Comment    string `json:"comment"`
	ResolverID string `json:"resolver_id"`
}

// ActionPanel is the action state of a case after a change
type ActionPanel struct {
	CaseID         int64                    `json:"case_id"`
	CaseStatus     string                   `json:"case_status"`
	CurrentPhaseID *int64                   `json:"current_phase_id,omitempty"`
	Pending        []*entity.ActionInstance `json:"pending"`
	Completed      []*entity.ActionInstance `json:"completed"`
}

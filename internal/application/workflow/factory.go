package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/case-workflow/internal/application/port"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

// BuildGraph loads the stored configuration of a workflow and validates it into a graph
func BuildGraph(ctx context.Context, repo port.WorkflowRepository, workflowID int64) (*domainwf.Graph, error) {
	phases, err := repo.ListPhases(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load phases: %w", err)
	}
	actions, err := repo.ListActionsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}
	transitions, err := repo.ListTransitions(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}

	builder := domainwf.NewBuilder(workflowID)
	for _, p := range phases {
		builder.Phase(p.ID, p.Order)
	}

	configs := make(map[int64]domainwf.ActionConfiguration, len(actions))
	for _, a := range actions {
		configs[a.ID] = builder.Action(a.ID, a.PhaseID, a.Type, a.Options...)
	}

	for _, t := range transitions {
		cfg, ok := configs[t.ActionID]
		if !ok {
			return nil, fmt.Errorf("%w: transition %d references action %d outside workflow %d",
				domainwf.ErrInvalidDefinition, t.ID, t.ActionID, workflowID)
		}
		cfg.Permit(t.Condition, t.DestinationPhaseID)
	}

	return builder.Build()
}

package service

import (
	"context"
	"fmt"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

// Board is the kanban view of a workflow
type Board struct {
	Workflow *entity.Workflow `json:"workflow"`
	Columns  []BoardColumn    `json:"columns"`
}

// BoardColumn holds the active cases sitting on one phase
type BoardColumn struct {
	Phase *entity.Phase      `json:"phase"`
	Cases []*entity.CaseView `json:"cases"`
}

// ActionService answers cross-case action and board queries
type ActionService interface {
	ListActions(ctx context.Context, filter port.ActionFilter) ([]*entity.ActionInstance, error)
	Board(ctx context.Context, workflowID int64) (*Board, error)
}

type actionServiceImpl struct {
	instances port.ActionInstanceRepository
	workflows port.WorkflowRepository
	cases     port.CaseRepository
}

// NewActionService creates a new ActionService
func NewActionService(instances port.ActionInstanceRepository, workflows port.WorkflowRepository, cases port.CaseRepository) ActionService {
	return &actionServiceImpl{
		instances: instances,
		workflows: workflows,
		cases:     cases,
	}
}

// ListActions returns action instances ordered by due date, undated last
func (s *actionServiceImpl) ListActions(ctx context.Context, filter port.ActionFilter) ([]*entity.ActionInstance, error) {
	if filter.Status != "" && filter.Status != entity.InstanceStatusPending && filter.Status != entity.InstanceStatusCompleted {
		return nil, validationErr(fmt.Sprintf("invalid status %q", filter.Status))
	}
	instances, err := s.instances.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if instances == nil {
		instances = []*entity.ActionInstance{}
	}
	return instances, nil
}

// Board groups the active cases of a workflow by phase, in phase order
func (s *actionServiceImpl) Board(ctx context.Context, workflowID int64) (*Board, error) {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", domainwf.ErrNotFound, workflowID)
	}

	phases, err := s.workflows.ListPhases(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	cases, err := s.cases.ListActiveByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	byPhase := make(map[int64][]*entity.CaseView)
	for _, c := range cases {
		if c.CurrentPhaseID != nil {
			byPhase[*c.CurrentPhaseID] = append(byPhase[*c.CurrentPhaseID], c)
		}
	}

	board := &Board{Workflow: wf, Columns: make([]BoardColumn, 0, len(phases))}
	for _, p := range phases {
		column := BoardColumn{Phase: p, Cases: byPhase[p.ID]}
		if column.Cases == nil {
			column.Cases = []*entity.CaseView{}
		}
		board.Columns = append(board.Columns, column)
	}
	return board, nil
}

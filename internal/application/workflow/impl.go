package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	cases     port.CaseRepository
	workflows port.WorkflowRepository
	history   port.PhaseHistoryRepository
	instances port.ActionInstanceRepository
	events    port.EventRepository
	txManager port.TransactionManager
	logger    *zap.Logger
	now       func() time.Time

	locks *caseLocker

	// Cache validated graphs per workflow
	mu          sync.RWMutex
	graphs      map[int64]*domainwf.Graph
	loadedAt    map[int64]time.Time
	versions    map[int64]time.Time
	cacheExpiry time.Duration
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithCacheExpiry sets how long a workflow graph stays cached
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	cases port.CaseRepository,
	workflows port.WorkflowRepository,
	history port.PhaseHistoryRepository,
	instances port.ActionInstanceRepository,
	events port.EventRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		cases:       cases,
		workflows:   workflows,
		history:     history,
		instances:   instances,
		events:      events,
		txManager:   txManager,
		logger:      zap.NewNop(),
		now:         time.Now,
		locks:       newCaseLocker(),
		graphs:      make(map[int64]*domainwf.Graph),
		loadedAt:    make(map[int64]time.Time),
		versions:    make(map[int64]time.Time),
		cacheExpiry: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transition moves a case into the target phase
func (e *engineImpl) Transition(ctx context.Context, caseID, phaseID int64) error {
	unlock := e.locks.Lock(caseID)
	defer unlock()

	return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadCase(txCtx, caseID)
		if err != nil {
			return err
		}

		target, err := e.loadPhase(txCtx, phaseID)
		if err != nil {
			return err
		}

		current, err := e.currentPhase(txCtx, c)
		if err != nil {
			return err
		}

		if err := e.checkSameWorkflow(txCtx, c, current, target); err != nil {
			return err
		}

		return e.enterPhase(txCtx, c, current, target)
	})
}

// EnterInitialPhase moves a new case into the lowest-order phase of its workflow
func (e *engineImpl) EnterInitialPhase(ctx context.Context, caseID int64) (*entity.Phase, error) {
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	wf, err := e.workflows.GetByClientProduct(ctx, c.ClientID, c.ProductID)
	if err != nil {
		return nil, persistenceErr("load workflow", err)
	}
	if wf == nil {
		e.logger.Info("No workflow configured for case",
			zap.Int64("case_id", c.ID),
			zap.Int64("client_id", c.ClientID),
			zap.Int64("product_id", c.ProductID))
		return nil, nil
	}

	graph, err := e.graph(ctx, wf.ID)
	if err != nil {
		return nil, err
	}

	firstID, ok := graph.InitialPhase()
	if !ok {
		e.logger.Warn("Workflow has no phases",
			zap.Int64("case_id", c.ID),
			zap.Int64("workflow_id", wf.ID),
			zap.Error(domainwf.ErrConfigurationGap))
		return nil, nil
	}

	if err := e.Transition(ctx, caseID, firstID); err != nil {
		return nil, err
	}

	return e.workflows.GetPhase(ctx, firstID)
}

// ExecuteAction resolves a pending action instance
func (e *engineImpl) ExecuteAction(ctx context.Context, req ExecuteActionRequest) (*ActionPanel, error) {
	inst, err := e.instances.GetPending(ctx, req.InstanceID)
	if err != nil {
		return nil, persistenceErr("load action instance", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: pending action instance %d", domainwf.ErrNotFound, req.InstanceID)
	}

	unlock := e.locks.Lock(inst.CaseID)
	defer unlock()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-read under the lock: another request may have resolved it meanwhile
		inst, err := e.instances.GetPending(txCtx, req.InstanceID)
		if err != nil {
			return persistenceErr("load action instance", err)
		}
		if inst == nil {
			return fmt.Errorf("%w: pending action instance %d", domainwf.ErrNotFound, req.InstanceID)
		}

		now := e.now()
		inst.Response = req.Response
		inst.Comment = req.Comment
		inst.CompletedBy = req.ResolverID
		inst.CompletedAt = &now
		if err := e.instances.Complete(txCtx, inst); err != nil {
			return persistenceErr("complete action instance", err)
		}

		action, err := e.workflows.GetAction(txCtx, inst.ActionID)
		if err != nil {
			return persistenceErr("load action", err)
		}
		if action == nil {
			return fmt.Errorf("%w: action %d", domainwf.ErrNotFound, inst.ActionID)
		}

		c, err := e.loadCase(txCtx, inst.CaseID)
		if err != nil {
			return err
		}

		if action.SetCaseStatus != "" {
			c.ApplyStatus(action.SetCaseStatus, now)
			if err := e.cases.UpdateStatus(txCtx, c.ID, c.Status, c.ClosedAt); err != nil {
				return persistenceErr("update case status", err)
			}
		}

		if err := e.followTransition(txCtx, c, action, req.Response); err != nil {
			return err
		}

		description := fmt.Sprintf("Ação '%s' concluída.", action.Title)
		if req.Comment != "" {
			description += " Comentário: " + req.Comment
		}
		if req.Response != "" {
			description += " Resposta: " + req.Response
		}

		return e.appendEvent(txCtx, c.ID, entity.EventActionCompleted, description, req.ResolverID)
	})
	if err != nil {
		return nil, err
	}

	return e.Panel(ctx, inst.CaseID)
}

// Panel returns the action instances of a case
func (e *engineImpl) Panel(ctx context.Context, caseID int64) (*ActionPanel, error) {
	c, err := e.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	pending, err := e.instances.ListByCase(ctx, caseID, entity.InstanceStatusPending)
	if err != nil {
		return nil, persistenceErr("list pending actions", err)
	}
	completed, err := e.instances.ListByCase(ctx, caseID, entity.InstanceStatusCompleted)
	if err != nil {
		return nil, persistenceErr("list completed actions", err)
	}

	return &ActionPanel{
		CaseID:         c.ID,
		CaseStatus:     c.Status,
		CurrentPhaseID: c.CurrentPhaseID,
		Pending:        nonNil(pending),
		Completed:      nonNil(completed),
	}, nil
}

// Invalidate drops the cached graph of a workflow
func (e *engineImpl) Invalidate(workflowID int64) {
	e.mu.Lock()
	delete(e.graphs, workflowID)
	delete(e.loadedAt, workflowID)
	delete(e.versions, workflowID)
	e.mu.Unlock()
}

// followTransition moves the case when the response matches a configured transition
func (e *engineImpl) followTransition(ctx context.Context, c *entity.Case, action *entity.Action, response string) error {
	source, err := e.loadPhase(ctx, action.PhaseID)
	if err != nil {
		return err
	}

	graph, err := e.graph(ctx, source.WorkflowID)
	if err != nil {
		return err
	}

	destID, ok := graph.Next(action.ID, response)
	if !ok {
		e.logger.Debug("No transition for response, case stays in phase",
			zap.Int64("case_id", c.ID),
			zap.Int64("action_id", action.ID),
			zap.String("response", response))
		return nil
	}

	target, err := e.loadPhase(ctx, destID)
	if err != nil {
		return err
	}

	current, err := e.currentPhase(ctx, c)
	if err != nil {
		return err
	}

	return e.enterPhase(ctx, c, current, target)
}

// enterPhase runs the six transition steps. It must be called inside a transaction
// while holding the case lock.
func (e *engineImpl) enterPhase(ctx context.Context, c *entity.Case, current, target *entity.Phase) error {
	now := e.now()

	if _, err := e.history.CloseOpen(ctx, c.ID, now); err != nil {
		return persistenceErr("close phase history", err)
	}

	if err := e.cases.UpdatePhase(ctx, c.ID, &target.ID); err != nil {
		return persistenceErr("update current phase", err)
	}
	phaseID := target.ID
	c.CurrentPhaseID = &phaseID

	if err := e.history.Create(ctx, &entity.PhaseHistory{
		CaseID:    c.ID,
		PhaseID:   target.ID,
		EnteredAt: now,
	}); err != nil {
		return persistenceErr("open phase history", err)
	}

	if _, err := e.instances.DeletePending(ctx, c.ID); err != nil {
		return persistenceErr("delete pending actions", err)
	}

	actions, err := e.workflows.ListActions(ctx, target.ID)
	if err != nil {
		return persistenceErr("list phase actions", err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, a := range actions {
		inst := &entity.ActionInstance{
			CaseID:     c.ID,
			ActionID:   a.ID,
			Status:     entity.InstanceStatusPending,
			AssigneeID: a.DefaultAssigneeID,
			CreatedAt:  now,
		}
		if inst.AssigneeID == "" {
			inst.AssigneeID = c.ResponsibleUserID
		}
		if a.DeadlineDays > 0 {
			due := today.AddDate(0, 0, a.DeadlineDays)
			inst.DueDate = &due
		}
		if err := e.instances.Create(ctx, inst); err != nil {
			return persistenceErr("create action instance", err)
		}
	}

	from := "Nenhuma"
	if current != nil {
		from = current.Name
	}
	description := fmt.Sprintf("Caso transitou da fase '%s' para '%s'.", from, target.Name)
	if err := e.appendEvent(ctx, c.ID, entity.EventPhaseChanged, description, ""); err != nil {
		return err
	}

	e.logger.Info("Case changed phase",
		zap.Int64("case_id", c.ID),
		zap.String("from", from),
		zap.String("to", target.Name),
		zap.Int("actions", len(actions)))

	return nil
}

func (e *engineImpl) checkSameWorkflow(ctx context.Context, c *entity.Case, current, target *entity.Phase) error {
	if current != nil {
		if current.WorkflowID != target.WorkflowID {
			return fmt.Errorf("%w: phase %d is not in workflow %d", domainwf.ErrForeignPhase, target.ID, current.WorkflowID)
		}
		return nil
	}

	wf, err := e.workflows.GetByClientProduct(ctx, c.ClientID, c.ProductID)
	if err != nil {
		return persistenceErr("load workflow", err)
	}
	if wf == nil || wf.ID != target.WorkflowID {
		return fmt.Errorf("%w: phase %d is not in the workflow of case %d", domainwf.ErrForeignPhase, target.ID, c.ID)
	}
	return nil
}

func (e *engineImpl) appendEvent(ctx context.Context, caseID int64, eventType, description, author string) error {
	if err := e.events.Append(ctx, &entity.InternalEvent{
		CaseID:      caseID,
		Type:        eventType,
		Description: description,
		AuthorID:    author,
		CreatedAt:   e.now(),
	}); err != nil {
		return persistenceErr("append internal event", err)
	}
	return nil
}

func (e *engineImpl) loadCase(ctx context.Context, caseID int64) (*entity.Case, error) {
	c, err := e.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, persistenceErr("load case", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: case %d", domainwf.ErrNotFound, caseID)
	}
	return c, nil
}

func (e *engineImpl) loadPhase(ctx context.Context, phaseID int64) (*entity.Phase, error) {
	p, err := e.workflows.GetPhase(ctx, phaseID)
	if err != nil {
		return nil, persistenceErr("load phase", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: phase %d", domainwf.ErrNotFound, phaseID)
	}
	return p, nil
}

func (e *engineImpl) currentPhase(ctx context.Context, c *entity.Case) (*entity.Phase, error) {
	if c.CurrentPhaseID == nil {
		return nil, nil
	}
	p, err := e.workflows.GetPhase(ctx, *c.CurrentPhaseID)
	if err != nil {
		return nil, persistenceErr("load current phase", err)
	}
	return p, nil
}

// graph returns the cached graph of a workflow, loading it when missing or stale.
// A cached graph is also stale once the workflow row was saved after it was built,
// which covers imports run by another process.
func (e *engineImpl) graph(ctx context.Context, workflowID int64) (*domainwf.Graph, error) {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, persistenceErr("load workflow", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", domainwf.ErrNotFound, workflowID)
	}

	e.mu.RLock()
	g, ok := e.graphs[workflowID]
	loaded := e.loadedAt[workflowID]
	version := e.versions[workflowID]
	e.mu.RUnlock()

	if ok && version.Equal(wf.UpdatedAt) && e.now().Sub(loaded) < e.cacheExpiry {
		return g, nil
	}

	g, err = BuildGraph(ctx, e.workflows, workflowID)
	if err != nil {
		if errors.Is(err, domainwf.ErrInvalidDefinition) {
			return nil, err
		}
		return nil, persistenceErr("load workflow graph", err)
	}

	e.mu.Lock()
	e.graphs[workflowID] = g
	e.loadedAt[workflowID] = e.now()
	e.versions[workflowID] = wf.UpdatedAt
	e.mu.Unlock()

	return g, nil
}

func persistenceErr(step string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domainwf.ErrPersistence, step, err)
}

func nonNil(instances []*entity.ActionInstance) []*entity.ActionInstance {
	if instances == nil {
		return []*entity.ActionInstance{}
	}
	return instances
}

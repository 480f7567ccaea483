package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow configuration repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a workflow
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	now := time.Now()
	wf.CreatedAt, wf.UpdatedAt = now, now

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflows (name, client_id, product_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, wf.Name, wf.ClientID, wf.ProductID, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	wf.ID = id
	return nil
}

// Update changes name and pair of a workflow
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.Workflow) error {
	wf.UpdatedAt = time.Now()
	_, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		UPDATE workflows SET name = ?, client_id = ?, product_id = ?, updated_at = ? WHERE id = ?
	`, wf.Name, wf.ClientID, wf.ProductID, wf.UpdatedAt, wf.ID)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.Int64("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return nil
}

// Delete removes a workflow and, by cascade, its phases, actions and transitions
func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete workflow", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

const workflowColumns = `id, name, client_id, product_id, created_at, updated_at`

// GetByID retrieves a workflow by ID
func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.Workflow, error) {
	return r.getOne(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
}

// GetByClientProduct retrieves the workflow configured for a client/product pair
func (r *WorkflowRepository) GetByClientProduct(ctx context.Context, clientID, productID int64) (*entity.Workflow, error) {
	return r.getOne(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE client_id = ? AND product_id = ?`, clientID, productID)
}

func (r *WorkflowRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Workflow, error) {
	var wf entity.Workflow
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&wf.ID, &wf.Name, &wf.ClientID, &wf.ProductID, &wf.CreatedAt, &wf.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &wf, nil
}

// List returns every workflow ordered by name
func (r *WorkflowRepository) List(ctx context.Context) ([]*entity.Workflow, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		var wf entity.Workflow
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.ClientID, &wf.ProductID, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

// GetPhase retrieves a phase by ID
func (r *WorkflowRepository) GetPhase(ctx context.Context, id int64) (*entity.Phase, error) {
	var p entity.Phase
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, workflow_id, name, sort_order, is_final FROM phases WHERE id = ?`, id,
	).Scan(&p.ID, &p.WorkflowID, &p.Name, &p.Order, &p.IsFinal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get phase", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get phase: %w", err)
	}
	return &p, nil
}

// ListPhases returns the phases of a workflow ordered by their order
func (r *WorkflowRepository) ListPhases(ctx context.Context, workflowID int64) ([]*entity.Phase, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, workflow_id, name, sort_order, is_final
		FROM phases WHERE workflow_id = ? ORDER BY sort_order
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases: %w", err)
	}
	defer rows.Close()

	var phases []*entity.Phase
	for rows.Next() {
		var p entity.Phase
		if err := rows.Scan(&p.ID, &p.WorkflowID, &p.Name, &p.Order, &p.IsFinal); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, &p)
	}
	return phases, rows.Err()
}

// SavePhase inserts a phase without ID or updates an existing one
func (r *WorkflowRepository) SavePhase(ctx context.Context, phase *entity.Phase) error {
	exec := sqlite.Executor(ctx, r.db)

	if phase.ID != 0 {
		_, err := exec.ExecContext(ctx,
			`UPDATE phases SET name = ?, sort_order = ?, is_final = ? WHERE id = ? AND workflow_id = ?`,
			phase.Name, phase.Order, phase.IsFinal, phase.ID, phase.WorkflowID)
		if err != nil {
			return fmt.Errorf("failed to update phase: %w", err)
		}
		return nil
	}

	result, err := exec.ExecContext(ctx,
		`INSERT INTO phases (workflow_id, name, sort_order, is_final) VALUES (?, ?, ?, ?)`,
		phase.WorkflowID, phase.Name, phase.Order, phase.IsFinal)
	if err != nil {
		r.logger.Error("Failed to create phase", zap.Error(err))
		return fmt.Errorf("failed to create phase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	phase.ID = id
	return nil
}

// ParkPhaseOrders moves every phase of the workflow to a temporary negative
// order so a reordering save does not collide on (workflow_id, sort_order).
func (r *WorkflowRepository) ParkPhaseOrders(ctx context.Context, workflowID int64) error {
	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE phases SET sort_order = -id WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("failed to park phase orders: %w", err)
	}
	return nil
}

// DeletePhase removes a phase
func (r *WorkflowRepository) DeletePhase(ctx context.Context, id int64) error {
	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM phases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete phase: %w", err)
	}
	return nil
}

const actionColumns = `a.id, a.phase_id, a.title, a.type, a.deadline_days, a.wait_days, a.default_assignee_id, a.set_case_status, a.options`

// GetAction retrieves an action by ID
func (r *WorkflowRepository) GetAction(ctx context.Context, id int64) (*entity.Action, error) {
	a, err := scanAction(sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions a WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get action", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return a, nil
}

// ListActions returns the actions of a phase in creation order
func (r *WorkflowRepository) ListActions(ctx context.Context, phaseID int64) ([]*entity.Action, error) {
	return r.queryActions(ctx, `SELECT `+actionColumns+` FROM actions a WHERE a.phase_id = ? ORDER BY a.id`, phaseID)
}

// ListActionsByWorkflow returns all actions of a workflow grouped by phase order
func (r *WorkflowRepository) ListActionsByWorkflow(ctx context.Context, workflowID int64) ([]*entity.Action, error) {
	return r.queryActions(ctx, `
		SELECT `+actionColumns+` FROM actions a
		JOIN phases p ON p.id = a.phase_id
		WHERE p.workflow_id = ?
		ORDER BY p.sort_order, a.id
	`, workflowID)
}

func (r *WorkflowRepository) queryActions(ctx context.Context, query string, args ...interface{}) ([]*entity.Action, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*entity.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// SaveAction inserts an action without ID or updates an existing one
func (r *WorkflowRepository) SaveAction(ctx context.Context, action *entity.Action) error {
	options, err := json.Marshal(nonNilStrings(action.Options))
	if err != nil {
		return fmt.Errorf("failed to marshal action options: %w", err)
	}

	exec := sqlite.Executor(ctx, r.db)
	if action.ID != 0 {
		_, err := exec.ExecContext(ctx, `
			UPDATE actions SET phase_id = ?, title = ?, type = ?, deadline_days = ?, wait_days = ?,
				default_assignee_id = ?, set_case_status = ?, options = ?
			WHERE id = ?
		`, action.PhaseID, action.Title, action.Type, action.DeadlineDays, action.WaitDays,
			action.DefaultAssigneeID, action.SetCaseStatus, string(options), action.ID)
		if err != nil {
			return fmt.Errorf("failed to update action: %w", err)
		}
		return nil
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO actions (phase_id, title, type, deadline_days, wait_days, default_assignee_id, set_case_status, options)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, action.PhaseID, action.Title, action.Type, action.DeadlineDays, action.WaitDays,
		action.DefaultAssigneeID, action.SetCaseStatus, string(options))
	if err != nil {
		r.logger.Error("Failed to create action", zap.Error(err))
		return fmt.Errorf("failed to create action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	action.ID = id
	return nil
}

// DeleteAction removes an action
func (r *WorkflowRepository) DeleteAction(ctx context.Context, id int64) error {
	if _, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return nil
}

// CountPhaseHistory counts history records pointing at the phase
func (r *WorkflowRepository) CountPhaseHistory(ctx context.Context, phaseID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM phase_history WHERE phase_id = ?`, phaseID)
}

// CountActionInstances counts action instances of any status created from the action
func (r *WorkflowRepository) CountActionInstances(ctx context.Context, actionID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM action_instances WHERE action_id = ?`, actionID)
}

// CountWorkflowRecords counts the history records and action instances that
// reference the phases and actions of a workflow
func (r *WorkflowRepository) CountWorkflowRecords(ctx context.Context, workflowID int64) (int, error) {
	return r.count(ctx, `
		SELECT
			(SELECT COUNT(*) FROM phase_history h
				JOIN phases p ON p.id = h.phase_id WHERE p.workflow_id = ?) +
			(SELECT COUNT(*) FROM action_instances i
				JOIN actions a ON a.id = i.action_id
				JOIN phases p ON p.id = a.phase_id WHERE p.workflow_id = ?)
	`, workflowID, workflowID)
}

func (r *WorkflowRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count workflow references", zap.Error(err))
		return 0, fmt.Errorf("failed to count workflow references: %w", err)
	}
	return n, nil
}

// ListTransitions returns every transition of a workflow
func (r *WorkflowRepository) ListTransitions(ctx context.Context, workflowID int64) ([]*entity.Transition, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, workflow_id, source_phase_id, action_id, condition, destination_phase_id
		FROM transitions WHERE workflow_id = ? ORDER BY id
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*entity.Transition
	for rows.Next() {
		var t entity.Transition
		if err := rows.Scan(&t.ID, &t.WorkflowID, &t.SourcePhaseID, &t.ActionID, &t.Condition, &t.DestinationPhaseID); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, &t)
	}
	return transitions, rows.Err()
}

// ReplaceTransitions swaps the whole transition set of a workflow
func (r *WorkflowRepository) ReplaceTransitions(ctx context.Context, workflowID int64, transitions []*entity.Transition) error {
	exec := sqlite.Executor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM transitions WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("failed to clear transitions: %w", err)
	}

	for _, t := range transitions {
		t.WorkflowID = workflowID
		result, err := exec.ExecContext(ctx, `
			INSERT INTO transitions (workflow_id, source_phase_id, action_id, condition, destination_phase_id)
			VALUES (?, ?, ?, ?, ?)
		`, t.WorkflowID, t.SourcePhaseID, t.ActionID, t.Condition, t.DestinationPhaseID)
		if err != nil {
			r.logger.Error("Failed to create transition", zap.Int64("action_id", t.ActionID), zap.Error(err))
			return fmt.Errorf("failed to create transition: %w", err)
		}
		if t.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

func scanAction(s rowScanner) (*entity.Action, error) {
	var a entity.Action
	var options string
	if err := s.Scan(&a.ID, &a.PhaseID, &a.Title, &a.Type, &a.DeadlineDays, &a.WaitDays,
		&a.DefaultAssigneeID, &a.SetCaseStatus, &options); err != nil {
		return nil, err
	}
	if options != "" {
		if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action options: %w", err)
		}
	}
	if len(a.Options) == 0 {
		a.Options = nil
	}
	return &a, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

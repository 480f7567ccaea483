package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ActionInstanceRepository implements port.ActionInstanceRepository
type ActionInstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActionInstanceRepository creates a new action instance repository
func NewActionInstanceRepository(db *sql.DB, logger *zap.Logger) port.ActionInstanceRepository {
	return &ActionInstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	i.id, i.case_id, i.action_id, i.status, i.assignee_id, i.due_date, i.response, i.comment,
	i.completed_by, i.completed_at, i.created_at, a.title, a.type, p.name, c.title
`

const instanceFrom = `
	FROM action_instances i
	JOIN actions a ON a.id = i.action_id
	JOIN phases p ON p.id = a.phase_id
	JOIN cases c ON c.id = i.case_id
`

// Create inserts a new action instance
func (r *ActionInstanceRepository) Create(ctx context.Context, inst *entity.ActionInstance) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO action_instances (
			case_id, action_id, status, assignee_id, due_date, response, comment,
			completed_by, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inst.CaseID,
		inst.ActionID,
		inst.Status,
		inst.AssigneeID,
		nullTime(inst.DueDate),
		inst.Response,
		inst.Comment,
		inst.CompletedBy,
		nullTime(inst.CompletedAt),
		inst.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create action instance",
			zap.Int64("case_id", inst.CaseID),
			zap.Int64("action_id", inst.ActionID),
			zap.Error(err))
		return fmt.Errorf("failed to create action instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inst.ID = id
	return nil
}

// GetPending retrieves an instance only while it is PENDENTE
func (r *ActionInstanceRepository) GetPending(ctx context.Context, id int64) (*entity.ActionInstance, error) {
	query := "SELECT " + instanceColumns + instanceFrom + " WHERE i.id = ? AND i.status = ?"

	inst, err := scanInstance(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id, entity.InstanceStatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending action instance", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get action instance: %w", err)
	}
	return inst, nil
}

// Complete records the resolution of a pending instance.
// It fails when the instance is no longer pending.
func (r *ActionInstanceRepository) Complete(ctx context.Context, inst *entity.ActionInstance) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		UPDATE action_instances
		SET status = ?, response = ?, comment = ?, completed_by = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`,
		entity.InstanceStatusCompleted,
		inst.Response,
		inst.Comment,
		inst.CompletedBy,
		nullTime(inst.CompletedAt),
		inst.ID,
		entity.InstanceStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to complete action instance", zap.Int64("id", inst.ID), zap.Error(err))
		return fmt.Errorf("failed to complete action instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("action instance %d is not pending", inst.ID)
	}

	inst.Status = entity.InstanceStatusCompleted
	return nil
}

// DeletePending removes every pending instance of a case
func (r *ActionInstanceRepository) DeletePending(ctx context.Context, caseID int64) (int64, error) {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM action_instances WHERE case_id = ? AND status = ?`,
		caseID, entity.InstanceStatusPending)
	if err != nil {
		r.logger.Error("Failed to delete pending action instances", zap.Int64("case_id", caseID), zap.Error(err))
		return 0, fmt.Errorf("failed to delete pending action instances: %w", err)
	}
	return result.RowsAffected()
}

// ListByCase returns the instances of a case with the given status.
// Pending ones come by due date, completed ones newest first.
func (r *ActionInstanceRepository) ListByCase(ctx context.Context, caseID int64, status string) ([]*entity.ActionInstance, error) {
	order := " ORDER BY i.due_date IS NULL, i.due_date, i.id"
	if status == entity.InstanceStatusCompleted {
		order = " ORDER BY i.completed_at DESC, i.id DESC"
	}
	query := "SELECT " + instanceColumns + instanceFrom + " WHERE i.case_id = ? AND i.status = ?" + order
	return r.query(ctx, query, caseID, status)
}

// List returns instances across cases ordered by due date, undated last
func (r *ActionInstanceRepository) List(ctx context.Context, filter port.ActionFilter) ([]*entity.ActionInstance, error) {
	var where []string
	var args []interface{}

	if filter.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, filter.Status)
	}
	if filter.AssigneeID != "" {
		where = append(where, "i.assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.CaseID != 0 {
		where = append(where, "i.case_id = ?")
		args = append(args, filter.CaseID)
	}

	query := "SELECT " + instanceColumns + instanceFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.due_date IS NULL, i.due_date, i.id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *ActionInstanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ActionInstance, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list action instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list action instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.ActionInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanInstance(s rowScanner) (*entity.ActionInstance, error) {
	var inst entity.ActionInstance
	var dueDate, completedAt sql.NullTime

	if err := s.Scan(
		&inst.ID,
		&inst.CaseID,
		&inst.ActionID,
		&inst.Status,
		&inst.AssigneeID,
		&dueDate,
		&inst.Response,
		&inst.Comment,
		&inst.CompletedBy,
		&completedAt,
		&inst.CreatedAt,
		&inst.ActionTitle,
		&inst.ActionType,
		&inst.PhaseName,
		&inst.CaseTitle,
	); err != nil {
		return nil, err
	}

	inst.DueDate = timePtr(dueDate)
	inst.CompletedAt = timePtr(completedAt)
	return &inst, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// EventRepository implements port.EventRepository.
// Rows are never updated; the schema rejects UPDATE on internal_events.
type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventRepository creates a new internal event repository
func NewEventRepository(db *sql.DB, logger *zap.Logger) port.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a new event
func (r *EventRepository) Append(ctx context.Context, event *entity.InternalEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO internal_events (case_id, type, description, author_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.CaseID, event.Type, event.Description, event.AuthorID, event.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append internal event",
			zap.Int64("case_id", event.CaseID),
			zap.String("type", event.Type),
			zap.Error(err))
		return fmt.Errorf("failed to append internal event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

// ListByCase returns the events of a case, newest first
func (r *EventRepository) ListByCase(ctx context.Context, caseID int64) ([]*entity.InternalEvent, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, case_id, type, description, author_id, created_at
		FROM internal_events
		WHERE case_id = ?
		ORDER BY created_at DESC, id DESC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list internal events: %w", err)
	}
	defer rows.Close()

	var events []*entity.InternalEvent
	for rows.Next() {
		var e entity.InternalEvent
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Type, &e.Description, &e.AuthorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan internal event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

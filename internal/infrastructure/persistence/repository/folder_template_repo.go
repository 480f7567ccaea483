package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// FolderTemplateRepository implements port.FolderTemplateRepository
type FolderTemplateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFolderTemplateRepository creates a new folder template repository
func NewFolderTemplateRepository(db *sql.DB, logger *zap.Logger) port.FolderTemplateRepository {
	return &FolderTemplateRepository{db: db, logger: logger}
}

// Save upserts the template of a client/product pair
func (r *FolderTemplateRepository) Save(ctx context.Context, tpl *entity.FolderTemplate) error {
	folders, err := json.Marshal(nonNilStrings(tpl.Folders))
	if err != nil {
		return fmt.Errorf("failed to marshal folders: %w", err)
	}

	exec := sqlite.Executor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO folder_templates (client_id, product_id, folders) VALUES (?, ?, ?)
		ON CONFLICT (client_id, product_id) DO UPDATE SET folders = excluded.folders
	`, tpl.ClientID, tpl.ProductID, string(folders)); err != nil {
		r.logger.Error("Failed to save folder template", zap.Error(err))
		return fmt.Errorf("failed to save folder template: %w", err)
	}

	return exec.QueryRowContext(ctx,
		`SELECT id FROM folder_templates WHERE client_id = ? AND product_id = ?`,
		tpl.ClientID, tpl.ProductID).Scan(&tpl.ID)
}

// GetByClientProduct retrieves the template of a pair
func (r *FolderTemplateRepository) GetByClientProduct(ctx context.Context, clientID, productID int64) (*entity.FolderTemplate, error) {
	var tpl entity.FolderTemplate
	var folders string

	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, client_id, product_id, folders FROM folder_templates
		WHERE client_id = ? AND product_id = ?
	`, clientID, productID).Scan(&tpl.ID, &tpl.ClientID, &tpl.ProductID, &folders)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder template: %w", err)
	}

	if err := json.Unmarshal([]byte(folders), &tpl.Folders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal folders: %w", err)
	}
	return &tpl, nil
}

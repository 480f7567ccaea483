package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/case-workflow/internal/application/port"
	"go.uber.org/zap"
)

// LocalFileStorage implements port.DocumentStore for files under baseDir.
// File ids are slash-separated paths relative to baseDir.
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content to the file id, creating parent folders
func (s *LocalFileStorage) Save(ctx context.Context, fileID string, content []byte) error {
	fullPath, err := resolve(s.baseDir, fileID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Download reads a stored document; the MIME type comes from its extension
func (s *LocalFileStorage) Download(ctx context.Context, fileID string) (*port.StoredDocument, error) {
	fullPath, err := resolve(s.baseDir, fileID)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.logger.Debug("File read successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	name := filepath.Base(fullPath)
	return &port.StoredDocument{
		Name:     name,
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Content:  content,
	}, nil
}

// resolve maps an id to a path and checks that it stays within baseDir
func resolve(baseDir, id string) (string, error) {
	fullPath := filepath.Join(baseDir, filepath.FromSlash(id))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", id)
	}
	return absPath, nil
}

var _ port.DocumentStore = (*LocalFileStorage)(nil)

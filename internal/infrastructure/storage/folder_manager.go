package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/garyjia/case-workflow/internal/application/port"
	"go.uber.org/zap"
)

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N} \-_.]`)

// LocalFolderManager implements port.FolderProvisioner on the local filesystem.
// Folder ids are slash-separated paths relative to baseDir.
type LocalFolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFolderManager creates a new LocalFolderManager
func NewLocalFolderManager(baseDir string, logger *zap.Logger) *LocalFolderManager {
	return &LocalFolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateCaseFolder creates the root folder of a case.
// Creating an existing folder returns the same id.
func (m *LocalFolderManager) CreateCaseFolder(ctx context.Context, name string) (string, error) {
	return m.create("", name)
}

// CreateSubfolder creates a folder under parentID
func (m *LocalFolderManager) CreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	if parentID == "" {
		return "", fmt.Errorf("cannot create subfolder %q: empty parent", name)
	}
	return m.create(parentID, name)
}

func (m *LocalFolderManager) create(parentID, name string) (string, error) {
	safeName := SanitizeName(name)
	if safeName == "" {
		return "", fmt.Errorf("cannot create folder: empty name")
	}

	id := safeName
	if parentID != "" {
		id = parentID + "/" + safeName
	}

	folderPath, err := resolve(m.baseDir, id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create folder",
			zap.String("name", name),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created folder",
		zap.String("name", name),
		zap.String("folder_path", folderPath))

	return id, nil
}

// GetPath returns the filesystem path of a folder id without creating it
func (m *LocalFolderManager) GetPath(id string) string {
	return filepath.Join(m.baseDir, filepath.FromSlash(id))
}

// SanitizeName returns a filesystem-safe single path element.
// Letters of any script, digits, spaces, dots, hyphens and underscores are kept.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	// no "." or ".." elements
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}

var _ port.FolderProvisioner = (*LocalFolderManager)(nil)

package port

import "context"

// FolderProvisioner creates the document folders of a case in the file backend
type FolderProvisioner interface {
	// CreateCaseFolder creates the root folder of a case and returns its id
	CreateCaseFolder(ctx context.Context, name string) (string, error)

	// CreateSubfolder creates a child folder and returns its id
	CreateSubfolder(ctx context.Context, parentID, name string) (string, error)
}

// StoredDocument is a file downloaded from the document backend
type StoredDocument struct {
	Name     string
	MimeType string
	Content  []byte
}

// DocumentStore reads case documents from the file backend
type DocumentStore interface {
	Download(ctx context.Context, fileID string) (*StoredDocument, error)
}

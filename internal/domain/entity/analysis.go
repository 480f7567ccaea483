package entity

import "time"

// AnalysisField describes one field the analyzer should extract
type AnalysisField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// AnalysisModel is an extraction template for a client/product pair
type AnalysisModel struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	ClientID        int64           `json:"client_id"`
	ProductID       int64           `json:"product_id"`
	Fields          []AnalysisField `json:"fields"`
	Instructions    string          `json:"instructions"`
	GenerateSummary bool            `json:"generate_summary"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AnalysisFile references a stored document selected for analysis
type AnalysisFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Folder   string `json:"folder,omitempty"`
}

// AnalysisResult is one analysis run over a case's documents
type AnalysisResult struct {
	ID            int64                  `json:"id"`
	CaseID        int64                  `json:"case_id"`
	ModelID       int64                  `json:"model_id"`
	Files         []AnalysisFile         `json:"files"`
	ExtractedData map[string]interface{} `json:"extracted_data,omitempty"`
	Summary       string                 `json:"summary,omitempty"`
	Status        string                 `json:"status"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Duration      time.Duration          `json:"duration"`
	RequestedBy   string                 `json:"requested_by,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`

	Logs []AnalysisLog `json:"logs,omitempty"`
}

// AnalysisLog is one progress line of an analysis run
type AnalysisLog struct {
	ID        int64     `json:"id"`
	ResultID  int64     `json:"result_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

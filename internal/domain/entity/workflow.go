package entity

import "time"

// Workflow is the phase configuration of one client/product pair
type Workflow struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ClientID  int64     `json:"client_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase is an ordered stage of a workflow
type Phase struct {
	ID         int64  `json:"id"`
	WorkflowID int64  `json:"workflow_id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
	IsFinal    bool   `json:"is_final"`
}

// Action is a unit of work instantiated for each case entering its phase
type Action struct {
	ID                int64    `json:"id"`
	PhaseID           int64    `json:"phase_id"`
	Title             string   `json:"title"`
	Type              string   `json:"type"`
	DeadlineDays      int      `json:"deadline_days"`
	WaitDays          int      `json:"wait_days"`
	DefaultAssigneeID string   `json:"default_assignee_id,omitempty"`
	SetCaseStatus     string   `json:"set_case_status,omitempty"`
	Options           []string `json:"options,omitempty"`
}

// Transition maps one resolution of an action to a destination phase
type Transition struct {
	ID                 int64  `json:"id"`
	WorkflowID         int64  `json:"workflow_id"`
	SourcePhaseID      int64  `json:"source_phase_id"`
	ActionID           int64  `json:"action_id"`
	Condition          string `json:"condition"`
	DestinationPhaseID int64  `json:"destination_phase_id"`
}

// PhaseHistory records one stay of a case in a phase
type PhaseHistory struct {
	ID        int64      `json:"id"`
	CaseID    int64      `json:"case_id"`
	PhaseID   int64      `json:"phase_id"`
	PhaseName string     `json:"phase_name,omitempty"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

// ActionInstance tracks one action for one case during one phase entry
type ActionInstance struct {
	ID          int64      `json:"id"`
	CaseID      int64      `json:"case_id"`
	ActionID    int64      `json:"action_id"`
	Status      string     `json:"status"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Response    string     `json:"response,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Joined for read models
	ActionTitle string `json:"action_title,omitempty"`
	ActionType  string `json:"action_type,omitempty"`
	PhaseName   string `json:"phase_name,omitempty"`
	CaseTitle   string `json:"case_title,omitempty"`
}

package entity

import "time"

// Client is the party a case is opened for
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is the line of business a case belongs to
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Case is the aggregate root that workflow state hangs off
type Case struct {
	ID                int64      `json:"id"`
	ClientID          int64      `json:"client_id"`
	ProductID         int64      `json:"product_id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	ResponsibleUserID string     `json:"responsible_user_id,omitempty"`
	CurrentPhaseID    *int64     `json:"current_phase_id,omitempty"`
	FolderID          string     `json:"folder_id,omitempty"`
	EntryDate         time.Time  `json:"entry_date"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CaseView is a case joined with the names shown in listings and exports
type CaseView struct {
	Case
	ClientName  string `json:"client_name"`
	ProductName string `json:"product_name"`
	PhaseName   string `json:"phase_name,omitempty"`
}

// ApplyStatus sets the status and keeps the closing date consistent with it.
func (c *Case) ApplyStatus(status string, at time.Time) {
	c.Status = status
	if status == CaseStatusClosed {
		if c.ClosedAt == nil {
			closed := at
			c.ClosedAt = &closed
		}
		return
	}
	c.ClosedAt = nil
}

// InternalEvent is an append-only entry of a case's internal timeline
type InternalEvent struct {
	ID          int64     `json:"id"`
	CaseID      int64     `json:"case_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AuthorID    string    `json:"author_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FolderTemplate lists the sub-folders created for new cases of a client/product pair
type FolderTemplate struct {
	ID        int64    `json:"id"`
	ClientID  int64    `json:"client_id"`
	ProductID int64    `json:"product_id"`
	Folders   []string `json:"folders"`
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Creation step names and outcomes
const (
	StepInitialPhase = "initial_phase"
	StepFolders      = "folders"
	StepNotification = "notification"
	StepWebhook      = "webhook"

	StepOK      = "ok"
	StepSkipped = "skipped"
	StepFailed  = "failed"
)

// CaseService manages cases and their timeline
type CaseService interface {
	CreateCase(ctx context.Context, req CreateCaseRequest) (*CreateCaseResult, error)
	GetCase(ctx context.Context, id int64) (*entity.CaseView, error)
	ListCases(ctx context.Context, filter port.CaseFilter) ([]*entity.CaseView, error)
	UpdateStatus(ctx context.Context, id int64, status, actor string) (*entity.Case, error)
	AddNote(ctx context.Context, id int64, description, actor string) (*entity.InternalEvent, error)
	Timeline(ctx context.Context, id int64) ([]*entity.InternalEvent, error)
	PhaseHistory(ctx context.Context, id int64) ([]*entity.PhaseHistory, error)
}

// CreateCaseRequest holds the data of a new case
type CreateCaseRequest struct {
	ClientID          int64      `json:"client_id"`
	ProductID         int64      `json:"product_id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	ResponsibleUserID string     `json:"responsible_user_id"`
	EntryDate         *time.Time `json:"entry_date,omitempty"`
}

// StepOutcome reports one follow-up step of case creation
type StepOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CreateCaseResult is the stored case plus what happened after it was stored
type CreateCaseResult struct {
	Case  *entity.Case  `json:"case"`
	Phase *entity.Phase `json:"phase,omitempty"`
	Steps []StepOutcome `json:"steps"`
}

// Step returns the outcome with the given name
func (r *CreateCaseResult) Step(name string) (StepOutcome, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepOutcome{}, false
}

// CaseServiceDeps groups the collaborators of the case service.
// Folders, Notifier and Webhook are optional.
type CaseServiceDeps struct {
	Cases     port.CaseRepository
	Clients   port.ClientRepository
	Products  port.ProductRepository
	Events    port.EventRepository
	History   port.PhaseHistoryRepository
	Templates port.FolderTemplateRepository
	TxManager port.TransactionManager
	Engine    appwf.WorkflowEngine
	Folders   port.FolderProvisioner
	Notifier  port.CaseNotifier
	Webhook   port.CaseWebhook
	Logger    Logger

	// CaseLinkBase prefixes links to cases in notifications
	CaseLinkBase string
	Now          func() time.Time
}

type caseServiceImpl struct {
	deps CaseServiceDeps
	now  func() time.Time
}

// NewCaseService creates a new CaseService
func NewCaseService(deps CaseServiceDeps) CaseService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &caseServiceImpl{deps: deps, now: now}
}

// CreateCase stores a case and runs the follow-up steps in order.
// Only the insert can fail the call; later steps report their outcome.
func (s *caseServiceImpl) CreateCase(ctx context.Context, req CreateCaseRequest) (*CreateCaseResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Status == "" {
		req.Status = entity.CaseStatusActive
	}

	var problems []string
	if req.Title == "" {
		problems = append(problems, "title is required")
	}
	if req.ClientID == 0 {
		problems = append(problems, "client is required")
	}
	if req.ProductID == 0 {
		problems = append(problems, "product is required")
	}
	if !entity.IsValidCaseStatus(req.Status) {
		problems = append(problems, fmt.Sprintf("invalid status %q", req.Status))
	}
	if len(problems) > 0 {
		return nil, validationErr(problems...)
	}

	client, err := s.deps.Clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if client == nil {
		return nil, validationErr(fmt.Sprintf("client %d does not exist", req.ClientID))
	}
	product, err := s.deps.Products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, validationErr(fmt.Sprintf("product %d does not exist", req.ProductID))
	}

	now := s.now()
	c := &entity.Case{
		ClientID:          req.ClientID,
		ProductID:         req.ProductID,
		Title:             req.Title,
		ResponsibleUserID: req.ResponsibleUserID,
		EntryDate:         now,
		CreatedAt:         now,
	}
	if req.EntryDate != nil {
		c.EntryDate = *req.EntryDate
	}
	c.ApplyStatus(req.Status, now)

	if err := s.deps.Cases.Create(ctx, c); err != nil {
		err = fmt.Errorf("create case: %w", err)
		s.deps.Logger.Error("Failed to create case", "error", err, "title", req.Title)
		return nil, err
	}

	s.deps.Logger.Info("Case created", "case_id", c.ID, "client_id", c.ClientID, "product_id", c.ProductID)

	result := &CreateCaseResult{Case: c}
	result.Steps = append(result.Steps, s.enterInitialPhase(ctx, result))
	// the creation event follows the initial phase transition on the timeline
	if err := s.deps.Events.Append(ctx, &entity.InternalEvent{
		CaseID:      c.ID,
		Type:        entity.EventCaseCreated,
		Description: fmt.Sprintf("Caso criado com status '%s'.", entity.CaseStatusLabel(c.Status)),
		AuthorID:    req.ResponsibleUserID,
		CreatedAt:   s.now(),
	}); err != nil {
		s.deps.Logger.Error("Failed to record case creation", "case_id", c.ID, "error", err)
	}
	result.Steps = append(result.Steps, s.provisionFolders(ctx, c))
	notice := s.newCaseNotice(c, client.Name, product.Name)
	result.Steps = append(result.Steps, s.notify(ctx, notice))
	result.Steps = append(result.Steps, s.signalWebhook(ctx, notice))

	// reload so the phase and folder set by the steps are visible
	if stored, err := s.deps.Cases.GetByID(ctx, c.ID); err == nil && stored != nil {
		result.Case = stored
	}

	return result, nil
}

func (s *caseServiceImpl) enterInitialPhase(ctx context.Context, result *CreateCaseResult) StepOutcome {
	step := StepOutcome{Name: StepInitialPhase}
	if result.Case.Status != entity.CaseStatusActive {
		step.Status = StepSkipped
		return step
	}

	phase, err := s.deps.Engine.EnterInitialPhase(ctx, result.Case.ID)
	switch {
	case err != nil:
		s.deps.Logger.Error("Failed to enter initial phase", "case_id", result.Case.ID, "error", err)
		step.Status, step.Error = StepFailed, err.Error()
	case phase == nil:
		step.Status, step.Error = StepSkipped, domainwf.ErrConfigurationGap.Error()
	default:
		result.Phase = phase
		step.Status = StepOK
	}
	return step
}

func (s *caseServiceImpl) provisionFolders(ctx context.Context, c *entity.Case) StepOutcome {
	step := StepOutcome{Name: StepFolders}
	if s.deps.Folders == nil {
		step.Status = StepSkipped
		return step
	}

	fail := func(err error) StepOutcome {
		s.deps.Logger.Error("Failed to provision case folders", "case_id", c.ID, "error", err)
		step.Status, step.Error = StepFailed, err.Error()
		return step
	}

	tpl, err := s.deps.Templates.GetByClientProduct(ctx, c.ClientID, c.ProductID)
	if err != nil {
		return fail(err)
	}
	// no folder structure configured for the pair: nothing is created
	if tpl == nil || len(tpl.Folders) == 0 {
		step.Status = StepSkipped
		return step
	}

	folderID, err := s.deps.Folders.CreateCaseFolder(ctx, strconv.FormatInt(c.ID, 10))
	if err != nil {
		return fail(err)
	}
	for _, name := range tpl.Folders {
		if _, err := s.deps.Folders.CreateSubfolder(ctx, folderID, name); err != nil {
			return fail(fmt.Errorf("subfolder %q: %w", name, err))
		}
	}

	if err := s.deps.Cases.SetFolderID(ctx, c.ID, folderID); err != nil {
		return fail(err)
	}
	c.FolderID = folderID

	step.Status = StepOK
	return step
}

func (s *caseServiceImpl) newCaseNotice(c *entity.Case, clientName, productName string) port.NewCaseNotice {
	notice := port.NewCaseNotice{
		Case:        c,
		ClientName:  clientName,
		ProductName: productName,
		Subject:     fmt.Sprintf("Novo Caso Criado no Sistema: #%d - %s", c.ID, c.Title),
	}
	if s.deps.CaseLinkBase != "" {
		notice.Link = fmt.Sprintf("%s/%d", strings.TrimRight(s.deps.CaseLinkBase, "/"), c.ID)
	}
	return notice
}

func (s *caseServiceImpl) notify(ctx context.Context, notice port.NewCaseNotice) StepOutcome {
	step := StepOutcome{Name: StepNotification}
	if s.deps.Notifier == nil {
		step.Status = StepSkipped
		return step
	}

	if err := s.deps.Notifier.NotifyNewCase(ctx, notice); err != nil {
		s.deps.Logger.Error("Failed to send new case notification", "case_id", notice.Case.ID, "error", err)
		step.Status, step.Error = StepFailed, err.Error()
		return step
	}

	step.Status = StepOK
	return step
}

func (s *caseServiceImpl) signalWebhook(ctx context.Context, notice port.NewCaseNotice) StepOutcome {
	step := StepOutcome{Name: StepWebhook}
	if s.deps.Webhook == nil {
		step.Status = StepSkipped
		return step
	}

	if err := s.deps.Webhook.SendNewCase(ctx, notice); err != nil {
		s.deps.Logger.Error("Failed to signal case webhook", "case_id", notice.Case.ID, "error", err)
		step.Status, step.Error = StepFailed, err.Error()
		return step
	}

	step.Status = StepOK
	return step
}

// GetCase retrieves a case with client, product and phase names
func (s *caseServiceImpl) GetCase(ctx context.Context, id int64) (*entity.CaseView, error) {
	view, err := s.deps.Cases.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("%w: case %d", domainwf.ErrNotFound, id)
	}
	return view, nil
}

// ListCases returns cases matching the filter
func (s *caseServiceImpl) ListCases(ctx context.Context, filter port.CaseFilter) ([]*entity.CaseView, error) {
	if filter.Status != "" && !entity.IsValidCaseStatus(filter.Status) {
		return nil, validationErr(fmt.Sprintf("invalid status %q", filter.Status))
	}
	cases, err := s.deps.Cases.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if cases == nil {
		cases = []*entity.CaseView{}
	}
	return cases, nil
}

// UpdateStatus changes the status of a case and records it on the timeline
func (s *caseServiceImpl) UpdateStatus(ctx context.Context, id int64, status, actor string) (*entity.Case, error) {
	if !entity.IsValidCaseStatus(status) {
		return nil, validationErr(fmt.Sprintf("invalid status %q", status))
	}

	c, err := s.loadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}

	previous := c.Status
	now := s.now()
	c.ApplyStatus(status, now)

	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Cases.UpdateStatus(txCtx, c.ID, c.Status, c.ClosedAt); err != nil {
			return err
		}
		return s.deps.Events.Append(txCtx, &entity.InternalEvent{
			CaseID:      c.ID,
			Type:        entity.EventProgress,
			Description: fmt.Sprintf("Status do caso alterado de '%s' para '%s'.", previous, status),
			AuthorID:    actor,
			CreatedAt:   now,
		})
	})
	if err != nil {
		s.deps.Logger.Error("Failed to update case status", "case_id", id, "error", err)
		return nil, err
	}

	s.deps.Logger.Info("Case status updated", "case_id", id, "from", previous, "to", status)
	return c, nil
}

// AddNote appends a progress note to the case timeline
func (s *caseServiceImpl) AddNote(ctx context.Context, id int64, description, actor string) (*entity.InternalEvent, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, validationErr("description is required")
	}
	if _, err := s.loadCase(ctx, id); err != nil {
		return nil, err
	}

	event := &entity.InternalEvent{
		CaseID:      id,
		Type:        entity.EventProgress,
		Description: description,
		AuthorID:    actor,
		CreatedAt:   s.now(),
	}
	if err := s.deps.Events.Append(ctx, event); err != nil {
		s.deps.Logger.Error("Failed to add note", "case_id", id, "error", err)
		return nil, err
	}
	return event, nil
}

// Timeline returns the internal events of a case, newest first
func (s *caseServiceImpl) Timeline(ctx context.Context, id int64) ([]*entity.InternalEvent, error) {
	if _, err := s.loadCase(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.deps.Events.ListByCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*entity.InternalEvent{}
	}
	return events, nil
}

// PhaseHistory returns the phase stays of a case, oldest first
func (s *caseServiceImpl) PhaseHistory(ctx context.Context, id int64) ([]*entity.PhaseHistory, error) {
	if _, err := s.loadCase(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.deps.History.ListByCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*entity.PhaseHistory{}
	}
	return history, nil
}

func (s *caseServiceImpl) loadCase(ctx context.Context, id int64) (*entity.Case, error) {
	c, err := s.deps.Cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: case %d", domainwf.ErrNotFound, id)
	}
	return c, nil
}

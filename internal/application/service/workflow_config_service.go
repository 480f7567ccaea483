package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/case-workflow/internal/application/port"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

const copySuffix = " (Cópia)"

// WorkflowDefinition is the editable form of a workflow. Destinations point
// at phases by their index in Phases.
type WorkflowDefinition struct {
	ID        int64             `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string            `json:"name" yaml:"name"`
	ClientID  int64             `json:"client_id" yaml:"client_id"`
	ProductID int64             `json:"product_id" yaml:"product_id"`
	Folders   []string          `json:"folders,omitempty" yaml:"folders,omitempty"`
	Phases    []PhaseDefinition `json:"phases" yaml:"phases"`
}

// PhaseDefinition is one phase of a definition; order follows its position
type PhaseDefinition struct {
	ID      int64              `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string             `json:"name" yaml:"name"`
	Actions []ActionDefinition `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ActionDefinition is one action of a phase with its outgoing transitions
type ActionDefinition struct {
	ID                 int64          `json:"id,omitempty" yaml:"id,omitempty"`
	Title              string         `json:"title" yaml:"title"`
	Type               string         `json:"type" yaml:"type"`
	DeadlineDays       int            `json:"deadline_days,omitempty" yaml:"deadline_days,omitempty"`
	WaitDays           int            `json:"wait_days,omitempty" yaml:"wait_days,omitempty"`
	DefaultAssigneeID  string         `json:"default_assignee_id,omitempty" yaml:"default_assignee_id,omitempty"`
	SetCaseStatus      string         `json:"set_case_status,omitempty" yaml:"set_case_status,omitempty"`
	Options            []string       `json:"options,omitempty" yaml:"options,omitempty"`
	DefaultDestination *int           `json:"default_destination,omitempty" yaml:"default_destination,omitempty"`
	DestinationYes     *int           `json:"destination_yes,omitempty" yaml:"destination_yes,omitempty"`
	DestinationNo      *int           `json:"destination_no,omitempty" yaml:"destination_no,omitempty"`
	Destinations       map[string]int `json:"destinations,omitempty" yaml:"destinations,omitempty"`
}

// WorkflowSummary is a workflow listing entry
type WorkflowSummary struct {
	entity.Workflow
	PhaseCount int `json:"phase_count"`
	CaseCount  int `json:"case_count"`
}

// WorkflowConfigService administers workflow definitions
type WorkflowConfigService interface {
	SaveWorkflow(ctx context.Context, def WorkflowDefinition) (int64, error)
	GetWorkflow(ctx context.Context, id int64) (*WorkflowDefinition, error)
	ListWorkflows(ctx context.Context) ([]WorkflowSummary, error)
	DeleteWorkflow(ctx context.Context, id int64) error
	DuplicateWorkflow(ctx context.Context, id, clientID, productID int64) (int64, error)
}

type workflowConfigServiceImpl struct {
	workflows port.WorkflowRepository
	cases     port.CaseRepository
	templates port.FolderTemplateRepository
	txManager port.TransactionManager
	engine    appwf.WorkflowEngine
	logger    Logger
}

// NewWorkflowConfigService creates a new WorkflowConfigService
func NewWorkflowConfigService(
	workflows port.WorkflowRepository,
	cases port.CaseRepository,
	templates port.FolderTemplateRepository,
	txManager port.TransactionManager,
	engine appwf.WorkflowEngine,
	logger Logger,
) WorkflowConfigService {
	return &workflowConfigServiceImpl{
		workflows: workflows,
		cases:     cases,
		templates: templates,
		txManager: txManager,
		engine:    engine,
		logger:    logger,
	}
}

// condition/destination pairs of an action definition
type route struct {
	condition string
	dest      int
}

func (a ActionDefinition) routes() []route {
	var routes []route
	switch a.Type {
	case entity.ActionTypeDecision:
		if a.DestinationYes != nil {
			routes = append(routes, route{entity.ConditionYes, *a.DestinationYes})
		}
		if a.DestinationNo != nil {
			routes = append(routes, route{entity.ConditionNo, *a.DestinationNo})
		}
	case entity.ActionTypeChoice:
		// options order keeps the result stable
		for _, opt := range a.Options {
			if dest, ok := a.Destinations[opt]; ok {
				routes = append(routes, route{opt, dest})
			}
		}
		for cond, dest := range a.Destinations {
			if !containsString(a.Options, cond) {
				routes = append(routes, route{cond, dest})
			}
		}
	default:
		if a.DefaultDestination != nil {
			routes = append(routes, route{entity.ConditionAlways, *a.DefaultDestination})
		}
	}
	return routes
}

// validate checks the definition shape and runs it through the domain builder
// using positional ids, before anything touches storage.
func (def *WorkflowDefinition) validate() error {
	var problems []string
	if strings.TrimSpace(def.Name) == "" {
		problems = append(problems, "name is required")
	}
	if def.ClientID == 0 {
		problems = append(problems, "client is required")
	}
	if def.ProductID == 0 {
		problems = append(problems, "product is required")
	}
	if len(def.Phases) == 0 {
		problems = append(problems, "at least one phase is required")
	}
	for i, p := range def.Phases {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("phase %d: name is required", i+1))
		}
		for j, a := range p.Actions {
			if strings.TrimSpace(a.Title) == "" {
				problems = append(problems, fmt.Sprintf("phase %d action %d: title is required", i+1, j+1))
			}
			if a.SetCaseStatus != "" && !entity.IsValidCaseStatus(a.SetCaseStatus) {
				problems = append(problems, fmt.Sprintf("phase %d action %d: invalid status %q", i+1, j+1, a.SetCaseStatus))
			}
			if a.DeadlineDays < 0 || a.WaitDays < 0 {
				problems = append(problems, fmt.Sprintf("phase %d action %d: days cannot be negative", i+1, j+1))
			}
		}
	}
	if len(problems) > 0 {
		return validationErr(problems...)
	}

	builder := domainwf.NewBuilder(0)
	for i := range def.Phases {
		builder.Phase(int64(i+1), i+1)
	}
	var actionID int64
	for i, p := range def.Phases {
		for _, a := range p.Actions {
			actionID++
			cfg := builder.Action(actionID, int64(i+1), a.Type, a.Options...)
			for _, r := range a.routes() {
				cfg.Permit(r.condition, int64(r.dest+1))
			}
		}
	}
	_, err := builder.Build()
	return err
}

// SaveWorkflow creates or updates a workflow from its definition
func (s *workflowConfigServiceImpl) SaveWorkflow(ctx context.Context, def WorkflowDefinition) (int64, error) {
	def.Name = strings.TrimSpace(def.Name)
	if err := def.validate(); err != nil {
		return 0, err
	}

	taken, err := s.workflows.GetByClientProduct(ctx, def.ClientID, def.ProductID)
	if err != nil {
		return 0, err
	}
	if taken != nil && taken.ID != def.ID {
		return 0, validationErr(fmt.Sprintf("client %d and product %d already have workflow %d", def.ClientID, def.ProductID, taken.ID))
	}

	var workflowID int64
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		wf, err := s.saveWorkflowRow(txCtx, def)
		if err != nil {
			return err
		}
		workflowID = wf.ID

		phaseIDs, removed, err := s.savePhases(txCtx, wf.ID, def.Phases)
		if err != nil {
			return err
		}

		transitions, err := s.saveActions(txCtx, wf.ID, def.Phases, phaseIDs)
		if err != nil {
			return err
		}

		// kept actions have moved off removed phases by now
		for _, id := range removed {
			if err := s.workflows.DeletePhase(txCtx, id); err != nil {
				return err
			}
		}

		if err := s.workflows.ReplaceTransitions(txCtx, wf.ID, transitions); err != nil {
			return err
		}

		if def.Folders != nil {
			return s.templates.Save(txCtx, &entity.FolderTemplate{
				ClientID:  def.ClientID,
				ProductID: def.ProductID,
				Folders:   def.Folders,
			})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save workflow", "error", err, "name", def.Name)
		return 0, err
	}

	s.engine.Invalidate(workflowID)
	s.logger.Info("Workflow saved", "workflow_id", workflowID, "phases", len(def.Phases))
	return workflowID, nil
}

func (s *workflowConfigServiceImpl) saveWorkflowRow(ctx context.Context, def WorkflowDefinition) (*entity.Workflow, error) {
	if def.ID == 0 {
		wf := &entity.Workflow{Name: def.Name, ClientID: def.ClientID, ProductID: def.ProductID}
		if err := s.workflows.Create(ctx, wf); err != nil {
			return nil, err
		}
		return wf, nil
	}

	wf, err := s.workflows.GetByID(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", domainwf.ErrNotFound, def.ID)
	}
	wf.Name, wf.ClientID, wf.ProductID = def.Name, def.ClientID, def.ProductID
	if err := s.workflows.Update(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// savePhases writes the phases in definition order. It returns their ids by
// index and the ids of stored phases missing from the definition.
func (s *workflowConfigServiceImpl) savePhases(ctx context.Context, workflowID int64, defs []PhaseDefinition) ([]int64, []int64, error) {
	existing, err := s.workflows.ListPhases(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[int64]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}

	kept := make(map[int64]bool, len(defs))
	for i, d := range defs {
		if d.ID == 0 {
			continue
		}
		if !known[d.ID] {
			return nil, nil, validationErr(fmt.Sprintf("phase %d: id %d is not part of workflow %d", i+1, d.ID, workflowID))
		}
		kept[d.ID] = true
	}

	var removed []int64
	for _, p := range existing {
		if kept[p.ID] {
			continue
		}
		n, err := s.cases.CountByPhase(ctx, p.ID)
		if err != nil {
			return nil, nil, err
		}
		if n > 0 {
			return nil, nil, fmt.Errorf("%w: phase '%s' holds %d case(s)", ErrPhaseInUse, p.Name, n)
		}
		n, err = s.workflows.CountPhaseHistory(ctx, p.ID)
		if err != nil {
			return nil, nil, err
		}
		if n > 0 {
			return nil, nil, fmt.Errorf("%w: phase '%s' appears in %d history record(s)", ErrPhaseInUse, p.Name, n)
		}
		removed = append(removed, p.ID)
	}

	if err := s.workflows.ParkPhaseOrders(ctx, workflowID); err != nil {
		return nil, nil, err
	}

	ids := make([]int64, len(defs))
	for i, d := range defs {
		phase := &entity.Phase{
			ID:         d.ID,
			WorkflowID: workflowID,
			Name:       strings.TrimSpace(d.Name),
			Order:      i + 1,
			IsFinal:    i == len(defs)-1,
		}
		if err := s.workflows.SavePhase(ctx, phase); err != nil {
			return nil, nil, err
		}
		ids[i] = phase.ID
	}
	return ids, removed, nil
}

// saveActions writes the actions of every phase and returns the transitions to store
func (s *workflowConfigServiceImpl) saveActions(ctx context.Context, workflowID int64, defs []PhaseDefinition, phaseIDs []int64) ([]*entity.Transition, error) {
	existing, err := s.workflows.ListActionsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	known := make(map[int64]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}

	kept := make(map[int64]bool)
	for _, p := range defs {
		for _, a := range p.Actions {
			if a.ID == 0 {
				continue
			}
			if !known[a.ID] {
				return nil, validationErr(fmt.Sprintf("action %d is not part of workflow %d", a.ID, workflowID))
			}
			kept[a.ID] = true
		}
	}
	for _, a := range existing {
		if kept[a.ID] {
			continue
		}
		n, err := s.workflows.CountActionInstances(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: action '%s' has %d instance(s)", ErrActionInUse, a.Title, n)
		}
		if err := s.workflows.DeleteAction(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	var transitions []*entity.Transition
	for i, p := range defs {
		for _, d := range p.Actions {
			action := &entity.Action{
				ID:                d.ID,
				PhaseID:           phaseIDs[i],
				Title:             strings.TrimSpace(d.Title),
				Type:              d.Type,
				DeadlineDays:      d.DeadlineDays,
				WaitDays:          d.WaitDays,
				DefaultAssigneeID: d.DefaultAssigneeID,
				SetCaseStatus:     d.SetCaseStatus,
			}
			if d.Type == entity.ActionTypeChoice {
				action.Options = d.Options
			}
			if err := s.workflows.SaveAction(ctx, action); err != nil {
				return nil, err
			}

			for _, r := range d.routes() {
				transitions = append(transitions, &entity.Transition{
					WorkflowID:         workflowID,
					SourcePhaseID:      phaseIDs[i],
					ActionID:           action.ID,
					Condition:          r.condition,
					DestinationPhaseID: phaseIDs[r.dest],
				})
			}
		}
	}
	return transitions, nil
}

// GetWorkflow returns the definition of a stored workflow
func (s *workflowConfigServiceImpl) GetWorkflow(ctx context.Context, id int64) (*WorkflowDefinition, error) {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow %d", domainwf.ErrNotFound, id)
	}

	phases, err := s.workflows.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	transitions, err := s.workflows.ListTransitions(ctx, id)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(phases))
	for i, p := range phases {
		index[p.ID] = i
	}
	byAction := make(map[int64][]*entity.Transition)
	for _, t := range transitions {
		byAction[t.ActionID] = append(byAction[t.ActionID], t)
	}

	def := &WorkflowDefinition{
		ID:        wf.ID,
		Name:      wf.Name,
		ClientID:  wf.ClientID,
		ProductID: wf.ProductID,
		Phases:    make([]PhaseDefinition, 0, len(phases)),
	}

	for _, p := range phases {
		actions, err := s.workflows.ListActions(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		pd := PhaseDefinition{ID: p.ID, Name: p.Name}
		for _, a := range actions {
			ad := ActionDefinition{
				ID:                a.ID,
				Title:             a.Title,
				Type:              a.Type,
				DeadlineDays:      a.DeadlineDays,
				WaitDays:          a.WaitDays,
				DefaultAssigneeID: a.DefaultAssigneeID,
				SetCaseStatus:     a.SetCaseStatus,
				Options:           a.Options,
			}
			for _, t := range byAction[a.ID] {
				dest, ok := index[t.DestinationPhaseID]
				if !ok {
					continue
				}
				switch {
				case a.Type == entity.ActionTypeChoice:
					if ad.Destinations == nil {
						ad.Destinations = make(map[string]int)
					}
					ad.Destinations[t.Condition] = dest
				case t.Condition == entity.ConditionYes:
					ad.DestinationYes = intPtr(dest)
				case t.Condition == entity.ConditionNo:
					ad.DestinationNo = intPtr(dest)
				default:
					ad.DefaultDestination = intPtr(dest)
				}
			}
			pd.Actions = append(pd.Actions, ad)
		}
		def.Phases = append(def.Phases, pd)
	}

	tpl, err := s.templates.GetByClientProduct(ctx, wf.ClientID, wf.ProductID)
	if err != nil {
		return nil, err
	}
	if tpl != nil {
		def.Folders = tpl.Folders
	}

	return def, nil
}

// ListWorkflows returns every workflow with its phase and case counts
func (s *workflowConfigServiceImpl) ListWorkflows(ctx context.Context) ([]WorkflowSummary, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		phases, err := s.workflows.ListPhases(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		count, err := s.cases.CountByWorkflow(ctx, wf.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, WorkflowSummary{Workflow: *wf, PhaseCount: len(phases), CaseCount: count})
	}
	return summaries, nil
}

// DeleteWorkflow removes a workflow that no case sits on or has passed through
func (s *workflowConfigServiceImpl) DeleteWorkflow(ctx context.Context, id int64) error {
	wf, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("%w: workflow %d", domainwf.ErrNotFound, id)
	}

	count, err := s.cases.CountByWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: '%s' holds %d case(s)", ErrWorkflowInUse, wf.Name, count)
	}

	records, err := s.workflows.CountWorkflowRecords(ctx, id)
	if err != nil {
		return err
	}
	if records > 0 {
		return fmt.Errorf("%w: '%s' is referenced by %d case record(s)", ErrWorkflowInUse, wf.Name, records)
	}

	if err := s.workflows.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete workflow", "workflow_id", id, "error", err)
		return err
	}

	s.engine.Invalidate(id)
	s.logger.Info("Workflow deleted", "workflow_id", id)
	return nil
}

// DuplicateWorkflow copies a workflow to another client/product pair
func (s *workflowConfigServiceImpl) DuplicateWorkflow(ctx context.Context, id, clientID, productID int64) (int64, error) {
	def, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return 0, err
	}

	def.ID = 0
	def.Name += copySuffix
	def.ClientID = clientID
	def.ProductID = productID
	for i := range def.Phases {
		def.Phases[i].ID = 0
		for j := range def.Phases[i].Actions {
			def.Phases[i].Actions[j].ID = 0
		}
	}

	return s.SaveWorkflow(ctx, *def)
}

func intPtr(v int) *int {
	return &v
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

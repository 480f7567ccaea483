package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/case-workflow/internal/application/service"
	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// workflowFile is the YAML layout of a workflow. Clients, products and
// destination phases are referenced by name.
type workflowFile struct {
	Name    string      `yaml:"name" validate:"required"`
	Client  string      `yaml:"client" validate:"required"`
	Product string      `yaml:"product" validate:"required"`
	Folders []string    `yaml:"folders,omitempty" validate:"dive,required"`
	Phases  []phaseFile `yaml:"phases" validate:"required,min=1,dive"`
}

type phaseFile struct {
	Name    string       `yaml:"name" validate:"required"`
	Actions []actionFile `yaml:"actions,omitempty" validate:"dive"`
}

type actionFile struct {
	Title        string            `yaml:"title" validate:"required"`
	Type         string            `yaml:"type" validate:"required,oneof=SIMPLES DECISAO_SN AGUARDAR_DIAS ESCOLHA"`
	DeadlineDays int               `yaml:"deadline_days,omitempty" validate:"gte=0"`
	WaitDays     int               `yaml:"wait_days,omitempty" validate:"gte=0"`
	Assignee     string            `yaml:"assignee,omitempty"`
	SetStatus    string            `yaml:"set_status,omitempty" validate:"omitempty,oneof=ATIVO ENCERRADO"`
	Options      []string          `yaml:"options,omitempty" validate:"dive,required"`
	Next         string            `yaml:"next,omitempty"`
	Yes          string            `yaml:"yes,omitempty"`
	No           string            `yaml:"no,omitempty"`
	Routes       map[string]string `yaml:"routes,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// readWorkflowFile decodes and validates a workflow file
func readWorkflowFile(path string) (*workflowFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow file: %w", err)
	}
	defer f.Close()

	return decodeWorkflow(f)
}

func decodeWorkflow(r io.Reader) (*workflowFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var wf workflowFile
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}

	if err := validate.Struct(&wf); err != nil {
		return nil, describeValidation(err)
	}
	if err := wf.checkReferences(); err != nil {
		return nil, err
	}
	return &wf, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid workflow file: %s", strings.Join(problems, "; "))
}

// checkReferences verifies phase names are unique and every destination exists
func (wf *workflowFile) checkReferences() error {
	seen := make(map[string]bool, len(wf.Phases))
	for _, p := range wf.Phases {
		if seen[p.Name] {
			return fmt.Errorf("duplicate phase %q", p.Name)
		}
		seen[p.Name] = true
	}

	var errs []error
	for _, p := range wf.Phases {
		for _, a := range p.Actions {
			for _, dest := range a.destinations() {
				if !seen[dest] {
					errs = append(errs, fmt.Errorf("phase %q action %q: unknown destination %q", p.Name, a.Title, dest))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (a actionFile) destinations() []string {
	var out []string
	for _, d := range []string{a.Next, a.Yes, a.No} {
		if d != "" {
			out = append(out, d)
		}
	}
	for _, d := range a.Routes {
		out = append(out, d)
	}
	return out
}

// toDefinition converts the file into a definition for the given client/product
func (wf *workflowFile) toDefinition(clientID, productID int64) service.WorkflowDefinition {
	index := make(map[string]int, len(wf.Phases))
	for i, p := range wf.Phases {
		index[p.Name] = i
	}
	ref := func(name string) *int {
		if name == "" {
			return nil
		}
		i := index[name]
		return &i
	}

	def := service.WorkflowDefinition{
		Name:      wf.Name,
		ClientID:  clientID,
		ProductID: productID,
		Folders:   wf.Folders,
		Phases:    make([]service.PhaseDefinition, 0, len(wf.Phases)),
	}

	for _, p := range wf.Phases {
		pd := service.PhaseDefinition{Name: p.Name}
		for _, a := range p.Actions {
			ad := service.ActionDefinition{
				Title:              a.Title,
				Type:               a.Type,
				DeadlineDays:       a.DeadlineDays,
				WaitDays:           a.WaitDays,
				DefaultAssigneeID:  a.Assignee,
				SetCaseStatus:      a.SetStatus,
				Options:            a.Options,
				DefaultDestination: ref(a.Next),
				DestinationYes:     ref(a.Yes),
				DestinationNo:      ref(a.No),
			}
			if len(a.Routes) > 0 {
				ad.Destinations = make(map[string]int, len(a.Routes))
				for cond, dest := range a.Routes {
					ad.Destinations[cond] = index[dest]
				}
			}
			pd.Actions = append(pd.Actions, ad)
		}
		def.Phases = append(def.Phases, pd)
	}
	return def
}

// fromDefinition renders a stored definition back into the file layout
func fromDefinition(def *service.WorkflowDefinition, client, product string) *workflowFile {
	name := func(i *int) string {
		if i == nil || *i < 0 || *i >= len(def.Phases) {
			return ""
		}
		return def.Phases[*i].Name
	}

	wf := &workflowFile{
		Name:    def.Name,
		Client:  client,
		Product: product,
		Folders: def.Folders,
	}
	for _, p := range def.Phases {
		pf := phaseFile{Name: p.Name}
		for _, a := range p.Actions {
			af := actionFile{
				Title:        a.Title,
				Type:         a.Type,
				DeadlineDays: a.DeadlineDays,
				WaitDays:     a.WaitDays,
				Assignee:     a.DefaultAssigneeID,
				SetStatus:    a.SetCaseStatus,
				Options:      a.Options,
				Next:         name(a.DefaultDestination),
				Yes:          name(a.DestinationYes),
				No:           name(a.DestinationNo),
			}
			if len(a.Destinations) > 0 {
				af.Routes = make(map[string]string, len(a.Destinations))
				for cond, dest := range a.Destinations {
					d := dest
					af.Routes[cond] = name(&d)
				}
			}
			pf.Actions = append(pf.Actions, af)
		}
		wf.Phases = append(wf.Phases, pf)
	}
	return wf
}

// mergeExisting carries the ids of an existing workflow over to def, matching
// phases by name and actions by title within their phase, so a re-import
// updates rows in place instead of replacing them.
func mergeExisting(def *service.WorkflowDefinition, existing *service.WorkflowDefinition) {
	def.ID = existing.ID

	phases := make(map[string]service.PhaseDefinition, len(existing.Phases))
	for _, p := range existing.Phases {
		phases[p.Name] = p
	}

	for i := range def.Phases {
		old, ok := phases[def.Phases[i].Name]
		if !ok {
			continue
		}
		def.Phases[i].ID = old.ID

		actions := make(map[string]int64, len(old.Actions))
		for _, a := range old.Actions {
			actions[a.Title] = a.ID
		}
		for j := range def.Phases[i].Actions {
			def.Phases[i].Actions[j].ID = actions[def.Phases[i].Actions[j].Title]
		}
	}
}

func encodeWorkflow(wf *workflowFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookupClient finds a client id by case-insensitive name; 0 when absent
func lookupClient(clients []*entity.Client, name string) int64 {
	for _, c := range clients {
		if strings.EqualFold(c.Name, name) {
			return c.ID
		}
	}
	return 0
}

func lookupProduct(products []*entity.Product, name string) int64 {
	for _, p := range products {
		if strings.EqualFold(p.Name, name) {
			return p.ID
		}
	}
	return 0
}

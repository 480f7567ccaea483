package workflow

import (
	"errors"
	"fmt"
	"sort"
)

// Builder assembles the configuration graph of one workflow.
// Problems are collected and reported together by Build.
type Builder interface {
	// Phase registers a phase of the workflow with its order
	Phase(id int64, order int) Builder

	// Action registers an action on a phase and returns its configuration
	Action(id, phaseID int64, actionType string, options ...string) ActionConfiguration

	// Build validates the configuration and returns an immutable graph
	Build() (*Graph, error)
}

// ActionConfiguration configures the transitions of a single action
type ActionConfiguration interface {
	// Permit routes the given resolution of the action to a destination phase
	Permit(condition string, destinationPhaseID int64) ActionConfiguration
}

type actionSpec struct {
	id         int64
	phaseID    int64
	conditions map[string]struct{}
	rules      map[string]int64
	order      []string
}

type builder struct {
	workflowID int64
	phases     map[int64]int
	actions    map[int64]*actionSpec
	actionIDs  []int64
	errs       []error
}

type actionConfig struct {
	builder *builder
	spec    *actionSpec
}

// NewBuilder creates a builder for the given workflow
func NewBuilder(workflowID int64) Builder {
	return &builder{
		workflowID: workflowID,
		phases:     make(map[int64]int),
		actions:    make(map[int64]*actionSpec),
	}
}

func (b *builder) Phase(id int64, order int) Builder {
	b.phases[id] = order
	return b
}

func (b *builder) Action(id, phaseID int64, actionType string, options ...string) ActionConfiguration {
	spec := &actionSpec{
		id:         id,
		phaseID:    phaseID,
		conditions: make(map[string]struct{}),
		rules:      make(map[string]int64),
	}

	conditions, err := RegisteredConditions(actionType, options)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("action %d: %w", id, err))
	}
	for _, c := range conditions {
		spec.conditions[c] = struct{}{}
	}

	if _, exists := b.actions[id]; !exists {
		b.actionIDs = append(b.actionIDs, id)
	}
	b.actions[id] = spec

	return &actionConfig{builder: b, spec: spec}
}

func (c *actionConfig) Permit(condition string, destinationPhaseID int64) ActionConfiguration {
	if _, ok := c.spec.conditions[condition]; !ok {
		c.builder.errs = append(c.builder.errs,
			fmt.Errorf("action %d, condition %q: %w", c.spec.id, condition, ErrUnregisteredCondition))
		return c
	}
	if _, dup := c.spec.rules[condition]; dup {
		c.builder.errs = append(c.builder.errs,
			fmt.Errorf("action %d, condition %q: %w", c.spec.id, condition, ErrDuplicateCondition))
		return c
	}

	c.spec.rules[condition] = destinationPhaseID
	c.spec.order = append(c.spec.order, condition)
	return c
}

func (b *builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)

	byOrder := make(map[int]int64, len(b.phases))
	for id, order := range b.phases {
		if other, dup := byOrder[order]; dup {
			errs = append(errs, fmt.Errorf("phases %d and %d share order %d: %w", min(id, other), max(id, other), order, ErrDuplicateOrder))
			continue
		}
		byOrder[order] = id
	}

	for _, id := range b.actionIDs {
		spec := b.actions[id]
		if _, ok := b.phases[spec.phaseID]; !ok {
			errs = append(errs, fmt.Errorf("action %d on phase %d: %w", id, spec.phaseID, ErrUnknownPhase))
		}
		for _, cond := range spec.order {
			dest := spec.rules[cond]
			if _, ok := b.phases[dest]; !ok {
				errs = append(errs, fmt.Errorf("action %d, condition %q to phase %d of workflow %d: %w",
					id, cond, dest, b.workflowID, ErrForeignPhase))
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
	}

	g := &Graph{
		workflowID: b.workflowID,
		orders:     make(map[int64]int, len(b.phases)),
		actions:    make(map[int64]graphAction, len(b.actions)),
	}
	for id, order := range b.phases {
		g.orders[id] = order
		g.phases = append(g.phases, id)
	}
	sort.Slice(g.phases, func(i, j int) bool {
		return g.orders[g.phases[i]] < g.orders[g.phases[j]]
	})

	for id, spec := range b.actions {
		ga := graphAction{
			phaseID:    spec.phaseID,
			conditions: make([]string, 0, len(spec.conditions)),
			rules:      make(map[string]int64, len(spec.rules)),
		}
		for c := range spec.conditions {
			ga.conditions = append(ga.conditions, c)
		}
		sort.Strings(ga.conditions)
		for c, dest := range spec.rules {
			ga.rules[c] = dest
		}
		g.actions[id] = ga
	}

	return g, nil
}

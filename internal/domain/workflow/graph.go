package workflow

// Graph is the validated, read-only phase graph of one workflow
type Graph struct {
	workflowID int64
	phases     []int64
	orders     map[int64]int
	actions    map[int64]graphAction
}

type graphAction struct {
	phaseID    int64
	conditions []string
	rules      map[string]int64
}

// WorkflowID returns the workflow the graph was built for
func (g *Graph) WorkflowID() int64 {
	return g.workflowID
}

// InitialPhase returns the phase with the lowest order
func (g *Graph) InitialPhase() (int64, bool) {
	if len(g.phases) == 0 {
		return 0, false
	}
	return g.phases[0], true
}

// Phases returns the phase ids sorted by order
func (g *Graph) Phases() []int64 {
	return append([]int64(nil), g.phases...)
}

// Contains reports whether the phase belongs to this workflow
func (g *Graph) Contains(phaseID int64) bool {
	_, ok := g.orders[phaseID]
	return ok
}

// Next resolves the destination phase for an action resolved with response.
// Matching is exact and case-sensitive.
func (g *Graph) Next(actionID int64, response string) (int64, bool) {
	a, ok := g.actions[actionID]
	if !ok {
		return 0, false
	}
	dest, ok := a.rules[response]
	return dest, ok
}

// Conditions returns the registered conditions of an action
func (g *Graph) Conditions(actionID int64) []string {
	a, ok := g.actions[actionID]
	if !ok {
		return nil
	}
	return append([]string(nil), a.conditions...)
}

package workflow

import "errors"

var (
	// ErrNotFound is returned when a case, phase or pending action instance does not exist
	ErrNotFound = errors.New("not found")

	// ErrConfigurationGap is returned when no workflow, phase or transition is configured for a lookup
	ErrConfigurationGap = errors.New("workflow configuration gap")

	// ErrPersistence wraps any storage failure during a transition or action execution
	ErrPersistence = errors.New("persistence failure")

	// ErrForeignPhase is returned when a phase does not belong to the expected workflow
	ErrForeignPhase = errors.New("phase belongs to another workflow")

	// ErrUnregisteredCondition is returned when a transition condition is not registered for its action
	ErrUnregisteredCondition = errors.New("condition not registered for action")

	// ErrDuplicateCondition is returned when an action maps the same condition twice
	ErrDuplicateCondition = errors.New("duplicate condition for action")

	// ErrDuplicateOrder is returned when two phases share an order
	ErrDuplicateOrder = errors.New("duplicate phase order")

	// ErrUnknownPhase is returned when an action or transition references an unconfigured phase
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrInvalidActionType is returned for action types the engine does not know
	ErrInvalidActionType = errors.New("invalid action type")

	// ErrInvalidDefinition is returned when a workflow definition fails validation
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when a request is incomplete or inconsistent
	ErrValidation = errors.New("validation failed")

	// ErrWorkflowInUse is returned when deleting a workflow that holds cases
	// or that case history still points at
	ErrWorkflowInUse = errors.New("workflow is in use by cases")

	// ErrPhaseInUse is returned when removing a phase that holds cases or
	// appears in a case's phase history
	ErrPhaseInUse = errors.New("phase is in use by cases")

	// ErrActionInUse is returned when removing an action that has instances
	ErrActionInUse = errors.New("action is in use by cases")
)

func validationErr(problems ...string) error {
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}

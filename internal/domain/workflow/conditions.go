package workflow

import (
	"fmt"

	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// IsValidActionType reports whether t is a known action type.
func IsValidActionType(t string) bool {
	switch t {
	case entity.ActionTypeSimple, entity.ActionTypeDecision, entity.ActionTypeWait, entity.ActionTypeChoice:
		return true
	}
	return false
}

// RegisteredConditions returns the responses an action of the given type can
// be resolved with. Choice actions register their own options.
func RegisteredConditions(actionType string, options []string) ([]string, error) {
	switch actionType {
	case entity.ActionTypeSimple, entity.ActionTypeWait:
		return []string{entity.ConditionAlways}, nil
	case entity.ActionTypeDecision:
		return []string{entity.ConditionYes, entity.ConditionNo}, nil
	case entity.ActionTypeChoice:
		if len(options) == 0 {
			return nil, fmt.Errorf("%w: choice action needs at least one option", ErrInvalidDefinition)
		}
		seen := make(map[string]struct{}, len(options))
		for _, opt := range options {
			if opt == "" {
				return nil, fmt.Errorf("%w: empty option", ErrInvalidDefinition)
			}
			if _, dup := seen[opt]; dup {
				return nil, fmt.Errorf("%w: option %q repeated", ErrInvalidDefinition, opt)
			}
			seen[opt] = struct{}{}
		}
		return append([]string(nil), options...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidActionType, actionType)
	}
}

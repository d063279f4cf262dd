package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRulepack is wrapped by every ConfigError.
	ErrInvalidRulepack = errors.New("invalid rulepack")

	// ErrTierUndefined is returned when the PEP/sanctions table lacks the tier
	// selected by the screening statuses.
	ErrTierUndefined = errors.New("pep/sanctions tier undefined")

	// ErrNoRulepack is returned when an evaluation is attempted before any
	// rulepack has been loaded.
	ErrNoRulepack = errors.New("no rulepack loaded")
)

// ConfigError describes a rulepack that could not be loaded. Field is the
// dotted path of the offending entry when one is known.
type ConfigError struct {
	Source string
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field != "" && e.Source != "":
		return fmt.Sprintf("rulepack %s: %s: %v", e.Source, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("rulepack: %s: %v", e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("rulepack %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("rulepack: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidRulepack, e.Err}
}

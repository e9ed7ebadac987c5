package config

import (
	"errors"
	"fmt"
)

// Load/parse errors. These are fatal at startup and, after startup,
// are surfaced on a ServiceReload bus reply without being fatal
// (spec.md §7, error taxonomy 1).
var (
	ErrFileNotFound = errors.New("configuration file not found")
)

// NewParseError wraps a viper/mapstructure decode failure.
func NewParseError(cause error) error {
	return fmt.Errorf("configuration file has invalid syntax or structure: %w", cause)
}

// NewDuplicateNameError reports two entities of the same kind sharing
// a name, violating spec.md §3's category/rule/permit name-uniqueness
// invariant.
func NewDuplicateNameError(kind, name string) error {
	return fmt.Errorf("duplicate %s name %q", kind, name)
}

// NewInvalidRegexError wraps a category regex that failed to compile.
func NewInvalidRegexError(category, pattern string, cause error) error {
	return fmt.Errorf("category %q has invalid regex %q: %w", category, pattern, cause)
}

// NewForbiddenPairingError reports one of the two tab-policy
// combinations spec.md §4.4 requires the validator to reject.
func NewForbiddenPairingError(a, b string) error {
	return fmt.Errorf("general.%s and general.%s must not both be set", a, b)
}

// NewDanglingCategoryError reports a rule or permit referencing a
// category name that does not exist.
func NewDanglingCategoryError(owner, category string) error {
	return fmt.Errorf("%s references unknown category %q", owner, category)
}

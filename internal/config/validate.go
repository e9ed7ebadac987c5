package config

import (
	"regexp"

	"go.uber.org/multierr"
)

// Validate checks the structural invariants spec.md §6 assigns to the
// config validator. It accumulates every violation it finds via
// multierr rather than stopping at the first, so a single failed load
// reports the whole list of problems at once.
func Validate(cfg *Config) error {
	var err error

	if cfg.General.PreventBrowserClose && cfg.General.CloseAllAfterBlock != nil {
		err = multierr.Append(err, NewForbiddenPairingError("prevent_browser_close", "close_all_after_block"))
	}
	if cfg.General.CloseAllOnBlock && cfg.General.CloseAllAfterBlock != nil {
		err = multierr.Append(err, NewForbiddenPairingError("close_all_on_block", "close_all_after_block"))
	}

	for name, cat := range cfg.Category {
		for _, pattern := range cat.Regexes {
			if _, compileErr := regexp.Compile(pattern); compileErr != nil {
				err = multierr.Append(err, NewInvalidRegexError(name, pattern, compileErr))
			}
		}
	}

	seenRuleNames := make(map[string]bool, len(cfg.Rule))
	for i, rule := range cfg.Rule {
		name := rule.Name
		if name == "" {
			name = defaultRuleName(i)
		}
		if seenRuleNames[name] {
			err = multierr.Append(err, NewDuplicateNameError("rule", name))
		}
		seenRuleNames[name] = true
		for _, cat := range rule.Categories {
			if _, ok := cfg.Category[cat]; !ok {
				err = multierr.Append(err, NewDanglingCategoryError("rule "+name, cat))
			}
		}
	}

	for name, permit := range cfg.Permit {
		for _, cat := range permit.Categories {
			if _, ok := cfg.Category[cat]; !ok {
				err = multierr.Append(err, NewDanglingCategoryError("permit "+name, cat))
			}
		}
	}

	return err
}

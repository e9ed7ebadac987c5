package config

import "time"

// Config is the root of the on-disk configuration document, decoded
// from YAML through viper. Section names mirror spec.md §6: general,
// category, rule, permit, after.
type Config struct {
	General  General            `mapstructure:"general"`
	Category map[string]Category `mapstructure:"category"`
	Rule     []Rule             `mapstructure:"rule"`
	Permit   map[string]Permit  `mapstructure:"permit"`
	After    After              `mapstructure:"after"`
}

// General carries daemon-wide settings: transport endpoints and the
// timers that are not owned by a single manager.
type General struct {
	ReloadDelay         Duration `mapstructure:"reload_delay"`
	ProcessesScanEach   Duration `mapstructure:"processes_scan_each"`
	WebextSocket        string   `mapstructure:"webext_socket"`
	BusName             string   `mapstructure:"bus_name"`
	PreventBrowserClose bool     `mapstructure:"prevent_browser_close"`
	CloseAllOnBlock     bool     `mapstructure:"close_all_on_block"`
	CloseAllAfterBlock  *Duration `mapstructure:"close_all_after_block"`
}

// Category is the config body of a declared category: the identity
// tests that feed a category id into a URL or process mask.
type Category struct {
	Domains    []string `mapstructure:"domains"`
	Subreddits []string `mapstructure:"subreddits"`
	Githubs    []string `mapstructure:"githubs"`
	Regexes    []string `mapstructure:"regexes"`
	Processes  []string `mapstructure:"processes"`
}

// Rule asserts `blocked` on its categories, permanently or outside an
// allowed daily window. Name defaults to a positional placeholder at
// load time (see Load) so rules participate in the same name-
// uniqueness invariant as categories and permits (spec.md §6).
type Rule struct {
	Name       string    `mapstructure:"name"`
	Allowed    *Window   `mapstructure:"allowed"`
	Categories []string  `mapstructure:"categories"`
}

// Permit asserts `unblocked` on its categories for up to Length,
// subject to Cooldown and Available.
type Permit struct {
	Length     Duration  `mapstructure:"length"`
	Cooldown   *Duration `mapstructure:"cooldown"`
	Available  *Window   `mapstructure:"available"`
	Categories []string  `mapstructure:"categories"`
}

// After holds the restart/reload safety-gate cooldowns of spec.md §4.2
// and the permit-side equivalent in spec.md §4.3.
type After struct {
	Restart AfterGate `mapstructure:"restart"`
	Reload  AfterGate `mapstructure:"reload"`
}

// AfterGate is one half of After: the cooldown applied to rules and,
// separately, to permit activation, following a restart or a reload.
type AfterGate struct {
	BlockRules   Duration `mapstructure:"block_rules"`
	BlockPermits Duration `mapstructure:"block_permits"`
}

// Window is a daily time-of-day range [Since, Until). Since > Until
// wraps past midnight; Since == Until is a zero-length window that
// contains no time of day, so a rule allowed only inside it is always
// active (spec.md §4.2 "Rule schedule semantics").
type Window struct {
	Since TimeOfDay `mapstructure:"since"`
	Until TimeOfDay `mapstructure:"until"`
}

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour int `mapstructure:"hour"`
	Min  int `mapstructure:"min"`
}

// Minutes returns the time of day as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Min
}

// Duration is the {days, hours, mins, seconds} record used throughout
// the config file, translated from the original implementation's KDL
// duration record (config/kdl_duration.rs) into a YAML-friendly shape.
type Duration struct {
	Days    int `mapstructure:"days"`
	Hours   int `mapstructure:"hours"`
	Mins    int `mapstructure:"mins"`
	Seconds int `mapstructure:"seconds"`
}

// Dur converts the record into a time.Duration.
func (d Duration) Dur() time.Duration {
	total := time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Mins)*time.Minute +
		time.Duration(d.Seconds)*time.Second
	return total
}

// DefaultProcessesScanEach is used when general.processes_scan_each is
// left unset (spec.md §4.5).
const DefaultProcessesScanEach = 10 * time.Second

// Package lookups builds the immutable, precomputed indices every
// other manager consumes: category/permit id tables, per-kind
// inverted maps, and the compiled regex set. It is built once per
// config load and handed out by shared reference (spec.md §9,
// "Lookups lifetime" — rebuild wholesale on reload rather than mutate
// incrementally).
package lookups

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/vaxtify/vaxtifyd/internal/bitset"
	"github.com/vaxtify/vaxtifyd/internal/config"
)

// Lookups is the immutable index built from one Config.
type Lookups struct {
	Config *config.Config

	Category Table[config.Category]
	Permit   Table[config.Permit]

	domain    map[string][]int
	subreddit map[string][]int
	github    map[string][]int
	process   map[string][]int

	regexes       []*regexp.Regexp
	regexCategory []int

	processNames []string
}

// New builds the indices for cfg. cfg is assumed already validated
// (internal/config.Validate) — regex compile failures here would be a
// programmer error, not a runtime condition to recover from.
func New(cfg *config.Config) (*Lookups, error) {
	l := &Lookups{
		Config:    cfg,
		Category:  *newTable[config.Category](),
		Permit:    *newTable[config.Permit](),
		domain:    make(map[string][]int),
		subreddit: make(map[string][]int),
		github:    make(map[string][]int),
		process:   make(map[string][]int),
	}

	seenProcess := make(map[string]bool)

	for name, details := range cfg.Category {
		cat := l.Category.insert(name, details)
		for _, dom := range details.Domains {
			l.domain[dom] = append(l.domain[dom], cat)
		}
		for _, sub := range details.Subreddits {
			l.subreddit[sub] = append(l.subreddit[sub], cat)
		}
		for _, repo := range details.Githubs {
			l.github[repo] = append(l.github[repo], cat)
		}
		for _, proc := range details.Processes {
			l.process[proc] = append(l.process[proc], cat)
			if !seenProcess[proc] {
				seenProcess[proc] = true
				l.processNames = append(l.processNames, proc)
			}
		}
		for _, pattern := range details.Regexes {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("category %q: invalid regex %q: %w", name, pattern, err)
			}
			l.regexes = append(l.regexes, re)
			l.regexCategory = append(l.regexCategory, cat)
		}
	}

	for name, details := range cfg.Permit {
		l.Permit.insert(name, details)
	}

	return l, nil
}

// NCategories returns the number of declared categories; all bitset.Set
// values in the daemon are sized to this.
func (l *Lookups) NCategories() int {
	return l.Category.Len()
}

// ProcessNames returns every declared process name, in no particular
// order, deduplicated across categories.
func (l *Lookups) ProcessNames() []string {
	return l.processNames
}

// URLToMask computes the category mask of a URL: domain lookup,
// subreddit extraction, github repo extraction, and a pass over every
// compiled category regex (spec.md §4.1). Duplicates across the four
// sources are idempotent since mask bits are set, not counted.
func (l *Lookups) URLToMask(u *url.URL) bitset.Set {
	mask := bitset.New(l.NCategories())

	if domain := u.Hostname(); domain != "" {
		for _, cat := range l.domain[domain] {
			mask.Insert(cat)
		}
	}
	if sub := extractSubreddit(u); sub != "" {
		for _, cat := range l.subreddit[sub] {
			mask.Insert(cat)
		}
	}
	if repo := extractGithubRepo(u); repo != "" {
		for _, cat := range l.github[repo] {
			mask.Insert(cat)
		}
	}
	full := u.String()
	for i, re := range l.regexes {
		if re.MatchString(full) {
			mask.Insert(l.regexCategory[i])
		}
	}

	return mask
}

// ProcessToMask computes the category mask of a declared process name
// (spec.md §4.1, "Process name → mask").
func (l *Lookups) ProcessToMask(name string) bitset.Set {
	mask := bitset.New(l.NCategories())
	for _, cat := range l.process[name] {
		mask.Insert(cat)
	}
	return mask
}

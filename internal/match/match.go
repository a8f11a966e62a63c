// Package match implements the three pattern-matching strategies the
// rule engine dispatches on: exact-match substitution, sanitized
// wildcard matching, and regex capture-and-template substitution.
//
// Matchers are pure with respect to their input: they return a new
// slice of the same length and order and never share state between
// invocations.
package match

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/logger"
	"github.com/tablewash/tablewash/internal/rules"
)

// Matcher applies one find/replace strategy to an entire column.
type Matcher interface {
	Apply(values []string, find []string, replace string) []string
}

// Options configures matcher construction.
type Options struct {
	// WildcardCompat preserves the historical sanitize-then-convert
	// order in the wildcard matcher: punctuation (including '*') is
	// stripped from find entries before the '*' to '.*' conversion, so
	// the wildcard marker never reaches the compiled expression. With
	// compat off, '*' survives sanitization and acts as a real wildcard.
	WildcardCompat bool
	Logger         *logger.Logger
}

// Registry resolves a matcher for a pattern type once per sub-pattern,
// so rule application never dispatches on type strings per row.
type Registry struct {
	matchers map[rules.PatternType]Matcher
}

// NewRegistry builds the matcher set for the given options.
func NewRegistry(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Registry{
		matchers: map[rules.PatternType]Matcher{
			rules.TypeSubstitution: substitutionMatcher{},
			rules.TypeWildcard:     wildcardMatcher{compat: opts.WildcardCompat, log: log},
			rules.TypeRegex:        regexMatcher{log: log},
		},
	}
}

// For returns the matcher for t, or false for an unrecognized type.
func (r *Registry) For(t rules.PatternType) (Matcher, bool) {
	m, ok := r.matchers[t]
	return m, ok
}

// substitutionMatcher replaces cells whose whitespace-trimmed value
// equals the first find entry with the empty string. Only find[0] is
// ever consulted; additional entries are a documented no-op. The
// replace value is ignored.
type substitutionMatcher struct{}

func (substitutionMatcher) Apply(values []string, find []string, replace string) []string {
	out := make([]string, len(values))
	copy(out, values)

	if len(find) == 0 {
		return out
	}

	target := find[0]
	for i, v := range values {
		if strings.TrimSpace(v) == target {
			out[i] = ""
		}
	}
	return out
}

// wildcardMatcher replaces any cell matched by one of the find entries
// with the sanitized replace value. Both find and replace are sanitized
// before use; matching is a case-insensitive regex search after '*' is
// converted to '.*'.
type wildcardMatcher struct {
	compat bool
	log    *logger.Logger
}

func (m wildcardMatcher) Apply(values []string, find []string, replace string) []string {
	replace = Sanitize(replace)

	patterns := make([]*regexp.Regexp, 0, len(find))
	for _, f := range find {
		re, err := regexp.Compile("(?i)" + m.expr(f))
		if err != nil {
			m.log.Warn("Skipping wildcard pattern that does not compile",
				zap.String("pattern", f), zap.Error(err))
			continue
		}
		patterns = append(patterns, re)
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v
		for _, re := range patterns {
			if re.MatchString(v) {
				out[i] = replace
				break
			}
		}
	}
	return out
}

// expr turns a find entry into a regular expression source. In compat
// mode sanitization runs first and strips any '*', so the subsequent
// conversion has nothing to act on and matching degenerates to a
// case-insensitive substring search for the sanitized text.
func (m wildcardMatcher) expr(find string) string {
	if m.compat {
		return strings.ReplaceAll(Sanitize(find), "*", ".*")
	}

	// Corrected order: mask '*' so it survives sanitization, then
	// convert it to '.*'.
	const marker = "\x00"
	masked := strings.ReplaceAll(find, "*", marker)
	return strings.ReplaceAll(Sanitize(masked), marker, ".*")
}

// regexMatcher runs each find pattern over the column in order, every
// pass reading the previous pass's output. Each match is replaced by
// the replace template with {text} filled from the first capture group,
// or the empty string when the pattern has no groups. A find entry that
// fails to compile is logged and skipped on its own; the remaining
// entries still run.
type regexMatcher struct {
	log *logger.Logger
}

func (m regexMatcher) Apply(values []string, find []string, replace string) []string {
	out := make([]string, len(values))
	copy(out, values)

	for _, pattern := range find {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			m.log.Warn("Skipping regex pattern that does not compile",
				zap.String("pattern", pattern), zap.Error(err))
			continue
		}

		for i, v := range out {
			out[i] = re.ReplaceAllStringFunc(v, func(matched string) string {
				text := ""
				if groups := re.FindStringSubmatch(matched); len(groups) > 1 {
					text = groups[1]
				}
				return strings.ReplaceAll(replace, "{text}", text)
			})
		}
	}
	return out
}

package rules

import "regexp"

// Validate checks every rule and every sub-pattern, collecting all
// errors rather than stopping at the first. An empty result means the
// rule set is usable. Any error means the whole document must be
// discarded: the engine never runs a partially valid rule set.
//
// Regex compilation here is independent of compilation at apply time;
// the regex matcher validates each pattern again when it runs.
func Validate(rs RuleSet) []ValidationError {
	var errs []ValidationError

	for i, rule := range rs {
		index := i + 1

		if !rule.hasColumn || !rule.hasPatterns {
			errs = append(errs, ValidationError{
				Index:   index,
				Message: "each rule must have 'column' and 'patterns' fields",
			})
			continue
		}

		for _, p := range rule.Patterns {
			if !p.hasFind || !p.hasReplace || !p.hasType {
				errs = append(errs, ValidationError{
					Index:   index,
					Column:  rule.Column,
					Message: "each sub-pattern must have 'find', 'replace', and 'type' fields",
				})
				continue
			}

			if p.Type != TypeRegex {
				continue
			}

			for _, find := range p.Find {
				if _, err := regexp.Compile(find); err != nil {
					errs = append(errs, ValidationError{
						Index:   index,
						Column:  rule.Column,
						Pattern: find,
						Message: "invalid regular expression",
					})
				}
			}
		}
	}

	return errs
}

// Package rules loads and validates the YAML rule documents that drive
// column normalization. A rule document is a sequence of column rules,
// each binding one table column to an ordered list of find/replace
// sub-patterns. Validation is fail-closed: a single malformed rule
// discards the entire document.
package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PatternType selects the matching strategy for a sub-pattern.
type PatternType string

const (
	// TypeSubstitution replaces cells that exactly equal the find value
	// (after trimming whitespace) with the empty string.
	TypeSubstitution PatternType = "substitution"
	// TypeWildcard replaces cells matched by a sanitized, case-insensitive
	// glob-style pattern with the sanitized replace value.
	TypeWildcard PatternType = "wildcard"
	// TypeRegex rewrites every regex match in a cell using a replace
	// template with a {text} placeholder for the first capture group.
	TypeRegex PatternType = "regex"
)

// RuleSet is an ordered sequence of column rules. Rules targeting the
// same column compose in document order, each reading the output of the
// previous one.
type RuleSet []ColumnRule

// ColumnRule binds one table column to an ordered list of sub-patterns.
type ColumnRule struct {
	Column   string
	Patterns []SubPattern

	hasColumn   bool
	hasPatterns bool
}

// SubPattern is one find/replace/type triple applied within a column rule.
type SubPattern struct {
	Find    StringList
	Replace string
	Type    PatternType

	hasFind    bool
	hasReplace bool
	hasType    bool
}

// StringList accepts either a single YAML scalar or a sequence of
// scalars, normalizing both to a slice.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = StringList(many)
		return nil
	default:
		return fmt.Errorf("line %d: find must be a string or a list of strings", value.Line)
	}
}

// columnRuleDoc mirrors ColumnRule with pointer fields so the loader
// can tell an absent key from a zero value.
type columnRuleDoc struct {
	Column   *string       `yaml:"column"`
	Patterns *[]SubPattern `yaml:"patterns"`
}

// UnmarshalYAML implements yaml.Unmarshaler, recording which keys were
// present so the validator can check structural completeness.
func (r *ColumnRule) UnmarshalYAML(value *yaml.Node) error {
	var doc columnRuleDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	if doc.Column != nil {
		r.Column = *doc.Column
		r.hasColumn = true
	}
	if doc.Patterns != nil {
		r.Patterns = *doc.Patterns
		r.hasPatterns = true
	}
	return nil
}

type subPatternDoc struct {
	Find    *StringList `yaml:"find"`
	Replace *string     `yaml:"replace"`
	Type    *string     `yaml:"type"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *SubPattern) UnmarshalYAML(value *yaml.Node) error {
	var doc subPatternDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	if doc.Find != nil {
		p.Find = *doc.Find
		p.hasFind = true
	}
	if doc.Replace != nil {
		p.Replace = *doc.Replace
		p.hasReplace = true
	}
	if doc.Type != nil {
		p.Type = PatternType(*doc.Type)
		p.hasType = true
	}
	return nil
}

package rules

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func parseRules(t *testing.T, doc string) RuleSet {
	t.Helper()
	var rs RuleSet
	if err := yaml.Unmarshal([]byte(doc), &rs); err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return rs
}

// TestValidate tests structural and regex validation of rule documents
func TestValidate(t *testing.T) {
	t.Run("ValidDocument", func(t *testing.T) {
		rs := parseRules(t, `
- column: weight
  patterns:
    - find: '^(\d+)kg$'
      replace: '{text} kilograms'
      type: regex
`)
		if errs := Validate(rs); len(errs) != 0 {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		rs := parseRules(t, `
- patterns:
    - find: N/A
      replace: ''
      type: substitution
`)
		errs := Validate(rs)
		if len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
		if errs[0].Index != 1 {
			t.Errorf("Expected 1-based index 1, got %d", errs[0].Index)
		}
		if !strings.Contains(errs[0].Error(), "'column' and 'patterns'") {
			t.Errorf("Unexpected message: %s", errs[0].Error())
		}
	})

	t.Run("MissingPatterns", func(t *testing.T) {
		rs := parseRules(t, "- column: weight\n")
		if errs := Validate(rs); len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
	})

	t.Run("MissingSubPatternField", func(t *testing.T) {
		rs := parseRules(t, `
- column: status
  patterns:
    - find: N/A
      replace: ''
`)
		errs := Validate(rs)
		if len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
		if errs[0].Column != "status" {
			t.Errorf("Expected column 'status', got %q", errs[0].Column)
		}
	})

	t.Run("EmptyFieldStillCountsAsPresent", func(t *testing.T) {
		// Presence is about keys, not values; an empty replace is legal.
		rs := parseRules(t, `
- column: status
  patterns:
    - find: N/A
      replace: ''
      type: substitution
`)
		if errs := Validate(rs); len(errs) != 0 {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("InvalidRegex", func(t *testing.T) {
		rs := parseRules(t, `
- column: weight
  patterns:
    - find: ['(unclosed', '^\d+$']
      replace: '{text}'
      type: regex
`)
		errs := Validate(rs)
		if len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
		msg := errs[0].Error()
		if !strings.Contains(msg, "rule 1") || !strings.Contains(msg, `"weight"`) || !strings.Contains(msg, "(unclosed") {
			t.Errorf("Error must name the rule index, column, and pattern: %s", msg)
		}
	})

	t.Run("InvalidRegexOnlyCheckedForRegexType", func(t *testing.T) {
		// Wildcard find entries are not regex sources at validation time.
		rs := parseRules(t, `
- column: notes
  patterns:
    - find: '(unclosed'
      replace: x
      type: wildcard
`)
		if errs := Validate(rs); len(errs) != 0 {
			t.Errorf("Expected no errors, got %v", errs)
		}
	})

	t.Run("CollectsAllErrors", func(t *testing.T) {
		rs := parseRules(t, `
- column: a
- column: b
  patterns:
    - find: x
      replace: y
- column: c
  patterns:
    - find: ['(bad', '[worse']
      replace: '{text}'
      type: regex
`)
		errs := Validate(rs)
		if len(errs) != 4 {
			t.Fatalf("Expected 4 errors (one per problem), got %d: %v", len(errs), errs)
		}
		if errs[0].Index != 1 || errs[1].Index != 2 || errs[2].Index != 3 || errs[3].Index != 3 {
			t.Errorf("Unexpected indices: %v", errs)
		}
	})

	t.Run("EmptyRuleSet", func(t *testing.T) {
		if errs := Validate(nil); len(errs) != 0 {
			t.Errorf("Expected no errors for empty rule set, got %v", errs)
		}
	})
}

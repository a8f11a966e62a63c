package engine

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tablewash/tablewash/internal/config"
	"github.com/tablewash/tablewash/internal/logger"
	"github.com/tablewash/tablewash/internal/rules"
	"github.com/tablewash/tablewash/internal/table"
)

func newTestEngine(t *testing.T, strict bool) *Engine {
	t.Helper()
	return New(config.NormalizeConfig{Strict: strict, WildcardCompat: true}, logger.Nop())
}

func parseRules(t *testing.T, doc string) rules.RuleSet {
	t.Helper()
	var rs rules.RuleSet
	if err := yaml.Unmarshal([]byte(doc), &rs); err != nil {
		t.Fatalf("Failed to parse rule document: %v", err)
	}
	return rs
}

func testTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New([]string{"name", "weight", "status"})
	tbl.AppendRow([]string{"anvil", "5kg", "  N/A  "})
	tbl.AppendRow([]string{"feather", "5KG", "ok"})
	return tbl
}

// TestApply tests rule application against an in-memory table
func TestApply(t *testing.T) {
	t.Run("EmptyRuleSetIsIdentity", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := testTable(t)
		before := tbl.Clone()

		stats, err := e.Apply(tbl, nil)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if stats.CellsChanged != 0 || stats.ColumnsTouched != 0 {
			t.Errorf("Expected no changes, got %+v", stats)
		}
		for _, col := range before.Columns() {
			want, _ := before.Column(col)
			got, _ := tbl.Column(col)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Column %q changed: %v", col, got)
			}
		}
	})

	t.Run("RulesApplyInOrder", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: weight
  patterns:
    - find: '^(\d+)kg$'
      replace: '{text} kilograms'
      type: regex
- column: status
  patterns:
    - find: N/A
      replace: ''
      type: substitution
`)

		stats, err := e.Apply(tbl, rs)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		weights, _ := tbl.Column("weight")
		if !reflect.DeepEqual(weights, []string{"5 kilograms", "5 kilograms"}) {
			t.Errorf("Unexpected weights: %v", weights)
		}
		status, _ := tbl.Column("status")
		if !reflect.DeepEqual(status, []string{"", "ok"}) {
			t.Errorf("Unexpected status: %v", status)
		}
		if stats.ColumnsTouched != 2 {
			t.Errorf("Expected 2 columns touched, got %d", stats.ColumnsTouched)
		}
		if stats.CellsChanged != 3 {
			t.Errorf("Expected 3 cells changed, got %d", stats.CellsChanged)
		}
	})

	t.Run("SubPatternsSeeEarlierResults", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := table.New([]string{"v"})
		tbl.AppendRow([]string{"a"})
		rs := parseRules(t, `
- column: v
  patterns:
    - find: '^a$'
      replace: b
      type: regex
    - find: '^b$'
      replace: c
      type: regex
`)

		if _, err := e.Apply(tbl, rs); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		vals, _ := tbl.Column("v")
		if vals[0] != "c" {
			t.Errorf("Expected second sub-pattern to see first's output, got %q", vals[0])
		}
	})

	t.Run("UnknownColumnSkipped", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: nonexistent
  patterns:
    - find: x
      replace: y
      type: substitution
- column: status
  patterns:
    - find: ok
      replace: ''
      type: substitution
`)

		stats, err := e.Apply(tbl, rs)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if stats.SkippedColumns != 1 {
			t.Errorf("Expected 1 skipped column, got %d", stats.SkippedColumns)
		}
		// The rule after the skipped one still runs.
		status, _ := tbl.Column("status")
		if status[1] != "" {
			t.Errorf("Expected later rules to run, got %v", status)
		}
	})

	t.Run("UnknownTypeSkipped", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: status
  patterns:
    - find: ok
      replace: OK
      type: fuzzy
`)

		stats, err := e.Apply(tbl, rs)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if stats.SkippedTypes != 1 {
			t.Errorf("Expected 1 skipped type, got %d", stats.SkippedTypes)
		}
		status, _ := tbl.Column("status")
		if status[1] != "ok" {
			t.Errorf("Skipped sub-pattern must not modify values: %v", status)
		}
	})

	t.Run("StrictModeRejectsUnknownColumn", func(t *testing.T) {
		e := newTestEngine(t, true)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: nonexistent
  patterns:
    - find: x
      replace: y
      type: substitution
`)

		if _, err := e.Apply(tbl, rs); err == nil {
			t.Error("Expected error for unknown column in strict mode")
		}
	})

	t.Run("StrictModeRejectsUnknownType", func(t *testing.T) {
		e := newTestEngine(t, true)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: status
  patterns:
    - find: ok
      replace: OK
      type: fuzzy
`)

		_, err := e.Apply(tbl, rs)
		if err == nil || !strings.Contains(err.Error(), "fuzzy") {
			t.Errorf("Expected unknown type error, got %v", err)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		e := newTestEngine(t, false)
		tbl := testTable(t)
		rs := parseRules(t, `
- column: weight
  patterns:
    - find: '^(\d+)kg$'
      replace: '{text} kilograms'
      type: regex
`)

		if _, err := e.Apply(tbl, rs); err != nil {
			t.Fatalf("First Apply failed: %v", err)
		}
		stats, err := e.Apply(tbl, rs)
		if err != nil {
			t.Fatalf("Second Apply failed: %v", err)
		}
		if stats.CellsChanged != 0 {
			t.Errorf("Second run must be a no-op, changed %d cells", stats.CellsChanged)
		}
	})
}

// TestNormalizeFile tests the file-to-file entry point
func TestNormalizeFile(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, data string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return path
	}

	tableData := "name,weight\nanvil,5kg\n"
	ruleData := `
- column: weight
  patterns:
    - find: '^(\d+)kg$'
      replace: '{text} kilograms'
      type: regex
`

	t.Run("ValidInputs", func(t *testing.T) {
		dir := t.TempDir()
		e := newTestEngine(t, false)

		tbl, rs, err := e.NormalizeFile(
			writeFile(t, dir, "data.csv", tableData),
			writeFile(t, dir, "rules.yaml", ruleData))
		if err != nil {
			t.Fatalf("NormalizeFile failed: %v", err)
		}
		if len(rs) != 1 {
			t.Errorf("Expected 1 rule, got %d", len(rs))
		}
		weights, _ := tbl.Column("weight")
		if weights[0] != "5 kilograms" {
			t.Errorf("Expected normalized value, got %q", weights[0])
		}
	})

	t.Run("MissingTable", func(t *testing.T) {
		dir := t.TempDir()
		e := newTestEngine(t, false)

		tbl, rs, err := e.NormalizeFile(
			filepath.Join(dir, "nope.csv"),
			writeFile(t, dir, "rules.yaml", ruleData))
		if err == nil {
			t.Fatal("Expected error for missing table")
		}
		if tbl != nil || rs != nil {
			t.Error("Expected nil table and rules on failure")
		}
	})

	t.Run("InvalidRules", func(t *testing.T) {
		dir := t.TempDir()
		e := newTestEngine(t, false)

		tbl, rs, err := e.NormalizeFile(
			writeFile(t, dir, "data.csv", tableData),
			writeFile(t, dir, "rules.yaml", "- column: weight\n"))
		if err == nil {
			t.Fatal("Expected error for invalid rule document")
		}
		if tbl != nil || rs != nil {
			t.Error("Expected nil table and rules on failure")
		}
	})

	t.Run("EmptyRuleDocument", func(t *testing.T) {
		dir := t.TempDir()
		e := newTestEngine(t, false)

		tbl, rs, err := e.NormalizeFile(
			writeFile(t, dir, "data.csv", tableData),
			writeFile(t, dir, "rules.yaml", "[]\n"))
		if err == nil {
			t.Fatal("Expected error for empty rule document")
		}
		if tbl != nil || rs != nil {
			t.Error("Expected nil table and rules on failure")
		}
	})
}

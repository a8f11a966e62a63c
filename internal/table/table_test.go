package table

import (
	"reflect"
	"testing"
)

// TestTable tests the column-oriented table model
func TestTable(t *testing.T) {
	t.Run("AppendAndRead", func(t *testing.T) {
		tbl := New([]string{"name", "weight"})
		if err := tbl.AppendRow([]string{"anvil", "5kg"}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
		if err := tbl.AppendRow([]string{"feather", ""}); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}

		if tbl.Rows() != 2 {
			t.Errorf("Expected 2 rows, got %d", tbl.Rows())
		}
		weights, ok := tbl.Column("weight")
		if !ok {
			t.Fatal("Column 'weight' missing")
		}
		if !reflect.DeepEqual(weights, []string{"5kg", ""}) {
			t.Errorf("Unexpected column values: %v", weights)
		}
	})

	t.Run("AppendRowLengthMismatch", func(t *testing.T) {
		tbl := New([]string{"a", "b"})
		if err := tbl.AppendRow([]string{"only one"}); err == nil {
			t.Error("Expected error for short row")
		}
	})

	t.Run("ColumnReturnsCopy", func(t *testing.T) {
		tbl := New([]string{"a"})
		tbl.AppendRow([]string{"original"})

		values, _ := tbl.Column("a")
		values[0] = "mutated"

		fresh, _ := tbl.Column("a")
		if fresh[0] != "original" {
			t.Error("Column must return a copy, not a view")
		}
	})

	t.Run("SetColumnUnknownName", func(t *testing.T) {
		tbl := New([]string{"a"})
		if err := tbl.SetColumn("missing", nil); err == nil {
			t.Error("Expected error for unknown column")
		}
	})

	t.Run("SetColumnLengthMismatch", func(t *testing.T) {
		tbl := New([]string{"a"})
		tbl.AppendRow([]string{"x"})
		if err := tbl.SetColumn("a", []string{"x", "y"}); err == nil {
			t.Error("Expected error for length mismatch")
		}
	})

	t.Run("Clone", func(t *testing.T) {
		tbl := New([]string{"a"})
		tbl.AppendRow([]string{"x"})

		clone := tbl.Clone()
		clone.SetColumn("a", []string{"y"})

		values, _ := tbl.Column("a")
		if values[0] != "x" {
			t.Error("Clone must not share storage with the original")
		}
	})
}

package cache

import "testing"

// TestDigest tests the cache key digest over table/rules input pairs
func TestDigest(t *testing.T) {
	table := []byte("name,weight\nanvil,5kg\n")
	rules := []byte("- column: weight\n")

	t.Run("Deterministic", func(t *testing.T) {
		if Digest(table, rules) != Digest(table, rules) {
			t.Error("Same inputs must produce the same digest")
		}
	})

	t.Run("TableChangesDigest", func(t *testing.T) {
		other := []byte("name,weight\nanvil,6kg\n")
		if Digest(table, rules) == Digest(other, rules) {
			t.Error("Different table data must produce a different digest")
		}
	})

	t.Run("RulesChangeDigest", func(t *testing.T) {
		other := []byte("- column: name\n")
		if Digest(table, rules) == Digest(table, other) {
			t.Error("Different rule data must produce a different digest")
		}
	})

	t.Run("InputsNotConcatenated", func(t *testing.T) {
		// The separator keeps the table/rules boundary part of the key:
		// moving bytes across it must change the digest.
		if Digest([]byte("ab"), []byte("c")) == Digest([]byte("abc"), nil) {
			t.Error("Digest must distinguish where table data ends and rule data begins")
		}
	})
}

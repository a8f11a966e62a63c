package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentMissing indicates the rule document does not exist.
	ErrDocumentMissing = errors.New("rule document not found")
	// ErrDocumentUnreadable indicates the rule document exists but could
	// not be opened or read.
	ErrDocumentUnreadable = errors.New("rule document unreadable")
	// ErrDocumentMalformed indicates the rule document is not valid YAML
	// or does not have the expected top-level shape.
	ErrDocumentMalformed = errors.New("rule document malformed")
	// ErrValidation indicates one or more structural or regex errors were
	// found; the whole rule set is discarded.
	ErrValidation = errors.New("rule validation failed")
)

// ValidationError describes one structural or regex problem found in a
// rule document. Index is the 1-based position of the offending rule.
type ValidationError struct {
	Index   int
	Column  string
	Pattern string
	Message string
}

func (e ValidationError) Error() string {
	switch {
	case e.Pattern != "":
		return fmt.Sprintf("rule %d, column %q: %s: %q", e.Index, e.Column, e.Message, e.Pattern)
	case e.Column != "":
		return fmt.Sprintf("rule %d, column %q: %s", e.Index, e.Column, e.Message)
	default:
		return fmt.Sprintf("rule %d: %s", e.Index, e.Message)
	}
}

package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// WriteCSV writes the table in CSV form with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.names); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rows := t.Rows()
	for i := 0; i < rows; i++ {
		if err := writer.Write(t.Row(i)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Save writes the table as CSV to the given path.
func Save(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return t.WriteCSV(f)
}

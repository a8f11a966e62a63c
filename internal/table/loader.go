package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/logger"
)

var (
	// ErrSourceNotFound indicates the table source does not exist.
	ErrSourceNotFound = errors.New("table source not found")
	// ErrSourceUnreadable indicates the table source exists but could
	// not be opened or read.
	ErrSourceUnreadable = errors.New("table source unreadable")
	// ErrSourceMalformed indicates the table source could not be parsed
	// or contains no usable data.
	ErrSourceMalformed = errors.New("table source malformed")
)

// Format represents supported table file formats.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// DetectFormat detects the table format from the file extension,
// defaulting to CSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// Load reads a table from path, detecting the format from the file
// extension. All cells are coerced to text and missing values become
// the empty string. Failures are logged and the table is never
// partially returned.
func Load(path string, log *logger.Logger) (*Table, error) {
	if log == nil {
		log = logger.Nop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("Table source not found", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		default:
			log.Warn("Failed to read table source", zap.String("path", path), zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, path, err)
		}
	}

	return LoadBytes(path, data, log)
}

// LoadBytes parses a table from raw bytes, detecting the format from
// the name's extension.
func LoadBytes(name string, data []byte, log *logger.Logger) (*Table, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		t   *Table
		err error
	)
	switch DetectFormat(name) {
	case FormatParquet:
		t, err = readParquet(data)
	case FormatJSON:
		t, err = readJSON(data)
	default:
		t, err = readCSV(data, log)
	}
	if err != nil {
		log.Warn("Failed to parse table source", zap.String("source", name), zap.Error(err))
		return nil, err
	}

	if t.Rows() == 0 {
		log.Warn("Table source contains no data rows", zap.String("source", name))
		return nil, fmt.Errorf("%w: %s contains no data rows", ErrSourceMalformed, name)
	}

	log.Debug("Table loaded",
		zap.String("source", name),
		zap.Int("columns", len(t.Columns())),
		zap.Int("rows", t.Rows()))

	return t, nil
}

// readCSV parses CSV input. The header row names the columns; short
// records are padded with empty cells and long records truncated, so
// the row count stays uniform across columns.
func readCSV(data []byte, log *logger.Logger) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrSourceMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
	}

	// Duplicate header names would collapse into one column and break
	// the uniform row count across columns.
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrSourceMalformed, name)
		}
		seen[name] = true
	}

	t := New(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn("Skipping unreadable record", zap.Error(err))
			continue
		}

		row := make([]string, len(header))
		for i := range header {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		if err := t.AppendRow(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
	}
	return t, nil
}

// readJSON parses JSON-lines input: one object per record. Column names
// come from the first record's keys in sorted order, since JSON objects
// carry no key order of their own.
func readJSON(data []byte) (*Table, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	var records []map[string]interface{}
	for {
		var record map[string]interface{}
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrSourceMalformed)
	}

	names := make([]string, 0, len(records[0]))
	for name := range records[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	t := New(names)
	for _, record := range records {
		row := make([]string, len(names))
		for i, name := range names {
			row[i] = stringify(record[name])
		}
		if err := t.AppendRow(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
		}
	}
	return t, nil
}

// readParquet parses Parquet input. Leaf column names come from the
// file schema; null values become empty cells.
func readParquet(data []byte) (*Table, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name()
	}

	t := New(names)
	for _, group := range pf.RowGroups() {
		rows := group.Rows()
		buf := make([]parquet.Row, 64)

		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				cells := make([]string, len(names))
				for _, value := range row {
					col := value.Column()
					if col < 0 || col >= len(cells) || value.IsNull() {
						continue
					}
					cells[col] = value.String()
				}
				if err := t.AppendRow(cells); err != nil {
					rows.Close()
					return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
				}
			}
			if err == io.EOF || n == 0 {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: %v", ErrSourceMalformed, err)
			}
		}
		rows.Close()
	}
	return t, nil
}

// stringify coerces a decoded JSON value to its text form; nil becomes
// the empty string.
func stringify(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

package rules

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tablewash/tablewash/internal/logger"
)

// Load reads, parses, and validates a rule document. On any failure the
// returned RuleSet is nil; the caller must treat the rules as absent,
// never partially loaded. Each failure is logged as a diagnostic before
// the error is returned.
func Load(path string, log *logger.Logger) (RuleSet, error) {
	if log == nil {
		log = logger.Nop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("Rule document not found", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrDocumentMissing, path)
		case errors.Is(err, os.ErrPermission):
			log.Warn("Permission denied reading rule document", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, err)
		default:
			log.Warn("Failed to read rule document", zap.String("path", path), zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, err)
		}
	}

	return LoadBytes(data, log)
}

// LoadBytes parses and validates a rule document from raw bytes.
func LoadBytes(data []byte, log *logger.Logger) (RuleSet, error) {
	if log == nil {
		log = logger.Nop()
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		log.Warn("Failed to parse rule document", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDocumentMalformed, err)
	}

	if errs := Validate(rs); len(errs) > 0 {
		log.Warn("Rule validation failed", zap.Int("error_count", len(errs)))
		for _, ve := range errs {
			log.Warn("Rule validation error", zap.String("error", ve.Error()))
		}
		return nil, fmt.Errorf("%w: %d error(s)", ErrValidation, len(errs))
	}

	return rs, nil
}

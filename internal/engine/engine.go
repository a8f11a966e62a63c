// Package engine orchestrates rule application: for each column rule in
// document order, dispatch every sub-pattern to its matcher and write
// the result back to the column before the next sub-pattern runs.
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/config"
	"github.com/tablewash/tablewash/internal/logger"
	"github.com/tablewash/tablewash/internal/match"
	"github.com/tablewash/tablewash/internal/rules"
	"github.com/tablewash/tablewash/internal/table"
)

// Engine applies a validated rule set to a table.
type Engine struct {
	matchers *match.Registry
	strict   bool
	logger   *logger.Logger
}

// Stats summarizes one normalization run.
type Stats struct {
	Rules          int           `json:"rules"`
	ColumnsTouched int           `json:"columns_touched"`
	CellsChanged   int           `json:"cells_changed"`
	SkippedColumns int           `json:"skipped_columns"`
	SkippedTypes   int           `json:"skipped_types"`
	Duration       time.Duration `json:"duration"`
}

// New creates an engine with the given normalization behavior.
func New(cfg config.NormalizeConfig, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		matchers: match.NewRegistry(match.Options{
			WildcardCompat: cfg.WildcardCompat,
			Logger:         log.WithComponent("match"),
		}),
		strict: cfg.Strict,
		logger: log,
	}
}

// Apply runs every rule in order against tbl, mutating it in place.
// Each sub-pattern's result is written back before the next one runs,
// so later sub-patterns in the same rule see updated values.
//
// A rule naming a column the table does not have is skipped without
// error, as is a sub-pattern with an unrecognized type. Strict mode
// turns both into errors that abort the run.
func (e *Engine) Apply(tbl *table.Table, rs rules.RuleSet) (Stats, error) {
	start := time.Now()
	stats := Stats{Rules: len(rs)}

	for _, rule := range rs {
		values, ok := tbl.Column(rule.Column)
		if !ok {
			stats.SkippedColumns++
			if e.strict {
				return stats, fmt.Errorf("unknown column %q", rule.Column)
			}
			e.logger.Debug("Skipping rule for unknown column", zap.String("column", rule.Column))
			continue
		}

		touched := false
		for _, p := range rule.Patterns {
			m, ok := e.matchers.For(p.Type)
			if !ok {
				stats.SkippedTypes++
				if e.strict {
					return stats, fmt.Errorf("unknown pattern type %q in rule for column %q", p.Type, rule.Column)
				}
				e.logger.Debug("Skipping sub-pattern with unknown type",
					zap.String("type", string(p.Type)), zap.String("column", rule.Column))
				continue
			}

			next := m.Apply(values, p.Find, p.Replace)
			for i := range values {
				if next[i] != values[i] {
					stats.CellsChanged++
				}
			}
			values = next
			touched = true
		}

		if touched {
			if err := tbl.SetColumn(rule.Column, values); err != nil {
				return stats, err
			}
			stats.ColumnsTouched++
		}
	}

	stats.Duration = time.Since(start)

	e.logger.Info("Rules applied",
		zap.Int("rules", stats.Rules),
		zap.Int("columns_touched", stats.ColumnsTouched),
		zap.Int("cells_changed", stats.CellsChanged),
		zap.Int("skipped_columns", stats.SkippedColumns),
		zap.Int("skipped_types", stats.SkippedTypes),
		zap.Duration("duration", stats.Duration))

	return stats, nil
}

// NormalizeFile loads a table and a rule document from disk and applies
// the rules. On any load or validation failure both returned values are
// nil and the engine does not run; diagnostics are logged by the
// loaders. A rule document that parses to an empty list counts as
// "rules unavailable" too.
func (e *Engine) NormalizeFile(tablePath, rulesPath string) (*table.Table, rules.RuleSet, error) {
	tbl, err := table.Load(tablePath, e.logger.WithComponent("table"))
	if err != nil {
		return nil, nil, err
	}

	rs, err := rules.Load(rulesPath, e.logger.WithComponent("rules"))
	if err != nil {
		return nil, nil, err
	}
	if len(rs) == 0 {
		e.logger.Warn("Rule document contains no rules", zap.String("path", rulesPath))
		return nil, nil, fmt.Errorf("rule document %s contains no rules", rulesPath)
	}

	if _, err := e.Apply(tbl, rs); err != nil {
		return nil, nil, err
	}

	return tbl, rs, nil
}

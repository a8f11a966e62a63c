// Package audit persists a record of every normalization run to
// PostgreSQL so cleaned datasets can be traced back to the rule set and
// input that produced them.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/config"
)

// Record describes one normalization run.
type Record struct {
	ID             int64     `db:"id" json:"id"`
	TableSource    string    `db:"table_source" json:"table_source"`
	TableHash      string    `db:"table_hash" json:"table_hash"`
	RuleCount      int       `db:"rule_count" json:"rule_count"`
	ColumnsTouched int       `db:"columns_touched" json:"columns_touched"`
	CellsChanged   int       `db:"cells_changed" json:"cells_changed"`
	DurationMS     int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Store handles run audit persistence.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS normalization_runs (
	id              BIGSERIAL PRIMARY KEY,
	table_source    TEXT NOT NULL,
	table_hash      TEXT NOT NULL,
	rule_count      INT NOT NULL,
	columns_touched INT NOT NULL,
	cells_changed   INT NOT NULL,
	duration_ms     BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewStore connects to the audit database and ensures the schema exists.
func NewStore(cfg config.AuditConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

// initialize checks the connection and creates the runs table.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	return nil
}

// Insert adds a run record and fills in its generated fields.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO normalization_runs (table_source, table_hash, rule_count, columns_touched, cells_changed, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		record.TableSource,
		record.TableHash,
		record.RuleCount,
		record.ColumnsTouched,
		record.CellsChanged,
		record.DurationMS,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		s.logger.Error("Failed to insert audit record",
			zap.Error(err),
			zap.String("table_source", record.TableSource))
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	s.logger.Debug("Audit record inserted",
		zap.Int64("id", record.ID),
		zap.String("table_source", record.TableSource),
		zap.Int("cells_changed", record.CellsChanged))

	return nil
}

// Recent returns the most recent run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []Record
	query := `
		SELECT id, table_source, table_hash, rule_count, columns_touched, cells_changed, duration_ms, created_at
		FROM normalization_runs
		ORDER BY created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks credentials in a database URL for logging.
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if idx := strings.LastIndex(userPart, ":"); idx > strings.Index(userPart, "//") {
				parts[0] = userPart[:idx] + ":***"
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}

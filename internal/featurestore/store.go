// Package featurestore keeps the feature vectors of CPR signals for later
// meta-label training. Rows live in an in-memory DuckDB table that is
// exported to a parquet file after every write.
package featurestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
)

// Record is one logged signal observation.
type Record struct {
	ID          string
	Strategy    string
	Symbol      string
	Underlying  string
	BarTime     time.Time
	Bullish     bool
	Level       string
	EntryPrice  float64
	Target      float64
	StopLoss    float64
	Probability float64
	Accepted    bool
	Features    []float64
	// Label is 1 for a winning trade and 0 otherwise. None until the trade completes.
	Label optional.Option[int]
}

// Store is the append-only feature log.
type Store struct {
	db         *sql.DB
	outputPath string
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewStore creates a store exporting to outputPath. An empty path keeps the
// rows in memory only.
func NewStore(outputPath string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}

	return &Store{
		db:         nil,
		outputPath: outputPath,
		mu:         sync.Mutex{},
		logger:     log.Named("featurestore"),
	}
}

// Initialize opens DuckDB and reloads rows from an existing parquet export.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.outputPath), 0755); err != nil {
			return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to create feature store directory", err)
		}
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to open DuckDB connection", err)
	}

	s.db = db

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cpr_features (
			id TEXT PRIMARY KEY,
			strategy TEXT,
			symbol TEXT,
			underlying TEXT,
			bar_time TIMESTAMP,
			bullish BOOLEAN,
			level TEXT,
			entry_price DOUBLE,
			target DOUBLE,
			stop_loss DOUBLE,
			probability DOUBLE,
			accepted BOOLEAN,
			features TEXT,
			label INTEGER
		)
	`)
	if err != nil {
		s.db.Close()
		s.db = nil

		return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to create feature table", err)
	}

	if s.outputPath == "" {
		return nil
	}

	if _, err := os.Stat(s.outputPath); err == nil {
		_, err = s.db.Exec(fmt.Sprintf(`
			INSERT INTO cpr_features
			SELECT * FROM read_parquet('%s')
			ON CONFLICT (id) DO NOTHING
		`, s.outputPath))
		if err != nil {
			s.logger.Warn("Failed to reload feature export, starting empty", zap.Error(err))
		}
	}

	return nil
}

// Append stores a record and refreshes the export.
func (s *Store) Append(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New(errors.ErrCodeFeatureStoreFailed, "feature store not initialized")
	}

	var label sql.NullInt64
	if record.Label.IsSome() {
		label = sql.NullInt64{Int64: int64(record.Label.Unwrap()), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cpr_features (id, strategy, symbol, underlying, bar_time, bullish, level,
			entry_price, target, stop_loss, probability, accepted, features, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Strategy, record.Symbol, record.Underlying, record.BarTime, record.Bullish,
		record.Level, record.EntryPrice, record.Target, record.StopLoss, record.Probability,
		record.Accepted, encodeFeatures(record.Features), label)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to insert feature record", err)
	}

	return s.export()
}

// Label sets the outcome of the most recent unlabeled accepted record for symbol.
// It returns false when there is nothing to label.
func (s *Store) Label(ctx context.Context, symbol string, label int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return false, errors.New(errors.ErrCodeFeatureStoreFailed, "feature store not initialized")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cpr_features SET label = ?
		WHERE id = (
			SELECT id FROM cpr_features
			WHERE symbol = ? AND accepted AND label IS NULL
			ORDER BY bar_time DESC
			LIMIT 1
		)
	`, label, symbol)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to label feature record", err)
	}

	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, nil //nolint:nilerr // nothing labeled
	}

	return true, s.export()
}

// All returns every record in bar time order.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New(errors.ErrCodeFeatureStoreFailed, "feature store not initialized")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, symbol, underlying, bar_time, bullish, level, entry_price,
			target, stop_loss, probability, accepted, features, label
		FROM cpr_features ORDER BY bar_time ASC, id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query feature records", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			r        Record
			features string
			label    sql.NullInt64
		)

		if err := rows.Scan(&r.ID, &r.Strategy, &r.Symbol, &r.Underlying, &r.BarTime, &r.Bullish,
			&r.Level, &r.EntryPrice, &r.Target, &r.StopLoss, &r.Probability, &r.Accepted,
			&features, &label); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan feature record", err)
		}

		r.Features, err = decodeFeatures(features)
		if err != nil {
			return nil, err
		}

		r.Label = optional.None[int]()
		if label.Valid {
			r.Label = optional.Some(int(label.Int64))
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate feature records", err)
	}

	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, errors.New(errors.ErrCodeFeatureStoreFailed, "feature store not initialized")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cpr_features").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count feature records", err)
	}

	return count, nil
}

// OutputPath returns the parquet path.
func (s *Store) OutputPath() string {
	return s.outputPath
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to close feature store", err)
	}

	return nil
}

// export writes the table to the parquet file.
//
//nolint:funcorder // helper used by Append and Label
func (s *Store) export() error {
	if s.outputPath == "" {
		return nil
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM cpr_features ORDER BY bar_time ASC)
		TO '%s' (FORMAT PARQUET)
	`, s.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeatureStoreFailed, "failed to export features to parquet", err)
	}

	return nil
}

func encodeFeatures(features []float64) string {
	parts := make([]string, len(features))
	for i, f := range features {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}

	return strings.Join(parts, ",")
}

func decodeFeatures(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))

	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFeatureStoreFailed, err, "bad feature value %q", p)
		}

		out[i] = f
	}

	return out, nil
}

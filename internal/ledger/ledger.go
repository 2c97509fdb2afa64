// Package ledger persists trades. It is the single source of truth for trade
// state: every status change is one transaction guarded by the lifecycle's
// allowed source states.
package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-algo/internal/logger"
	"github.com/rxtech-lab/argo-algo/internal/types"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver selects the database engine.
type Driver string

const (
	DriverDuckDB Driver = "duckdb"
	DriverSQLite Driver = "sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const tradesTable = "trades"

var tradeColumns = []string{
	"id", "symbol", "side", "quantity", "price", "filled_price", "strategy", "status",
	"timestamp", "filled_timestamp", "order_id", "error_message", "stop_loss", "target",
	"underlying_symbol", "pnl", "exit_price", "exit_timestamp", "stop_order_id", "target_order_id",
}

// Ledger stores trades in a single table keyed by trade id.
type Ledger struct {
	db     *sql.DB
	driver Driver
	sq     squirrel.StatementBuilderType
	// writeMu serializes transactions; neither engine tolerates concurrent writers to one row.
	writeMu sync.Mutex
	logger  *logger.Logger
}

// Open connects to the ledger database and creates the schema.
func Open(driver Driver, dsn string, log *logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.NewNop()
	}

	if dsn == "" {
		dsn = MemoryDSN
	}

	driverName := string(driver)

	switch driver {
	case DriverDuckDB:
		if dsn == MemoryDSN {
			dsn = ""
		}
	case DriverSQLite:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported ledger driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeLedgerOpenFailed, err, "failed to open %s ledger", driver)
	}

	if driver == DriverSQLite {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeLedgerOpenFailed, err, "failed to connect to %s ledger", driver)
	}

	l := &Ledger{
		db:      db,
		driver:  driver,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		writeMu: sync.Mutex{},
		logger:  log.Named("ledger"),
	}

	if err := l.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return l, nil
}

func (l *Ledger) initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			filled_price DOUBLE,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			filled_timestamp TIMESTAMP,
			order_id TEXT,
			error_message TEXT,
			stop_loss DOUBLE,
			target DOUBLE,
			underlying_symbol TEXT,
			pnl DOUBLE,
			exit_price DOUBLE,
			exit_timestamp TIMESTAMP,
			stop_order_id TEXT,
			target_order_id TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerOpenFailed, "failed to create trades table", err)
	}

	if l.driver == DriverDuckDB {
		// DuckDB rewrites updates of indexed columns as delete+insert, which trips the primary key.
		return nil
	}

	if _, err := l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status)`); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerOpenFailed, "failed to create status index", err)
	}

	return nil
}

// Driver returns the database engine in use.
func (l *Ledger) Driver() Driver {
	return l.driver
}

// Close releases the database.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to close ledger", err)
	}

	return nil
}

// Create inserts a new PENDING trade.
func (l *Ledger) Create(ctx context.Context, trade types.Trade) error {
	if trade.ID == "" {
		return errors.New(errors.ErrCodeMissingParameter, "trade id is required")
	}

	if trade.Status != types.TradeStatusPending {
		return errors.NewInvalidTransitionError(trade.ID, "", string(trade.Status))
	}

	query, args, err := l.sq.Insert(tradesTable).Columns(tradeColumns...).Values(
		trade.ID, trade.Symbol, string(trade.Side), trade.Quantity, trade.Price,
		nullFloat(trade.FilledPrice), trade.Strategy, string(trade.Status),
		trade.Timestamp.UTC(), nullTime(trade.FilledTimestamp), trade.OrderID, trade.ErrorMessage,
		nullFloat(trade.StopLoss), nullFloat(trade.Target), trade.UnderlyingSymbol,
		nullFloat(trade.PnL), nullFloat(trade.ExitPrice), nullTime(trade.ExitTimestamp),
		trade.StopOrderID, trade.TargetOrderID,
	).ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to build insert", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to insert trade %s", trade.ID)
	}

	l.logger.Debug("Trade created", zap.String("trade_id", trade.ID), zap.String("symbol", trade.Symbol))

	return nil
}

// SetOrderID records the broker reference of a PENDING trade.
func (l *Ledger) SetOrderID(ctx context.Context, id, orderID string) error {
	return l.update(ctx, id, types.TradeStatusPending, map[string]any{"order_id": orderID})
}

// MarkFilled moves a PENDING trade to FILLED. It succeeds at most once per trade.
func (l *Ledger) MarkFilled(ctx context.Context, id string, filledPrice float64, at time.Time) error {
	return l.transition(ctx, id, types.TradeStatusFilled, map[string]any{
		"filled_price":     filledPrice,
		"filled_timestamp": at.UTC(),
	})
}

// MarkRejected moves a PENDING trade to REJECTED.
func (l *Ledger) MarkRejected(ctx context.Context, id, reason string) error {
	return l.transition(ctx, id, types.TradeStatusRejected, map[string]any{"error_message": reason})
}

// Cancel moves a trade to CANCELLED. A filled trade loses its fill.
func (l *Ledger) Cancel(ctx context.Context, id, reason string) error {
	return l.transition(ctx, id, types.TradeStatusCancelled, map[string]any{
		"error_message":    reason,
		"filled_price":     nil,
		"filled_timestamp": nil,
	})
}

// Activate moves a FILLED trade to ACTIVE, arming exit management. The broker
// ids of the exit bracket legs, if any, are recorded in the same transition.
func (l *Ledger) Activate(ctx context.Context, id, stopOrderID, targetOrderID string) error {
	return l.transition(ctx, id, types.TradeStatusActive, map[string]any{
		"stop_order_id":   stopOrderID,
		"target_order_id": targetOrderID,
	})
}

// MarkExited moves an ACTIVE trade to EXITED with its realized result.
func (l *Ledger) MarkExited(ctx context.Context, id string, exitPrice, pnl float64, at time.Time) error {
	return l.transition(ctx, id, types.TradeStatusExited, map[string]any{
		"exit_price":     exitPrice,
		"pnl":            pnl,
		"exit_timestamp": at.UTC(),
	})
}

// transition applies one lifecycle edge in its own transaction.
func (l *Ledger) transition(ctx context.Context, id string, to types.TradeStatus, set map[string]any) error {
	sources := types.SourcesOf(to)

	statuses := make([]string, len(sources))
	for i, s := range sources {
		statuses[i] = string(s)
	}

	set["status"] = string(to)

	query, args, err := l.sq.Update(tradesTable).SetMap(set).
		Where(squirrel.Eq{"id": id, "status": statuses}).ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to build transition", err)
	}

	return l.exec(ctx, id, string(to), query, args)
}

// update changes fields of a trade that must be in status.
func (l *Ledger) update(ctx context.Context, id string, status types.TradeStatus, set map[string]any) error {
	query, args, err := l.sq.Update(tradesTable).SetMap(set).
		Where(squirrel.Eq{"id": id, "status": string(status)}).ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to build update", err)
	}

	return l.exec(ctx, id, string(status), query, args)
}

func (l *Ledger) exec(ctx context.Context, id, to, query string, args []any) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to begin transaction", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to update trade %s", id)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		var current string

		statusQuery, statusArgs, _ := l.sq.Select("status").From(tradesTable).Where(squirrel.Eq{"id": id}).ToSql()
		scanErr := tx.QueryRowContext(ctx, statusQuery, statusArgs...).Scan(&current)
		_ = tx.Rollback()

		if scanErr == sql.ErrNoRows {
			return errors.Newf(errors.ErrCodeDataNotFound, "trade %s not found", id)
		}

		if scanErr != nil {
			return errors.Wrapf(errors.ErrCodeQueryFailed, scanErr, "failed to read status of trade %s", id)
		}

		return errors.NewInvalidTransitionError(id, current, to)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to commit trade %s", id)
	}

	l.logger.Debug("Trade updated", zap.String("trade_id", id), zap.String("status", to))

	return nil
}

// Get returns the trade with id.
func (l *Ledger) Get(ctx context.Context, id string) (optional.Option[types.Trade], error) {
	trades, err := l.query(ctx, l.sq.Select(tradeColumns...).From(tradesTable).Where(squirrel.Eq{"id": id}))
	if err != nil {
		return optional.None[types.Trade](), err
	}

	if len(trades) == 0 {
		return optional.None[types.Trade](), nil
	}

	return optional.Some(trades[0]), nil
}

// List returns trades matching filter, newest first.
func (l *Ledger) List(ctx context.Context, filter types.TradeFilter) ([]types.Trade, error) {
	q := l.sq.Select(tradeColumns...).From(tradesTable).OrderBy("timestamp DESC", "id ASC")

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}

		q = q.Where(squirrel.Eq{"status": statuses})
	}

	if filter.Strategy != "" {
		q = q.Where(squirrel.Eq{"strategy": filter.Strategy})
	}

	if filter.Symbol != "" {
		q = q.Where(squirrel.Eq{"symbol": filter.Symbol})
	}

	if !filter.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"timestamp": filter.Since.UTC()})
	}

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	return l.query(ctx, q)
}

// Pending returns trades awaiting a broker fill, oldest first.
func (l *Ledger) Pending(ctx context.Context) ([]types.Trade, error) {
	return l.query(ctx, l.sq.Select(tradeColumns...).From(tradesTable).
		Where(squirrel.Eq{"status": string(types.TradeStatusPending)}).OrderBy("timestamp ASC", "id ASC"))
}

// Open returns trades holding a live position, oldest first.
func (l *Ledger) Open(ctx context.Context) ([]types.Trade, error) {
	return l.query(ctx, l.sq.Select(tradeColumns...).From(tradesTable).
		Where(squirrel.Eq{"status": []string{string(types.TradeStatusFilled), string(types.TradeStatusActive)}}).
		OrderBy("timestamp ASC", "id ASC"))
}

// Monitorable returns ACTIVE trades with at least one exit level that no
// broker leg covers: derivative trades exited on an underlying's price, and
// spot trades whose stop or target leg could not be placed.
func (l *Ledger) Monitorable(ctx context.Context) ([]types.Trade, error) {
	return l.query(ctx, l.sq.Select(tradeColumns...).From(tradesTable).
		Where(squirrel.Eq{"status": string(types.TradeStatusActive)}).
		Where(squirrel.Or{squirrel.NotEq{"stop_loss": nil}, squirrel.NotEq{"target": nil}}).
		Where(squirrel.Or{
			squirrel.NotEq{"underlying_symbol": ""},
			squirrel.And{squirrel.NotEq{"stop_loss": nil}, squirrel.Eq{"stop_order_id": ""}},
			squirrel.And{squirrel.NotEq{"target": nil}, squirrel.Eq{"target_order_id": ""}},
		}).
		OrderBy("timestamp ASC", "id ASC"))
}

// RealizedPnLSince sums the P&L of trades exited at or after since.
func (l *Ledger) RealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	query, args, err := l.sq.Select("COALESCE(SUM(pnl), 0)").From(tradesTable).
		Where(squirrel.Eq{"status": string(types.TradeStatusExited)}).
		Where(squirrel.GtOrEq{"exit_timestamp": since.UTC()}).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build pnl query", err)
	}

	var total float64
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to sum realized pnl", err)
	}

	return total, nil
}

// CountSince counts trades created at or after since.
func (l *Ledger) CountSince(ctx context.Context, since time.Time) (int, error) {
	query, args, err := l.sq.Select("COUNT(*)").From(tradesTable).
		Where(squirrel.GtOrEq{"timestamp": since.UTC()}).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count trades", err)
	}

	return count, nil
}

func (l *Ledger) query(ctx context.Context, q squirrel.SelectBuilder) ([]types.Trade, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate trades", err)
	}

	return trades, nil
}

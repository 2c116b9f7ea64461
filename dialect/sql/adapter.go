package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/dbabstraction"
)

// Adapter is the SQL implementation of dbabstraction.Adapter.
//
// An Adapter owns one database handle and at most one live result. It is
// not safe for concurrent use; use one Adapter per goroutine.
type Adapter struct {
	cfg     Config
	dialect string
	id      string

	db     *sql.DB
	result *ResultSet

	status       bool
	lastInsertID int64
	typedParams  bool

	log           *slog.Logger
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	logSlow       bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDB makes the Adapter use an already opened handle instead of opening
// one on the first query. The Adapter takes ownership and closes it on
// Disconnect.
func WithDB(db *sql.DB) Option {
	return func(a *Adapter) {
		a.db = db
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.log = logger
	}
}

// WithTypedParams binds values with their native types instead of their
// text form.
func WithTypedParams() Option {
	return func(a *Adapter) {
		a.typedParams = true
	}
}

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) Option {
	return func(a *Adapter) {
		a.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(a *Adapter) {
		a.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements at warn level on the adapter logger.
func WithSlowQueryLog() Option {
	return func(a *Adapter) {
		a.slowHook = nil
		a.logSlow = true
	}
}

// New returns an Adapter for cfg. No connection is made until Connect or
// the first statement.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		cfg:           cfg,
		dialect:       cfg.Dialect(),
		id:            uuid.NewString(),
		stats:         &QueryStats{},
		slowThreshold: DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	a.log = a.log.With("adapter", a.id, "driver", cfg.Driver)
	if a.logSlow && a.slowHook == nil {
		a.slowHook = slowQueryLog(a.log)
	}
	return a, nil
}

// WithAdapter creates an Adapter, passes it to fn and disconnects it when
// fn returns, whatever the outcome.
func WithAdapter(ctx context.Context, cfg Config, fn func(*Adapter) error, opts ...Option) (rerr error) {
	a, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		rerr = errors.Join(rerr, a.Close())
	}()
	if err := a.Connect(ctx); err != nil {
		return err
	}
	return fn(a)
}

// Config returns the connection parameters.
func (a *Adapter) Config() Config { return a.cfg }

// Dialect returns the dialect used for placeholder rewriting.
func (a *Adapter) Dialect() string { return a.dialect }

// Stats returns the statement statistics of the adapter.
func (a *Adapter) Stats() *QueryStats { return a.stats }

// Connect opens the database handle and verifies it with a ping. It does
// nothing if the adapter is already connected.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := sql.Open(a.cfg.Driver, a.cfg.FormatDSN())
	if err != nil {
		return dbabstraction.NewConnectionError(a.cfg.Driver, err)
	}
	if !a.cfg.Persistent {
		db.SetMaxIdleConns(0)
	}
	if err := db.PingContext(ctx); err != nil {
		return dbabstraction.NewConnectionError(a.cfg.Driver, errors.Join(err, db.Close()))
	}
	a.db = db
	a.log.DebugContext(ctx, "connected", "database", a.cfg.Database, "host", a.cfg.Host)
	return nil
}

// Disconnect closes the database handle. It returns false if the adapter
// was not connected.
func (a *Adapter) Disconnect() bool {
	if a.db == nil {
		return false
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close database handle", "error", err)
	}
	a.db = nil
	a.log.Debug("disconnected")
	return true
}

// Close implements io.Closer. Closing a disconnected adapter is a no-op.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// Query runs a single statement inside its own transaction and returns its
// result. Named placeholders in query are bound from params; empty params
// run query as is.
//
// On failure the transaction is rolled back, the execution status is set
// to false and an *dbabstraction.ExecutionError is returned.
func (a *Adapter) Query(ctx context.Context, query string, params dbabstraction.Params) (dbabstraction.Cursor, error) {
	rs, err := a.query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (a *Adapter) query(ctx context.Context, query string, params dbabstraction.Params) (*ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dbabstraction.NewValidationError("query", dbabstraction.ErrEmptyQuery)
	}
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	if a.result != nil {
		a.result.Close()
	}
	rs := &ResultSet{query: query, withRows: returnsRows(query, a.dialect)}
	a.result = rs
	defer func() {
		if v := recover(); v != nil {
			a.status = false
			rs.Close()
			panic(v)
		}
	}()

	bound, args, err := a.bind(query, params)
	if err != nil {
		return nil, a.fail(ctx, rs, err)
	}
	start := time.Now()
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		return a.execute(ctx, tx, rs, bound, args)
	})
	a.record(ctx, bound, args, start, err, rs.withRows)
	if err != nil {
		return nil, a.fail(ctx, rs, err)
	}
	a.status = true
	a.lastInsertID = rs.lastInsertID
	a.log.DebugContext(ctx, "statement executed",
		"query", bound, "args", len(args), "rows", rs.RowCount(), "duration", time.Since(start))
	return rs, nil
}

// bind rewrites named placeholders and applies the binding policy.
func (a *Adapter) bind(query string, params dbabstraction.Params) (string, []any, error) {
	bound, args, err := rebind(query, a.dialect, params)
	if err != nil || a.typedParams || len(args) == 0 {
		return bound, args, err
	}
	args, err = stringifyArgs(args)
	return bound, args, err
}

// execute prepares and runs one statement within tx and fills rs.
func (a *Adapter) execute(ctx context.Context, tx *sql.Tx, rs *ResultSet, query string, args []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if rs.withRows {
		rows, err := stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		columns, out, err := scanRows(rows)
		if err != nil {
			return err
		}
		rs.columns, rs.rows = columns, out
		return rows.Close()
	}

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		rs.lastInsertID = id
	} else {
		a.log.DebugContext(ctx, "last insert id unavailable", "error", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		rs.rowsAffected = n
	} else {
		a.log.DebugContext(ctx, "rows affected unavailable", "error", err)
	}
	return nil
}

// inTx runs fn inside a new transaction. The transaction is committed if
// fn succeeds and rolled back otherwise, including when fn panics.
func (a *Adapter) inTx(ctx context.Context, fn func(*sql.Tx) error) (rerr error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
		if rerr == nil {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			a.log.WarnContext(ctx, "rollback failed", "error", err)
			rerr = errors.Join(rerr, &dbabstraction.RollbackError{Err: err})
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// fail records a failed statement and wraps err.
func (a *Adapter) fail(ctx context.Context, rs *ResultSet, err error) error {
	a.status = false
	rs.Close()
	a.log.DebugContext(ctx, "statement failed", "query", rs.query, "error", err)
	return dbabstraction.NewExecutionError(rs.query, err)
}

// Fetch returns the next row of the current result. Once the result is
// exhausted it is freed and Fetch returns false.
func (a *Adapter) Fetch() (dbabstraction.Row, bool) {
	if a.result == nil {
		return nil, false
	}
	row, ok := a.result.Next()
	if !ok {
		a.FreeResult()
		return nil, false
	}
	return row, true
}

// Select runs a SELECT on table and returns the number of rows read.
// Where, Columns and OrderBy clauses are interpolated as raw SQL; callers
// are responsible for escaping them.
func (a *Adapter) Select(ctx context.Context, table string, opts ...dbabstraction.SelectOption) (int64, error) {
	query, err := buildSelect(table, dbabstraction.NewSelectSpec(opts...))
	if err != nil {
		return 0, err
	}
	if _, err := a.query(ctx, query, nil); err != nil {
		return 0, err
	}
	return a.CountRows(), nil
}

// Insert inserts data into table and returns the last inserted id.
// Values are bound as :value1, :value2, ... in the order of data.
func (a *Adapter) Insert(ctx context.Context, table string, data dbabstraction.Fields) (int64, error) {
	query, params, err := buildInsert(table, data)
	if err != nil {
		return 0, err
	}
	if _, err := a.query(ctx, query, params); err != nil {
		return 0, err
	}
	return a.InsertID(), nil
}

// Update sets data on the rows of table matching conditions and returns
// the number of affected rows. conditions is raw SQL.
func (a *Adapter) Update(ctx context.Context, table string, data dbabstraction.Fields, conditions string) (int64, error) {
	query, params, err := buildUpdate(table, data, conditions)
	if err != nil {
		return 0, err
	}
	if _, err := a.query(ctx, query, params); err != nil {
		return 0, err
	}
	return a.AffectedRows(), nil
}

// Delete removes the rows of table matching conditions and returns the
// number of affected rows. conditions is raw SQL.
func (a *Adapter) Delete(ctx context.Context, table, conditions string) (int64, error) {
	query, err := buildDelete(table, conditions)
	if err != nil {
		return 0, err
	}
	if _, err := a.query(ctx, query, nil); err != nil {
		return 0, err
	}
	return a.AffectedRows(), nil
}

// InsertID returns the id generated by the last statement.
func (a *Adapter) InsertID() int64 { return a.lastInsertID }

// CountRows returns the number of rows of the last result.
func (a *Adapter) CountRows() int64 {
	if a.result == nil {
		return 0
	}
	return a.result.RowCount()
}

// AffectedRows returns the number of rows affected by the last statement.
func (a *Adapter) AffectedRows() int64 {
	if a.result == nil {
		return 0
	}
	return a.result.RowCount()
}

// FreeResult frees the rows of the last result. It returns false if no
// statement has run yet.
func (a *Adapter) FreeResult() bool {
	if a.result == nil {
		return false
	}
	a.result.Close()
	return true
}

// HasExecutionStatus reports whether the last statement succeeded.
func (a *Adapter) HasExecutionStatus() bool { return a.status }

var _ dbabstraction.Adapter = (*Adapter)(nil)

package sql

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/dbabstraction"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newMockAdapter(t *testing.T, cfg Config, opts ...Option) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if cfg.Driver == "" {
		cfg = Config{Driver: "sqlmock", DSN: "sqlmock"}
	}
	opts = append([]Option{WithDB(db), WithLogger(discardLogger())}, opts...)
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	return a, mock
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, dbabstraction.ErrInvalidConfig)

	a, err := New(NewConfig("localhost", "u", "p", "shop"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", a.Dialect())
	assert.Equal(t, "shop", a.Config().Database)
	assert.NotEmpty(t, a.id)
	assert.False(t, a.HasExecutionStatus())
	assert.False(t, a.Disconnect(), "never connected")
	assert.False(t, a.FreeResult(), "no statement ran")
	assert.Zero(t, a.CountRows())
	assert.Zero(t, a.AffectedRows())
	assert.Zero(t, a.InsertID())
	_, ok := a.Fetch()
	assert.False(t, ok, "no statement ran")
}

func TestAdapterInsertMap(t *testing.T) {
	a, mock := newMockAdapter(t, Config{})
	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO t (a,b) VALUES (?,?);").
		ExpectExec().
		WithArgs("1", "x").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := a.Insert(context.Background(), "t", dbabstraction.FieldsOf(map[string]any{"b": "x", "a": 1}))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterInsert(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{})

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO products (brand,code,active) VALUES (?,?,?);").
		ExpectExec().
		WithArgs("acme", "X1", "1").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	id, err := a.Insert(ctx, "products", dbabstraction.Fields{
		{Name: "brand", Value: "acme"},
		{Name: "code", Value: "X1"},
		{Name: "active", Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), a.InsertID())
	assert.Equal(t, int64(1), a.AffectedRows())
	assert.True(t, a.HasExecutionStatus())
	assert.Equal(t, int64(1), a.Stats().Stats().TotalExecs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterSelect(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{})

	mock.ExpectBegin()
	mock.ExpectPrepare("SELECT id, brand FROM products WHERE brand = 'acme' ORDER BY id LIMIT 2 OFFSET 1;").
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id", "brand"}).
			AddRow(int64(2), []byte("acme")).
			AddRow(int64(3), "acme"))
	mock.ExpectCommit()

	n, err := a.Select(ctx, "products",
		dbabstraction.Columns("id, brand"),
		dbabstraction.Where("brand = 'acme'"),
		dbabstraction.OrderBy("id"),
		dbabstraction.Limit(2),
		dbabstraction.Offset(1),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(2), a.CountRows())

	row, ok := a.Fetch()
	require.True(t, ok)
	assert.Equal(t, dbabstraction.Row{"id": int64(2), "brand": "acme"}, row)
	row, ok = a.Fetch()
	require.True(t, ok)
	assert.Equal(t, int64(3), row["id"])
	_, ok = a.Fetch()
	assert.False(t, ok)
	assert.Equal(t, int64(2), a.CountRows(), "row count survives exhaustion")

	snap := a.Stats().Stats()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Zero(t, snap.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterUpdateDelete(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{})

	mock.ExpectBegin()
	mock.ExpectPrepare("UPDATE products SET brand = ?, price = ? WHERE id = 3;").
		ExpectExec().
		WithArgs("acme", "9.5").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectPrepare("DELETE FROM products WHERE id = 3").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := a.Update(ctx, "products", dbabstraction.Fields{
		{Name: "brand", Value: "acme"},
		{Name: "price", Value: 9.5},
	}, "id = 3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = a.Delete(ctx, "products", "id = 3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), a.AffectedRows())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterQueryParams(t *testing.T) {
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare("SELECT * FROM products WHERE brand = ? AND id > ?").
			ExpectQuery().
			WithArgs("acme", "2").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
		mock.ExpectCommit()

		cur, err := a.Query(ctx, "SELECT * FROM products WHERE brand = :brand AND id > :id",
			dbabstraction.Params{":brand": "acme", "id": 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, cur.Columns())
		assert.Equal(t, int64(1), cur.RowCount())
		assert.Equal(t, "SELECT * FROM products WHERE brand = :brand AND id > :id", cur.Query())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("typed", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{}, WithTypedParams())
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO flags (id,on) VALUES (?,?);").
			ExpectExec().
			WithArgs(5, true).
			WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectCommit()

		_, err := a.Insert(ctx, "flags", dbabstraction.Fields{{Name: "id", Value: 5}, {Name: "on", Value: true}})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare("UPDATE products SET description = ? WHERE id = 1;").
			ExpectExec().
			WithArgs(nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := a.Update(ctx, "products", dbabstraction.Fields{{Name: "description", Value: nil}}, "id = 1")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		_, err := a.Query(ctx, "SELECT * FROM products WHERE id = :id AND brand = :brand", dbabstraction.Params{"id": 1})
		require.Error(t, err)
		assert.True(t, dbabstraction.IsExecutionError(err))
		assert.False(t, a.HasExecutionStatus())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapterNoPlaceholders(t *testing.T) {
	a, mock := newMockAdapter(t, Config{})
	_, err := a.Query(context.Background(), "DELETE FROM products WHERE id = ?", dbabstraction.Params{"id": 1})
	require.Error(t, err)
	assert.True(t, dbabstraction.IsExecutionError(err))
	assert.Contains(t, err.Error(), "no named placeholders")
	assert.False(t, a.HasExecutionStatus())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterBackslashLiteral(t *testing.T) {
	a, mock := newMockAdapter(t, Config{})
	mock.ExpectBegin()
	mock.ExpectPrepare("UPDATE customers SET rank = ? WHERE name = 'O\\'Brien';").
		ExpectExec().
		WithArgs("1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := a.Update(context.Background(), "customers", dbabstraction.Fields{{Name: "rank", Value: 1}}, "name = 'O\\'Brien'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// panicHandler panics when a record with message msg is logged.
type panicHandler struct{ msg string }

func (panicHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h panicHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		panic(h.msg)
	}
	return nil
}

func (h panicHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h panicHandler) WithGroup(string) slog.Handler      { return h }

func TestAdapterPanicRollsBack(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{}, WithLogger(slog.New(panicHandler{msg: "last insert id unavailable"})))

	mock.ExpectBegin()
	mock.ExpectPrepare("DELETE FROM products WHERE id = 1").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectPrepare("DELETE FROM products WHERE id = 2").
		ExpectExec().
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no insert id")))
	mock.ExpectRollback()

	_, err := a.Query(ctx, "DELETE FROM products WHERE id = 1", nil)
	require.NoError(t, err)
	require.True(t, a.HasExecutionStatus())

	assert.Panics(t, func() {
		_, _ = a.Query(ctx, "DELETE FROM products WHERE id = 2", nil)
	})
	assert.False(t, a.HasExecutionStatus())
	require.NotNil(t, a.result)
	assert.True(t, a.result.closed)
	assert.Equal(t, "DELETE FROM products WHERE id = 2", a.result.Query())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterPostgresPlaceholders(t *testing.T) {
	a, mock := newMockAdapter(t, Config{Driver: "postgres", DSN: "postgres://localhost/shop"})
	assert.Equal(t, "postgres", a.Dialect())

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO products (brand,code) VALUES ($1,$2);").
		ExpectExec().
		WithArgs("acme", "X1").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("LastInsertId is not supported by this driver")))
	mock.ExpectCommit()

	id, err := a.Insert(context.Background(), "products", dbabstraction.Fields{
		{Name: "brand", Value: "acme"},
		{Name: "code", Value: "X1"},
	})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.True(t, a.HasExecutionStatus())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterFailures(t *testing.T) {
	ctx := context.Background()
	const query = "DELETE FROM products WHERE id = 1"
	boom := errors.New("boom")

	t.Run("exec", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare(query).ExpectExec().WillReturnError(boom)
		mock.ExpectRollback()

		_, err := a.Delete(ctx, "products", "id = 1")
		require.Error(t, err)
		var execErr *dbabstraction.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, query, execErr.Query)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "queryString: "+query)
		assert.False(t, a.HasExecutionStatus())
		assert.Equal(t, int64(1), a.Stats().Stats().Errors)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("prepare", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare(query).WillReturnError(boom)
		mock.ExpectRollback()

		_, err := a.Query(ctx, query, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prepare: boom")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin().WillReturnError(boom)

		_, err := a.Query(ctx, query, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin: boom")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare(query).ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(boom)

		_, err := a.Query(ctx, query, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit: boom")
		assert.False(t, a.HasExecutionStatus())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare(query).ExpectExec().WillReturnError(boom)
		mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

		_, err := a.Query(ctx, query, nil)
		require.Error(t, err)
		var rbErr *dbabstraction.RollbackError
		require.ErrorAs(t, err, &rbErr)
		assert.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status_resets", func(t *testing.T) {
		a, mock := newMockAdapter(t, Config{})
		mock.ExpectBegin()
		mock.ExpectPrepare(query).ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectPrepare(query).ExpectExec().WillReturnError(boom)
		mock.ExpectRollback()

		_, err := a.Query(ctx, query, nil)
		require.NoError(t, err)
		assert.True(t, a.HasExecutionStatus())
		_, err = a.Query(ctx, query, nil)
		require.Error(t, err)
		assert.False(t, a.HasExecutionStatus())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapterValidation(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{})

	_, err := a.Query(ctx, "   ", nil)
	assert.ErrorIs(t, err, dbabstraction.ErrEmptyQuery)

	_, err = a.Insert(ctx, "products; DROP TABLE products", dbabstraction.Fields{{Name: "a", Value: 1}})
	assert.ErrorIs(t, err, dbabstraction.ErrInvalidIdentifier)

	_, err = a.Insert(ctx, "products", nil)
	assert.ErrorIs(t, err, dbabstraction.ErrNoData)

	_, err = a.Update(ctx, "products", dbabstraction.Fields{{Name: "a", Value: 1}}, "")
	assert.True(t, dbabstraction.IsValidationError(err))

	_, err = a.Delete(ctx, "products", "")
	assert.True(t, dbabstraction.IsValidationError(err))

	_, err = a.Select(ctx, "products", dbabstraction.Limit(-1))
	assert.True(t, dbabstraction.IsValidationError(err))

	require.NoError(t, mock.ExpectationsWereMet(), "no statement reaches the database")
}

func TestAdapterResultReplaced(t *testing.T) {
	ctx := context.Background()
	a, mock := newMockAdapter(t, Config{})

	mock.ExpectBegin()
	mock.ExpectPrepare("SELECT id FROM a").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectPrepare("SELECT id FROM b").ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	first, err := a.Query(ctx, "SELECT id FROM a", nil)
	require.NoError(t, err)
	second, err := a.Query(ctx, "SELECT id FROM b", nil)
	require.NoError(t, err)

	_, ok := first.Next()
	assert.False(t, ok, "previous result is freed")
	assert.False(t, first.Close())

	row, ok := a.Fetch()
	require.True(t, ok)
	assert.Equal(t, int64(9), row["id"])
	assert.True(t, a.FreeResult())
	_, ok = second.Next()
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterDisconnect(t *testing.T) {
	a, mock := newMockAdapter(t, Config{})
	require.NoError(t, a.Connect(context.Background()), "already connected")

	mock.ExpectClose()
	assert.True(t, a.Disconnect())
	assert.False(t, a.Disconnect())
	require.NoError(t, a.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapterConnectError(t *testing.T) {
	a, err := New(Config{Driver: "nosuchdriver", DSN: "x"}, WithLogger(discardLogger()))
	require.NoError(t, err)

	err = a.Connect(context.Background())
	require.Error(t, err)
	var connErr *dbabstraction.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "nosuchdriver", connErr.Driver)

	_, err = a.Query(context.Background(), "SELECT 1", nil)
	assert.True(t, dbabstraction.IsConnectionError(err))
}

func TestAdapterSlowQuery(t *testing.T) {
	var (
		slowQuery string
		slowArgs  []any
	)
	hook := func(_ context.Context, query string, args []any, _ time.Duration) {
		slowQuery, slowArgs = query, args
	}
	a, mock := newMockAdapter(t, Config{}, WithSlowThreshold(-time.Nanosecond), WithSlowQueryHook(hook))

	mock.ExpectBegin()
	mock.ExpectPrepare("DELETE FROM products WHERE id = ?").ExpectExec().
		WithArgs("4").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := a.Query(context.Background(), "DELETE FROM products WHERE id = :id", dbabstraction.Params{"id": 4})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM products WHERE id = ?", slowQuery)
	assert.Equal(t, []any{"4"}, slowArgs)
	assert.Equal(t, int64(1), a.Stats().Stats().SlowQueries)

	a.Stats().Reset()
	assert.Zero(t, a.Stats().Stats().TotalExecs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithAdapterError(t *testing.T) {
	err := WithAdapter(context.Background(), Config{}, func(*Adapter) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.ErrorIs(t, err, dbabstraction.ErrInvalidConfig)
}

func TestStatsSnapshot(t *testing.T) {
	snap := StatsSnapshot{TotalQueries: 1, TotalExecs: 3, TotalDuration: 8 * time.Millisecond}
	assert.Equal(t, 2*time.Millisecond, snap.AvgQueryDuration())
	assert.Equal(t, "queries=1 execs=3 duration=8ms avg=2ms slow=0 errors=0", snap.String())
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}

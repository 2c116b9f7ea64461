package sql

import (
	"database/sql"
	"fmt"

	"github.com/syssam/dbabstraction"
)

// ResultSet is the result handle of a single statement. Rows of
// row-returning statements are read in full before the transaction
// commits, so a ResultSet never holds a database connection.
type ResultSet struct {
	query        string
	columns      []string
	rows         []dbabstraction.Row
	pos          int
	withRows     bool
	rowsAffected int64
	lastInsertID int64
	closed       bool
}

// Query returns the SQL text that produced the result.
func (r *ResultSet) Query() string { return r.query }

// Columns returns the result column names.
func (r *ResultSet) Columns() []string { return r.columns }

// RowCount returns the number of rows read for row-returning statements,
// and the number of affected rows otherwise. It stays valid after Close.
func (r *ResultSet) RowCount() int64 {
	if r.withRows {
		return int64(len(r.rows))
	}
	return r.rowsAffected
}

// LastInsertID returns the id generated by the statement, or 0.
func (r *ResultSet) LastInsertID() int64 { return r.lastInsertID }

// Next returns the next row. It returns false once all rows were returned
// or the result was closed.
func (r *ResultSet) Next() (dbabstraction.Row, bool) {
	if r.closed || r.pos >= len(r.rows) {
		return nil, false
	}
	row := r.rows[r.pos]
	r.rows[r.pos] = nil
	r.pos++
	return row, true
}

// Close drops the unread rows. It returns false if the result was already
// closed.
func (r *ResultSet) Close() bool {
	if r.closed {
		return false
	}
	r.closed = true
	r.pos = len(r.rows)
	return true
}

// scanRows reads every row of rows into column-keyed maps. []byte values
// are copied into strings since the driver may reuse the buffer.
func scanRows(rows *sql.Rows) ([]string, []dbabstraction.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var out []dbabstraction.Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(dbabstraction.Row, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

var _ dbabstraction.Cursor = (*ResultSet)(nil)

package dbabstraction

import (
	"context"
	"sort"
)

// Adapter is the operation set every database backend exposes. It carries
// no behaviour; concrete implementations live under dialect/.
type Adapter interface {
	// Connect opens the underlying connection.
	Connect(ctx context.Context) error
	// Disconnect releases the connection. It returns false if there was none.
	Disconnect() bool
	// Query runs a single statement inside its own transaction.
	Query(ctx context.Context, query string, params Params) (Cursor, error)
	// Fetch returns the next row of the current result.
	Fetch() (Row, bool)
	// Select runs a SELECT and returns the number of rows.
	Select(ctx context.Context, table string, opts ...SelectOption) (int64, error)
	// Insert runs an INSERT and returns the last inserted id.
	Insert(ctx context.Context, table string, data Fields) (int64, error)
	// Update runs an UPDATE and returns the number of affected rows.
	Update(ctx context.Context, table string, data Fields, conditions string) (int64, error)
	// Delete runs a DELETE and returns the number of affected rows.
	Delete(ctx context.Context, table, conditions string) (int64, error)

	InsertID() int64
	CountRows() int64
	AffectedRows() int64
	FreeResult() bool
	HasExecutionStatus() bool
}

// Cursor is the result handle of the most recent statement.
type Cursor interface {
	// Query returns the SQL text that produced the result.
	Query() string
	// Columns returns the result column names, if any.
	Columns() []string
	// RowCount returns the number of rows returned, or affected for
	// statements that return no rows.
	RowCount() int64
	// LastInsertID returns the id generated by the statement, if any.
	LastInsertID() int64
	// Next returns the next row, or false once the result is exhausted.
	Next() (Row, bool)
	// Close frees the remaining rows. It returns false if already closed.
	Close() bool
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Params binds named placeholders to values. Keys may be written with or
// without the leading colon.
type Params map[string]any

// Field is a single column/value pair.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of column/value pairs, used by Insert and
// Update to keep the column order stable.
type Fields []Field

// FieldsOf converts a map into Fields sorted by column name.
func FieldsOf(m map[string]any) Fields {
	fs := make(Fields, 0, len(m))
	for k, v := range m {
		fs = append(fs, Field{Name: k, Value: v})
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
	return fs
}

// Names returns the column names in order.
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Values returns the values in order.
func (fs Fields) Values() []any {
	values := make([]any, len(fs))
	for i, f := range fs {
		values[i] = f.Value
	}
	return values
}

// SelectSpec holds the optional clauses of a SELECT built by Select.
// All string clauses are raw SQL and are interpolated as given.
type SelectSpec struct {
	Conditions string
	Fields     string
	Order      string
	Limit      *int
	Offset     *int
}

// SelectOption configures a SelectSpec.
type SelectOption func(*SelectSpec)

// Where sets the WHERE clause.
func Where(conditions string) SelectOption {
	return func(s *SelectSpec) {
		s.Conditions = conditions
	}
}

// Columns sets the selected field list. Defaults to "*".
func Columns(fields string) SelectOption {
	return func(s *SelectSpec) {
		s.Fields = fields
	}
}

// OrderBy sets the ORDER BY clause.
func OrderBy(order string) SelectOption {
	return func(s *SelectSpec) {
		s.Order = order
	}
}

// Limit sets the LIMIT clause.
func Limit(n int) SelectOption {
	return func(s *SelectSpec) {
		s.Limit = &n
	}
}

// Offset sets the OFFSET clause. It is ignored unless Limit is also set.
func Offset(n int) SelectOption {
	return func(s *SelectSpec) {
		s.Offset = &n
	}
}

// NewSelectSpec applies opts to an empty SelectSpec.
func NewSelectSpec(opts ...SelectOption) SelectSpec {
	var s SelectSpec
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

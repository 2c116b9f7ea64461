package dialect

import (
	"strconv"
	"strings"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// FromDriver returns the dialect of a database/sql driver name.
// Unknown drivers are treated as MySQL.
func FromDriver(driverName string) string {
	switch strings.ToLower(driverName) {
	case "postgres", "postgresql", "pgx", "pq", "lib/pq", "pg":
		return Postgres
	case "sqlite", "sqlite3", "modernc":
		return SQLite
	default:
		return MySQL
	}
}

// Placeholder returns the n-th (1-based) positional placeholder for d.
func Placeholder(d string, n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

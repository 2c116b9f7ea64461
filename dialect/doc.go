// Package dialect names the database families supported by dbabstraction.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - MySQL: MySQL/MariaDB database (the default)
//   - Postgres: PostgreSQL database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//	dialect.SQLite   = "sqlite"
//
// A dialect decides the positional placeholder style used when named
// parameters (":value1") are rewritten before execution:
//
//	dialect.Placeholder(dialect.MySQL, 1)    // "?"
//	dialect.Placeholder(dialect.Postgres, 2) // "$2"
//
// # Driver Names
//
// database/sql driver names do not always match the dialect. FromDriver
// resolves the common ones and falls back to MySQL:
//
//	dialect.FromDriver("pgx")    // dialect.Postgres
//	dialect.FromDriver("sqlite3") // dialect.SQLite
//
// # Sub-packages
//
//   - dialect/sql: the SQL adapter, statement builders and driver wiring
package dialect

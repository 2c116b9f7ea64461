package sql

import (
	"errors"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by pgx and some MySQL-compatible drivers.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// constraintKind describes how each driver reports one kind of violation.
type constraintKind struct {
	sqlState  string
	mysql     []uint16
	sqlite    []int
	fallbacks []string
}

var (
	uniqueKind = constraintKind{
		sqlState: pgUniqueViolation,
		mysql:    []uint16{mysqlDuplicateEntry},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		fallbacks: []string{
			"Error 1062",                 // MySQL (string fallback)
			"violates unique constraint", // Postgres (string fallback)
			"UNIQUE constraint failed",   // SQLite
		},
	}
	foreignKeyKind = constraintKind{
		sqlState: pgForeignKeyViolation,
		mysql:    []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		fallbacks: []string{
			"Error 1451",                      // MySQL (Cannot delete or update a parent row)
			"Error 1452",                      // MySQL (Cannot add or update a child row)
			"violates foreign key constraint", // Postgres
			"FOREIGN KEY constraint failed",   // SQLite
		},
	}
	checkKind = constraintKind{
		sqlState: pgCheckViolation,
		mysql:    []uint16{mysqlCheckConstraintViolate},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		fallbacks: []string{
			"Error 3819",                // MySQL
			"violates check constraint", // Postgres
			"CHECK constraint failed",   // SQLite
		},
	}
)

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueKind.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyKind.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkKind.match(err)
}

func (k constraintKind) match(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == k.sqlState {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && slices.Contains(k.mysql, myErr.Number) {
		return true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && slices.Contains(k.sqlite, liteErr.Code()) {
		return true
	}

	// Check for SQLSTATE code (pgx and others)
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == k.sqlState {
		return true
	}

	// Fallback to string matching for drivers that don't implement interfaces
	return containsAny(err.Error(), k.fallbacks...)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

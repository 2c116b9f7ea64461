package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/dbabstraction"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

func checkIdentifier(kind, s string) error {
	if !isValidIdentifier(s) {
		return dbabstraction.NewValidationError(kind, fmt.Errorf("%w: %q", dbabstraction.ErrInvalidIdentifier, s))
	}
	return nil
}

// buildSelect renders
//
//	SELECT <fields|*> FROM <table> [WHERE c] [ORDER BY o] [LIMIT l] [OFFSET o];
//
// OFFSET is only rendered together with LIMIT.
func buildSelect(table string, spec dbabstraction.SelectSpec) (string, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", err
	}
	if spec.Limit != nil && *spec.Limit < 0 {
		return "", dbabstraction.NewValidationError("limit", fmt.Errorf("negative value %d", *spec.Limit))
	}
	if spec.Offset != nil && *spec.Offset < 0 {
		return "", dbabstraction.NewValidationError("offset", fmt.Errorf("negative value %d", *spec.Offset))
	}
	fields := spec.Fields
	if fields == "" {
		fields = "*"
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(fields)
	b.WriteString(" FROM ")
	b.WriteString(table)
	if spec.Conditions != "" {
		b.WriteString(" WHERE ")
		b.WriteString(spec.Conditions)
	}
	if spec.Order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(spec.Order)
	}
	if spec.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*spec.Limit))
		if spec.Offset != nil {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(*spec.Offset))
		}
	}
	b.WriteByte(';')
	return b.String(), nil
}

// buildInsert renders INSERT INTO <table> (<a,b>) VALUES (<:value1,:value2>);
func buildInsert(table string, data dbabstraction.Fields) (string, dbabstraction.Params, error) {
	if err := checkData(table, data); err != nil {
		return "", nil, err
	}
	keys, params := prepareValues(data)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		table, strings.Join(data.Names(), ","), strings.Join(keys, ","))
	return query, params, nil
}

// buildUpdate renders UPDATE <table> SET a = :value1, b = :value2 WHERE <conditions>;
func buildUpdate(table string, data dbabstraction.Fields, conditions string) (string, dbabstraction.Params, error) {
	if err := checkData(table, data); err != nil {
		return "", nil, err
	}
	if err := checkConditions(conditions); err != nil {
		return "", nil, err
	}
	keys, params := prepareValues(data)
	sets := make([]string, len(data))
	for i, f := range data {
		sets[i] = f.Name + " = " + keys[i]
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s;", table, strings.Join(sets, ", "), conditions)
	return query, params, nil
}

// buildDelete renders DELETE FROM <table> WHERE <conditions>
func buildDelete(table, conditions string) (string, error) {
	if err := checkIdentifier("table", table); err != nil {
		return "", err
	}
	if err := checkConditions(conditions); err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, conditions), nil
}

func checkData(table string, data dbabstraction.Fields) error {
	if err := checkIdentifier("table", table); err != nil {
		return err
	}
	if len(data) == 0 {
		return dbabstraction.NewValidationError("data", dbabstraction.ErrNoData)
	}
	seen := make(map[string]struct{}, len(data))
	for _, f := range data {
		if err := checkIdentifier("column", f.Name); err != nil {
			return err
		}
		if _, ok := seen[f.Name]; ok {
			return dbabstraction.NewValidationError("column", fmt.Errorf("duplicate column %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func checkConditions(conditions string) error {
	if strings.TrimSpace(conditions) == "" {
		return dbabstraction.NewValidationError("conditions", errors.New("conditions are required"))
	}
	return nil
}

package sql

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/syssam/dbabstraction"
	"github.com/syssam/dbabstraction/dialect"
)

// placeholderPrefix is the name prefix of the generated value placeholders.
const placeholderPrefix = "value"

// timeLayout is the text form of time.Time values under text binding.
const timeLayout = "2006-01-02 15:04:05.999999"

type nameToken struct {
	name  string
	start int
	end   int
}

// prepareValues generates one ":valueN" placeholder per field, numbered
// from 1 in the order of fs, and the params binding them.
func prepareValues(fs dbabstraction.Fields) ([]string, dbabstraction.Params) {
	keys := make([]string, len(fs))
	params := make(dbabstraction.Params, len(fs))
	for i, f := range fs {
		key := ":" + placeholderPrefix + strconv.Itoa(i+1)
		keys[i] = key
		params[key] = f.Value
	}
	return keys, params
}

// rebind rewrites :named parameters to the positional placeholders of d and
// returns the arguments in placeholder order. Params given to a query
// without any named placeholder are an error.
func rebind(query, d string, params dbabstraction.Params) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}
	toks, err := findNamedParams(query, backslashEscapes(d))
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return "", nil, fmt.Errorf("dialect/sql: %d parameter(s) given but the query has no named placeholders", len(params))
	}
	lookup := make(map[string]any, len(params))
	for k, v := range params {
		lookup[strings.TrimPrefix(k, ":")] = v
	}
	var b strings.Builder
	b.Grow(len(query))
	args := make([]any, 0, len(toks))
	last := 0
	for _, t := range toks {
		b.WriteString(query[last:t.start])
		v, ok := lookup[t.name]
		if !ok {
			return "", nil, fmt.Errorf("dialect/sql: missing value for :%s", t.name)
		}
		args = append(args, v)
		b.WriteString(dialect.Placeholder(d, len(args)))
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

// backslashEscapes reports whether a backslash escapes the next character
// inside string literals of d.
func backslashEscapes(d string) bool {
	return d == dialect.MySQL
}

// findNamedParams scans query for :name tokens, skipping quoted strings,
// quoted identifiers, comments and PostgreSQL :: casts.
func findNamedParams(query string, backslash bool) ([]nameToken, error) {
	var out []nameToken
	i := 0
	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'', '"', '`':
			j, err := skipQuoted(query, i+w, r, backslash && r != '`')
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				i = skipLineComment(query, i+2)
				continue
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j, err := skipBlockComment(query, i+2)
				if err != nil {
					return nil, err
				}
				i = j
				continue
			}
		case ':':
			if strings.HasPrefix(query[i:], "::") {
				i += 2
				continue
			}
			name, end := parseIdent(query, i+1)
			if name != "" {
				out = append(out, nameToken{name: name, start: i, end: end})
				i = end
				continue
			}
		}
		i += w
	}
	return out, nil
}

// skipQuoted skips to the end of a string opened by quote. A doubled quote
// is an escaped quote, and so is a backslash-prefixed one if backslash is set.
func skipQuoted(s string, i int, quote rune, backslash bool) (int, error) {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		if backslash && r == '\\' {
			if i < len(s) {
				_, w = utf8.DecodeRuneInString(s[i:])
				i += w
			}
			continue
		}
		if r == quote {
			if i < len(s) && rune(s[i]) == quote {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("dialect/sql: unterminated %c-quoted text", quote)
}

func skipLineComment(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) (int, error) {
	if j := strings.Index(s[i:], "*/"); j >= 0 {
		return i + j + 2, nil
	}
	return 0, fmt.Errorf("dialect/sql: unterminated block comment")
}

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		i += w
	}
	return s[start:i], i
}

// stringifyArgs converts every argument to its text form. nil stays nil so
// that it binds as SQL NULL.
func stringifyArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, v := range args {
		s, err := stringify(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func stringify(v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		dv, err := valuer.Value()
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: resolve %T: %w", v, err)
		}
		v = dv
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, nil
			}
			rv = rv.Elem()
		}
		return stringify(rv.Interface())
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		return v.UTC().Format(timeLayout), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

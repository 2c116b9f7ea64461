package sql

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// rowKeywords are the leading keywords of statements that return rows.
var rowKeywords = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"SHOW":     {},
	"PRAGMA":   {},
	"EXPLAIN":  {},
	"DESCRIBE": {},
	"DESC":     {},
	"VALUES":   {},
	"TABLE":    {},
}

var returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)

// returnsRows reports whether query produces a result set, judged by its
// first keyword or a RETURNING clause. String literals are skipped using
// the escaping rules of dialect d.
func returnsRows(query, d string) bool {
	kw := firstKeyword(query)
	if _, ok := rowKeywords[cases.Upper(language.Und).String(kw)]; ok {
		return true
	}
	return returningRe.MatchString(stripLiterals(query, backslashEscapes(d)))
}

// firstKeyword returns the first word of query after leading whitespace,
// comments and opening parentheses.
func firstKeyword(query string) string {
	s := query
	for {
		s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(s, "--"):
			s = s[skipLineComment(s, 2):]
		case strings.HasPrefix(s, "/*"):
			j, err := skipBlockComment(s, 2)
			if err != nil {
				return ""
			}
			s = s[j:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
			if end < 0 {
				return s
			}
			return s[:end]
		}
	}
}

// stripLiterals blanks out quoted text so keywords inside strings do not
// match. Unterminated quotes leave the rest of the query untouched.
func stripLiterals(query string, backslash bool) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); {
		c := query[i]
		if c == '\'' || c == '"' || c == '`' {
			j, err := skipQuoted(query, i+1, rune(c), backslash && c != '`')
			if err != nil {
				b.WriteString(query[i:])
				break
			}
			b.WriteString(strings.Repeat(" ", j-i))
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

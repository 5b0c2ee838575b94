package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// FROM body runs up to the first clause keyword or the end of the text.
	fromRe = regexp.MustCompile(`(?is)\bFROM\s+(.*?)(?:\bWHERE\b|\bGROUP\b|\bORDER\b|\bLIMIT\b|$)`)
	joinRe = regexp.MustCompile(`(?i)\bJOIN\b`)

	ErrNoFrom = errors.New("sql: no FROM clause")
)

// FromClause locates the table list of a statement. Start and End are byte
// offsets of the body in the source text; Items are the operands between
// JOIN keywords, trimmed.
type FromClause struct {
	Start int
	End   int
	Items []string
}

// ParseFrom finds the first FROM body in s. Trailing whitespace and
// semicolons are not part of the body.
func ParseFrom(s string) (*FromClause, error) {
	m := fromRe.FindStringSubmatchIndex(s)
	if m == nil {
		return nil, ErrNoFrom
	}
	start, end := m[2], m[3]
	for end > start && (s[end-1] == ';' || s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	if end == start {
		return nil, ErrNoFrom
	}

	var items []string
	for _, p := range joinRe.Split(s[start:end], -1) {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return &FromClause{Start: start, End: end, Items: items}, nil
}

// Joined reports whether the clause has more than one JOIN operand.
func (fc *FromClause) Joined() bool {
	return len(fc.Items) > 1
}

// Rewrite returns s with the FROM body replaced by the items joined with
// JOIN, in reverse order when reverse is set.
func (fc *FromClause) Rewrite(s string, reverse bool) string {
	items := append([]string(nil), fc.Items...)
	if reverse {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return s[:fc.Start] + strings.Join(items, " JOIN ") + s[fc.End:]
}

// CountJoins is the collector's join complexity heuristic: occurrences of
// JOIN plus commas, anywhere in the text.
func CountJoins(query string) int {
	upper := strings.ToUpper(query)
	return strings.Count(upper, "JOIN") + strings.Count(upper, ",")
}

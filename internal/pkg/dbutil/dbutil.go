package dbutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns gendry output into postgres placeholders. gendry renders
// `_limit` as "LIMIT ?,?" with offset first, postgres wants LIMIT n OFFSET m.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// BuildUpsert renders an INSERT ... ON CONFLICT DO UPDATE with "?"
// placeholders. Columns are emitted in sorted order. Columns listed in
// conflict are never updated; keep lists extra columns left untouched.
func BuildUpsert(table string, data map[string]interface{}, conflict []string, keep ...string) (string, []interface{}) {
	cols := make([]string, 0, len(data))
	for col := range data {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	fixed := make(map[string]struct{}, len(conflict)+len(keep))
	for _, col := range conflict {
		fixed[col] = struct{}{}
	}
	for _, col := range keep {
		fixed[col] = struct{}{}
	}
	args := make([]interface{}, 0, len(cols))
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		args = append(args, data[col])
		if _, ok := fixed[col]; !ok {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	b.WriteString(") ON CONFLICT (")
	b.WriteString(strings.Join(conflict, ", "))
	if len(updates) == 0 {
		b.WriteString(") DO NOTHING")
	} else {
		b.WriteString(") DO UPDATE SET ")
		b.WriteString(strings.Join(updates, ", "))
	}
	return b.String(), args
}

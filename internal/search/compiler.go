// Package search compiles the path-encoded search DSL (spec §4.6) into a
// SQL predicate set over a resource type's main and auxiliary tables.
package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/schema"
)

// Op is a search DSL operator.
type Op string

const (
	OpExact      Op = "exact"
	OpStartswith Op = "startswith"
	OpContains   Op = "contains"
	OpGE         Op = "ge"
	OpGT         Op = "gt"
	OpLE         Op = "le"
	OpLT         Op = "lt"
	OpNE         Op = "ne"
	OpShow       Op = "show"
	OpShowAll    Op = "show_all"
	OpSort       Op = "sort"
	OpOffset     Op = "offset"
	OpLimit      Op = "limit"
)

// arity is the number of value tokens each operator consumes, beyond its
// own name token.
var arity = map[Op]int{
	OpExact: 2, OpStartswith: 2, OpContains: 2,
	OpGE: 2, OpGT: 2, OpLE: 2, OpLT: 2, OpNE: 2,
	OpShow: 1, OpShowAll: 0, OpSort: 1, OpOffset: 1, OpLimit: 1,
}

// ParseError reports a malformed query token stream.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "search: " + e.Reason }

// predicate is one parsed comparison token-pair.
type predicate struct {
	op    Op
	key   string
	value string
}

// Query is the fully parsed, still backend-agnostic intent of a search
// path. Compile turns it into SQL.
type Query struct {
	Exact       []predicate
	Joined      []predicate
	ShowFields  []string
	ShowAll     bool
	SortKeys    []string
	Offset      int
	Limit       int
	HasOffset   bool
	HasLimit    bool
}

// Parse tokenizes a URL-decoded search path tail (the part after
// /{type}/search/) into a Query. rawPath is the undecoded path segment as
// received from the router; Parse URL-decodes each token itself so values
// containing '/' must already have been percent-encoded by the caller.
func Parse(rawPath string) (Query, error) {
	tokens := strings.Split(strings.Trim(rawPath, "/"), "/")
	if len(tokens) == 1 && tokens[0] == "" {
		return Query{}, nil
	}
	decoded := make([]string, len(tokens))
	for i, tok := range tokens {
		d, err := url.PathUnescape(tok)
		if err != nil {
			return Query{}, &ParseError{Reason: fmt.Sprintf("invalid percent-encoding in token %q", tok)}
		}
		decoded[i] = d
	}

	var q Query
	i := 0
	for i < len(decoded) {
		op := Op(decoded[i])
		n, known := arity[op]
		if !known {
			return Query{}, &ParseError{Reason: fmt.Sprintf("unknown operator %q", op)}
		}
		if i+1+n > len(decoded) {
			return Query{}, &ParseError{Reason: fmt.Sprintf("operator %q missing arguments", op)}
		}
		args := decoded[i+1 : i+1+n]
		i += 1 + n

		switch op {
		case OpExact:
			q.Exact = append(q.Exact, predicate{op: op, key: args[0], value: args[1]})
		case OpStartswith, OpContains, OpGE, OpGT, OpLE, OpLT, OpNE:
			q.Joined = append(q.Joined, predicate{op: op, key: args[0], value: args[1]})
		case OpShow:
			q.ShowFields = append(q.ShowFields, args[0])
		case OpShowAll:
			q.ShowAll = true
		case OpSort:
			q.SortKeys = append(q.SortKeys, args[0])
		case OpOffset:
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return Query{}, &ParseError{Reason: fmt.Sprintf("offset %q is not an integer", args[0])}
			}
			q.Offset, q.HasOffset = v, true
		case OpLimit:
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return Query{}, &ParseError{Reason: fmt.Sprintf("limit %q is not an integer", args[0])}
			}
			q.Limit, q.HasLimit = v, true
		}
	}
	return q, nil
}

// Plan is a compiled query ready to execute: SQL text, positional
// arguments, and the projection it implies.
type Plan struct {
	SQL        string
	Args       []any
	ShowFields []string
	ShowAll    bool
}

// Compile builds the SQL for resourceType's search over its main/aux
// tables. flat resolves leaf names to their declared type so numeric
// comparisons coerce the query's string values before binding (spec
// §4.6's type-coercion rule). Collation for startswith/contains is locked
// to ASCII lowercase (spec §9 open question b).
func Compile(resourceType string, names layout.Names, flat schema.FlatFieldMap, q Query) (Plan, error) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	mainAlias := "m"
	var wheres []string
	var joins []string

	if len(q.Exact) > 0 {
		gin := buildContainment(q.Exact, flat)
		wheres = append(wheres, fmt.Sprintf("%s.search @> %s::jsonb", mainAlias, bind(gin)))
	}

	for i, p := range q.Joined {
		alias := fmt.Sprintf("j%d", i)
		joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.id = %s.id", layoutQuote(names.AuxTable), alias, mainAlias, alias))
		value := coerceValue(p.key, p.value, flat)
		col := fmt.Sprintf("%s.data->>'%s'", alias, escapeJSONKey(p.key))
		switch p.op {
		case OpStartswith:
			wheres = append(wheres, fmt.Sprintf("lower(%s) LIKE %s", col, bind(escapeLike(lowerIfString(value))+"%")))
		case OpContains:
			wheres = append(wheres, fmt.Sprintf("lower(%s) LIKE %s", col, bind("%"+escapeLike(lowerIfString(value))+"%")))
		case OpGE:
			wheres = append(wheres, fmt.Sprintf("%s >= %s", castForCompare(col, value), bind(lowerIfString(value))))
		case OpGT:
			wheres = append(wheres, fmt.Sprintf("%s > %s", castForCompare(col, value), bind(lowerIfString(value))))
		case OpLE:
			wheres = append(wheres, fmt.Sprintf("%s <= %s", castForCompare(col, value), bind(lowerIfString(value))))
		case OpLT:
			wheres = append(wheres, fmt.Sprintf("%s < %s", castForCompare(col, value), bind(lowerIfString(value))))
		case OpNE:
			wheres = append(wheres, fmt.Sprintf("%s <> %s", castForCompare(col, value), bind(lowerIfString(value))))
		}
	}

	var orderBy []string
	for _, key := range q.SortKeys {
		if key == "id" {
			orderBy = append(orderBy, fmt.Sprintf("%s.id", mainAlias))
			continue
		}
		orderBy = append(orderBy, fmt.Sprintf("%s.data->>'%s'", mainAlias, escapeJSONKey(key)))
	}

	sql := fmt.Sprintf("SELECT DISTINCT %s.id FROM %s %s", mainAlias, layoutQuote(names.MainTable), mainAlias)
	if len(joins) > 0 {
		sql += " " + strings.Join(joins, " ")
	}
	if len(wheres) > 0 {
		sql += " WHERE " + strings.Join(wheres, " AND ")
	}
	if len(orderBy) > 0 {
		sql += " ORDER BY " + strings.Join(orderBy, ", ")
	} else {
		sql += fmt.Sprintf(" ORDER BY %s.id", mainAlias)
	}
	if q.HasLimit {
		sql += fmt.Sprintf(" LIMIT %s", bind(q.Limit))
	}
	if q.HasOffset {
		sql += fmt.Sprintf(" OFFSET %s", bind(q.Offset))
	}

	return Plan{SQL: sql, Args: args, ShowFields: q.ShowFields, ShowAll: q.ShowAll}, nil
}

// buildContainment folds a set of exact predicates into the list-of-
// single-key-objects shape the shredded "search" column was built from
// (spec §4.2/§4.6): one single-key object per leaf, values lowercased for
// the case-insensitive containment match.
func buildContainment(preds []predicate, flat schema.FlatFieldMap) []map[string]any {
	out := make([]map[string]any, 0, len(preds))
	for _, p := range preds {
		v := coerceValue(p.key, p.value, flat)
		out = append(out, map[string]any{p.key: lowerIfString(v)})
	}
	return out
}

func coerceValue(leaf, raw string, flat schema.FlatFieldMap) any {
	if flat != nil && flat.IsNumeric(leaf) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

func lowerIfString(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

func castForCompare(col string, value any) string {
	if _, ok := value.(float64); ok {
		return fmt.Sprintf("(%s)::numeric", col)
	}
	return fmt.Sprintf("lower(%s)", col)
}

func escapeLike(v any) string {
	s, _ := v.(string)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func escapeJSONKey(k string) string {
	return strings.ReplaceAll(k, "'", "''")
}

func layoutQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

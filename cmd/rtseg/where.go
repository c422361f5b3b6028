package main

import (
	"fmt"
	"strings"

	"github.com/hupe1980/rtseg/predicate"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// operators in match order; two-character operators come first.
var operators = []string{">=", "<=", "!=", "=", ">", "<", "~"}

// parseWhere turns filter expressions such as "user=alice", "clicks>=10" or
// "title~real time" into one predicate. Several expressions are combined
// with AND. The literal null compares against null entries.
func parseWhere(s *schema.Schema, exprs []string) (*predicate.Predicate, error) {
	var preds []predicate.Predicate
	for _, e := range exprs {
		p, err := parseCondition(s, e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return &preds[0], nil
	default:
		p := predicate.And(preds...)
		return &p, nil
	}
}

func parseCondition(s *schema.Schema, expr string) (predicate.Predicate, error) {
	pos, op := -1, ""
	for i := 0; i < len(expr) && pos < 0; i++ {
		for _, o := range operators {
			if strings.HasPrefix(expr[i:], o) {
				pos, op = i, o
				break
			}
		}
	}
	if pos <= 0 {
		return predicate.Predicate{}, fmt.Errorf("filter %q: want <column><op><value> with op one of %s", expr, strings.Join(operators, " "))
	}

	col := strings.TrimSpace(expr[:pos])
	raw := strings.TrimSpace(expr[pos+len(op):])
	f, ok := s.Field(col)
	if !ok {
		return predicate.Predicate{}, fmt.Errorf("filter %q: unknown column %q", expr, col)
	}

	if op == "~" {
		return predicate.TextMatch(col, raw), nil
	}
	if strings.EqualFold(raw, "null") {
		switch op {
		case "=":
			return predicate.IsNull(col), nil
		case "!=":
			return predicate.IsNotNull(col), nil
		}
	}

	v, err := schema.Convert(row.String(raw), f.DataType)
	if err != nil {
		return predicate.Predicate{}, fmt.Errorf("filter %q: %w", expr, err)
	}
	switch op {
	case "=":
		return predicate.Eq(col, v), nil
	case "!=":
		return predicate.NotEq(col, v), nil
	case ">":
		return predicate.GreaterThan(col, v), nil
	case "<":
		return predicate.LessThan(col, v), nil
	case ">=":
		return predicate.Range(col, &v, nil, true, false), nil
	default: // "<="
		return predicate.Range(col, nil, &v, false, true), nil
	}
}

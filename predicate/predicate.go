package predicate

import (
	"fmt"
	"strings"

	"github.com/hupe1980/rtseg/row"
)

// Kind identifies a predicate type.
type Kind uint8

const (
	KindEq Kind = iota + 1
	KindNotEq
	KindIn
	KindNotIn
	KindRange
	KindIsNull
	KindIsNotNull
	KindTextMatch
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindEq:
		return "EQ"
	case KindNotEq:
		return "NOT_EQ"
	case KindIn:
		return "IN"
	case KindNotIn:
		return "NOT_IN"
	case KindRange:
		return "RANGE"
	case KindIsNull:
		return "IS_NULL"
	case KindIsNotNull:
		return "IS_NOT_NULL"
	case KindTextMatch:
		return "TEXT_MATCH"
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Predicate is a filter on one column, or a conjunction or disjunction of
// filters.
//
// Value predicates never match null entries: a document whose column is null
// matches neither Eq(c, x) nor NotEq(c, x).
type Predicate struct {
	Kind   Kind
	Column string

	// Values holds the operand of Eq and NotEq, or the set of In and NotIn.
	Values []row.Value

	// Lo and Hi bound a Range. A nil bound is unbounded.
	Lo, Hi       *row.Value
	IncLo, IncHi bool

	// Query holds the terms of a TextMatch.
	Query string

	// Children of And and Or.
	Children []Predicate
}

// Eq matches documents whose value equals v. On a multi-value column any
// element may match.
func Eq(column string, v row.Value) Predicate {
	return Predicate{Kind: KindEq, Column: column, Values: []row.Value{v}}
}

// NotEq matches non-null documents that do not equal v. On a multi-value
// column no element may equal v.
func NotEq(column string, v row.Value) Predicate {
	return Predicate{Kind: KindNotEq, Column: column, Values: []row.Value{v}}
}

// In matches documents equal to any of vals.
func In(column string, vals ...row.Value) Predicate {
	return Predicate{Kind: KindIn, Column: column, Values: vals}
}

// NotIn matches non-null documents equal to none of vals.
func NotIn(column string, vals ...row.Value) Predicate {
	return Predicate{Kind: KindNotIn, Column: column, Values: vals}
}

// Range matches documents within the bounds.
func Range(column string, lo, hi *row.Value, incLo, incHi bool) Predicate {
	return Predicate{Kind: KindRange, Column: column, Lo: lo, Hi: hi, IncLo: incLo, IncHi: incHi}
}

// GreaterThan matches documents strictly above v.
func GreaterThan(column string, v row.Value) Predicate {
	return Range(column, &v, nil, false, false)
}

// LessThan matches documents strictly below v.
func LessThan(column string, v row.Value) Predicate {
	return Range(column, nil, &v, false, false)
}

// Between matches documents in [lo, hi].
func Between(column string, lo, hi row.Value) Predicate {
	return Range(column, &lo, &hi, true, true)
}

// IsNull matches documents whose column is null.
func IsNull(column string) Predicate {
	return Predicate{Kind: KindIsNull, Column: column}
}

// IsNotNull matches documents whose column is not null.
func IsNotNull(column string) Predicate {
	return Predicate{Kind: KindIsNotNull, Column: column}
}

// TextMatch matches documents containing every term of query.
func TextMatch(column, query string) Predicate {
	return Predicate{Kind: KindTextMatch, Column: column, Query: query}
}

// And matches documents matching every child.
func And(children ...Predicate) Predicate {
	return Predicate{Kind: KindAnd, Children: children}
}

// Or matches documents matching any child.
func Or(children ...Predicate) Predicate {
	return Predicate{Kind: KindOr, Children: children}
}

// String renders the predicate in a SQL-like form.
func (p Predicate) String() string {
	switch p.Kind {
	case KindEq:
		return fmt.Sprintf("%s = %s", p.Column, p.Values[0])
	case KindNotEq:
		return fmt.Sprintf("%s != %s", p.Column, p.Values[0])
	case KindIn, KindNotIn:
		vals := make([]string, len(p.Values))
		for i, v := range p.Values {
			vals[i] = v.String()
		}
		op := "IN"
		if p.Kind == KindNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", p.Column, op, strings.Join(vals, ", "))
	case KindRange:
		lo, hi := "(*", "*)"
		if p.Lo != nil {
			lo = "(" + p.Lo.String()
			if p.IncLo {
				lo = "[" + p.Lo.String()
			}
		}
		if p.Hi != nil {
			hi = p.Hi.String() + ")"
			if p.IncHi {
				hi = p.Hi.String() + "]"
			}
		}
		return fmt.Sprintf("%s IN %s, %s", p.Column, lo, hi)
	case KindIsNull:
		return p.Column + " IS NULL"
	case KindIsNotNull:
		return p.Column + " IS NOT NULL"
	case KindTextMatch:
		return fmt.Sprintf("TEXT_MATCH(%s, %q)", p.Column, p.Query)
	case KindAnd, KindOr:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = "(" + c.String() + ")"
		}
		return strings.Join(parts, " "+p.Kind.String()+" ")
	}
	return p.Kind.String()
}

func (p Predicate) validate() error {
	switch p.Kind {
	case KindEq, KindNotEq:
		if len(p.Values) != 1 {
			return fmt.Errorf("%w: %s needs one value", ErrInvalidPredicate, p.Kind)
		}
	case KindIn, KindNotIn:
		if len(p.Values) == 0 {
			return fmt.Errorf("%w: %s needs values", ErrInvalidPredicate, p.Kind)
		}
	case KindRange, KindIsNull, KindIsNotNull, KindTextMatch:
	case KindAnd, KindOr:
		if len(p.Children) == 0 {
			return fmt.Errorf("%w: %s needs children", ErrInvalidPredicate, p.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidPredicate, p.Kind)
	}
	if p.Column == "" {
		return fmt.Errorf("%w: %s without column", ErrInvalidPredicate, p.Kind)
	}
	for _, v := range p.Values {
		if v.IsNull() {
			return fmt.Errorf("%w: null operand, use IsNull", ErrInvalidPredicate)
		}
	}
	return nil
}

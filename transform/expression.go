package transform

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// compile compiles an expression over the columns of a row. Columns missing
// from a row evaluate to nil.
func compile(code string, opts ...expr.Option) (*vm.Program, error) {
	opts = append([]expr.Option{
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	}, opts...)
	opts = append(opts, functions...)
	p, err := expr.Compile(code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, code, err)
	}
	return p, nil
}

// functions are the time helpers available to every expression in
// addition to the expr-lang builtins. Epoch arguments are milliseconds.
var functions = []expr.Option{
	expr.Function("toEpochSeconds", epochDiv(1000), new(func(int) int)),
	expr.Function("toEpochMinutes", epochDiv(60_000), new(func(int) int)),
	expr.Function("toEpochHours", epochDiv(3_600_000), new(func(int) int)),
	expr.Function("toEpochDays", epochDiv(86_400_000), new(func(int) int)),
	expr.Function("fromEpochSeconds", func(params ...any) (any, error) {
		s, err := epochArg(params)
		if err != nil {
			return nil, err
		}
		return s * 1000, nil
	}, new(func(int) int)),
	expr.Function("toDateTime", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("toDateTime: want 2 arguments, got %d", len(params))
		}
		ms, err := epochArg(params[:1])
		if err != nil {
			return nil, err
		}
		layout, ok := params[1].(string)
		if !ok {
			return nil, fmt.Errorf("toDateTime: layout must be a string")
		}
		return time.UnixMilli(int64(ms)).UTC().Format(layout), nil
	}),
}

func epochDiv(d int) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		ms, err := epochArg(params)
		if err != nil {
			return nil, err
		}
		return ms / d, nil
	}
}

func epochArg(params []any) (int, error) {
	if len(params) != 1 {
		return 0, fmt.Errorf("want 1 argument, got %d", len(params))
	}
	switch x := params[0].(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	}
	return 0, fmt.Errorf("epoch must be a number, got %T", params[0])
}

// env exposes the non-null columns of r to an expression.
func env(r *row.Row) map[string]any {
	m := make(map[string]any, r.Len())
	r.Range(func(column string, v row.Value) bool {
		if r.IsNull(column) || v.IsNull() {
			return true
		}
		m[column] = envValue(v)
		return true
	})
	return m
}

func envValue(v row.Value) any {
	switch v.Kind {
	case row.KindInt, row.KindLong:
		return int(v.I64)
	case row.KindBigDecimal:
		d, _ := v.AsDecimal()
		return d.InexactFloat64()
	case row.KindBytes:
		b, _ := v.AsBytes()
		return string(b)
	case row.KindArray:
		out := make([]any, len(v.A))
		for i := range v.A {
			out[i] = envValue(v.A[i])
		}
		return out
	case row.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = envValue(e)
		}
		return out
	}
	return v.Native()
}

// resultValue converts an expression result into a row value.
func resultValue(x any) (row.Value, error) {
	switch t := x.(type) {
	case time.Time:
		return row.Long(t.UnixMilli()), nil
	case time.Duration:
		return row.Long(t.Milliseconds()), nil
	case decimal.Decimal:
		return row.BigDecimal(t), nil
	}
	return row.FromNative(x)
}

// Expression computes derived columns. A derived column keeps a value the
// raw row already carries.
type Expression struct {
	columns  []string
	programs []*vm.Program
}

// NewExpression compiles the derived-column expressions of cfgs.
func NewExpression(cfgs []schema.TransformConfig) (*Expression, error) {
	t := &Expression{}
	for _, c := range cfgs {
		p, err := compile(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Column, err)
		}
		t.columns = append(t.columns, c.Column)
		t.programs = append(t.programs, p)
	}
	return t, nil
}

// Name implements Transformer.
func (t *Expression) Name() string { return "expression" }

// Transform implements Transformer.
func (t *Expression) Transform(r *row.Row, c *Context) (bool, error) {
	var vars map[string]any
	for i, col := range t.columns {
		if v, ok := r.Value(col); ok && !v.IsNull() && !r.IsNull(col) {
			continue
		}
		if vars == nil {
			vars = env(r)
		}
		out, err := expr.Run(t.programs[i], vars)
		if err == nil {
			var v row.Value
			if v, err = resultValue(out); err == nil {
				if !v.IsNull() {
					r.PutValue(col, v)
					r.RemoveNullField(col)
					vars[col] = envValue(v)
				}
				continue
			}
		}
		if err := c.Fail(t.Name(), col, fmt.Errorf("%w: %v", ErrExpression, err)); err != nil {
			return false, err
		}
		nullify(r, col)
	}
	return true, nil
}

// Filter drops rows matching a boolean expression.
type Filter struct {
	program *vm.Program
}

// NewFilter compiles a filter expression.
func NewFilter(code string) (*Filter, error) {
	p, err := compile(code, expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Filter{program: p}, nil
}

// Name implements Transformer.
func (t *Filter) Name() string { return "filter" }

// Transform implements Transformer. A failed evaluation keeps the row under
// the lenient policy.
func (t *Filter) Transform(r *row.Row, c *Context) (bool, error) {
	out, err := expr.Run(t.program, env(r))
	if err != nil {
		if err := c.Fail(t.Name(), "", fmt.Errorf("%w: %v", ErrExpression, err)); err != nil {
			return false, err
		}
		return true, nil
	}
	drop, _ := out.(bool)
	return !drop, nil
}

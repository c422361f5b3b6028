package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"

	"github.com/hupe1980/rtseg/row"
)

// DefaultMaxLineSize bounds a single JSON line.
const DefaultMaxLineSize = 4 << 20

// ErrNotAnObject is returned for JSON lines that are not objects.
var ErrNotAnObject = errors.New("record is not a JSON object")

// Reader yields raw rows until io.EOF.
type Reader interface {
	// Next decodes the next record into reuse (cleared first) or into a new
	// Row when reuse is nil.
	Next(reuse *row.Row) (*row.Row, error)
}

// ParseError reports a record that could not be decoded. The reader stays
// usable; the next call continues with the following line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures a JSONReader.
type Options struct {
	MaxLineSize int
}

// JSONReader reads newline-delimited JSON objects.
type JSONReader struct {
	sc   *bufio.Scanner
	line int
}

// NewJSONReader creates a reader over r.
func NewJSONReader(r io.Reader, optFns ...func(*Options)) *JSONReader {
	opts := Options{MaxLineSize: DefaultMaxLineSize}
	for _, fn := range optFns {
		fn(&opts)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), opts.MaxLineSize)
	return &JSONReader{sc: sc}
}

// Line returns the number of the line read last.
func (r *JSONReader) Line() int { return r.line }

// Next implements Reader. Blank lines are skipped.
func (r *JSONReader) Next(reuse *row.Row) (*row.Row, error) {
	for r.sc.Scan() {
		r.line++
		data := r.sc.Bytes()
		if len(trimSpace(data)) == 0 {
			continue
		}
		out, err := Parse(data, reuse)
		if err != nil {
			return nil, &ParseError{Line: r.line, Err: err}
		}
		return out, nil
	}
	if err := r.sc.Err(); err != nil {
		// The scanner cannot continue after an error.
		return nil, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Parse decodes one JSON object into reuse (cleared first) or into a new
// Row when reuse is nil.
func Parse(data []byte, reuse *row.Row) (*row.Row, error) {
	data = trimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotAnObject
	}
	if reuse == nil {
		reuse = row.New()
	} else {
		reuse.Clear()
	}
	err := jsonparser.ObjectEach(data, func(key, value []byte, t jsonparser.ValueType, _ int) error {
		name := string(key)
		v, err := parseValue(value, t)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		reuse.PutValue(name, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reuse, nil
}

func parseValue(value []byte, t jsonparser.ValueType) (row.Value, error) {
	switch t {
	case jsonparser.Null:
		return row.Null(), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return row.Null(), err
		}
		return row.String(s), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return row.Null(), err
		}
		return row.Bool(b), nil
	case jsonparser.Number:
		return parseNumber(value)
	case jsonparser.Array:
		var (
			vals    []row.Value
			elemErr error
		)
		_, err := jsonparser.ArrayEach(value, func(elem []byte, et jsonparser.ValueType, _ int, _ error) {
			if elemErr != nil {
				return
			}
			v, err := parseValue(elem, et)
			if err != nil {
				elemErr = err
				return
			}
			vals = append(vals, v)
		})
		if err != nil {
			return row.Null(), err
		}
		if elemErr != nil {
			return row.Null(), elemErr
		}
		if vals == nil {
			vals = []row.Value{}
		}
		return row.Array(vals), nil
	case jsonparser.Object:
		m := make(map[string]row.Value)
		err := jsonparser.ObjectEach(value, func(key, v []byte, vt jsonparser.ValueType, _ int) error {
			pv, err := parseValue(v, vt)
			if err != nil {
				return err
			}
			m[string(key)] = pv
			return nil
		})
		if err != nil {
			return row.Null(), err
		}
		return row.Map(m), nil
	}
	return row.Null(), fmt.Errorf("unexpected JSON value %q", value)
}

func parseNumber(value []byte) (row.Value, error) {
	if isIntegral(value) {
		if n, err := jsonparser.ParseInt(value); err == nil {
			return row.Long(n), nil
		}
	}
	f, err := jsonparser.ParseFloat(value)
	if err != nil {
		return row.Null(), err
	}
	return row.Double(f), nil
}

func isIntegral(b []byte) bool {
	for _, c := range b {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && isSpace(b[0]) {
		b = b[1:]
	}
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

// SliceReader yields copies of in-memory rows.
type SliceReader struct {
	rows []*row.Row
	pos  int
}

// FromRows returns a Reader over rows.
func FromRows(rows ...*row.Row) *SliceReader { return &SliceReader{rows: rows} }

// Next implements Reader.
func (r *SliceReader) Next(reuse *row.Row) (*row.Row, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	src := r.rows[r.pos]
	r.pos++
	if reuse == nil {
		return src.Clone(), nil
	}
	src.CopyTo(reuse)
	return reuse, nil
}

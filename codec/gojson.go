package codec

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// GoJSON is the default codec, backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// MarshalIndent encodes v with two-space indentation.
func (GoJSON) MarshalIndent(v any) ([]byte, error) { return gojson.MarshalIndent(v, "", "  ") }

func (GoJSON) NewEncoder(w io.Writer) Encoder { return gojson.NewEncoder(w) }

func (GoJSON) NewDecoder(r io.Reader) Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

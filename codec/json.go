package codec

import (
	"encoding/json"
	"io"
)

// JSON is the standard library codec. It is kept for consumers that need
// byte-identical output with other encoding/json producers.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }

func (JSON) NewEncoder(w io.Writer) Encoder { return json.NewEncoder(w) }

func (JSON) NewDecoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

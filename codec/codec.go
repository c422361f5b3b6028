// Package codec selects the JSON encoding used for broker responses and
// export metadata.
//
// Export metadata records the codec name, so exports written with one codec
// are decoded with the same one.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes and decodes values. Implementations are safe for concurrent
// use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Streamer is implemented by codecs that encode value sequences, one value
// per line.
type Streamer interface {
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

// Encoder writes one value per call.
type Encoder interface {
	Encode(v any) error
}

// Decoder reads one value per call and returns io.EOF at the end.
type Decoder interface {
	Decode(v any) error
}

// Default is used when no codec is configured.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json", "":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustByName is ByName for names known at compile time.
func MustByName(name string) Codec {
	c, ok := ByName(name)
	if !ok {
		panic(fmt.Sprintf("codec: unknown codec %q", name))
	}
	return c
}

package segment

import (
	"fmt"
	"time"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// State is the lifecycle state of a segment.
type State int32

const (
	// StateEmpty is the state of a segment without documents.
	StateEmpty State = iota
	// StateConsuming is the state once the first document is indexed.
	StateConsuming
	// StateDestroyed is terminal; every operation fails.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateConsuming:
		return "CONSUMING"
	case StateDestroyed:
		return "DESTROYED"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Index kinds reported in ColumnMetadata.Indexes.
const (
	IndexDictionary = "dictionary"
	IndexForward    = "forward"
	IndexNullValue  = "null_value"
	IndexInverted   = "inverted"
	IndexRange      = "range"
	IndexText       = "text"
)

// ColumnMetadata describes one column of a segment.
type ColumnMetadata struct {
	Name          string           `json:"name"`
	DataType      schema.DataType  `json:"dataType"`
	FieldType     schema.FieldType `json:"fieldType"`
	SingleValue   bool             `json:"singleValue"`
	HasDictionary bool             `json:"hasDictionary"`
	Nullable      bool             `json:"nullable"`

	// Cardinality is exact for dictionary columns and a HyperLogLog
	// estimate otherwise.
	Cardinality          int  `json:"cardinality"`
	CardinalityEstimated bool `json:"cardinalityEstimated,omitempty"`

	// MinValue and MaxValue range over non-null values.
	MinValue row.Value `json:"minValue"`
	MaxValue row.Value `json:"maxValue"`

	TotalEntries   int64    `json:"totalEntries"`
	MaxMultiValues int      `json:"maxMultiValues,omitempty"`
	NullCount      int      `json:"nullCount"`
	Indexes        []string `json:"indexes"`
	MemoryBytes    int64    `json:"memoryBytes"`
}

// SegmentMetadata describes a segment at a point in time.
type SegmentMetadata struct {
	Name          string                    `json:"name"`
	ID            string                    `json:"id"`
	Table         string                    `json:"table,omitempty"`
	NumDocs       int                       `json:"numDocs"`
	State         State                     `json:"state"`
	CreatedAt     time.Time                 `json:"createdAt"`
	LastIndexedAt time.Time                 `json:"lastIndexedAt,omitzero"`
	MemoryBytes   int64                     `json:"memoryBytes"`
	Columns       map[string]ColumnMetadata `json:"columns"`
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "EMPTY":
		*s = StateEmpty
	case "CONSUMING":
		*s = StateConsuming
	case "DESTROYED":
		*s = StateDestroyed
	default:
		return fmt.Errorf("unknown segment state %q", text)
	}
	return nil
}

// Package response defines the result carrier returned to query clients.
//
// BrokerResponse holds the result table plus the execution statistics a
// broker reports: documents scanned, entries scanned in and after the
// filter, segments queried, processed, matched and pruned, and the freshness
// of the consuming segments that served the query.
package response

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/rtseg/codec"
	"github.com/hupe1980/rtseg/predicate"
	"github.com/hupe1980/rtseg/segment"
)

// Error codes carried by Exception.
const (
	ErrorCodeQueryExecution       = 200
	ErrorCodeServerSegmentMissing = 235
	ErrorCodeTableDoesNotExist    = 190
	ErrorCodeQueryValidation      = 700
	ErrorCodeUnknown              = 1000
)

// Exception is a query processing error reported to the client.
type Exception struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// ExceptionFromError classifies err.
func ExceptionFromError(err error) Exception {
	code := ErrorCodeQueryExecution
	switch {
	case errors.Is(err, segment.ErrColumnNotFound), errors.Is(err, predicate.ErrInvalidPredicate),
		errors.Is(err, predicate.ErrUnsupported):
		code = ErrorCodeQueryValidation
	case errors.Is(err, segment.ErrSegmentDestroyed):
		code = ErrorCodeServerSegmentMissing
	}
	return Exception{ErrorCode: code, Message: err.Error()}
}

// DataSchema describes the columns of a ResultTable.
type DataSchema struct {
	ColumnNames     []string `json:"columnNames"`
	ColumnDataTypes []string `json:"columnDataTypes"`
}

// ResultTable is a row-major query result.
type ResultTable struct {
	DataSchema DataSchema `json:"dataSchema"`
	Rows       [][]any    `json:"rows"`
}

// BrokerResponse is the response to one query.
type BrokerResponse struct {
	ResultTable      *ResultTable `json:"resultTable,omitempty"`
	NumRowsResultSet int          `json:"numRowsResultSet"`
	PartialResult    bool         `json:"partialResult"`
	Exceptions       []Exception  `json:"exceptions"`

	NumGroupsLimitReached bool   `json:"numGroupsLimitReached"`
	TimeUsedMs            int64  `json:"timeUsedMs"`
	RequestID             string `json:"requestId,omitempty"`

	NumDocsScanned              int64 `json:"numDocsScanned"`
	TotalDocs                   int64 `json:"totalDocs"`
	NumEntriesScannedInFilter   int64 `json:"numEntriesScannedInFilter"`
	NumEntriesScannedPostFilter int64 `json:"numEntriesScannedPostFilter"`

	NumSegmentsQueried            int64 `json:"numSegmentsQueried"`
	NumSegmentsProcessed          int64 `json:"numSegmentsProcessed"`
	NumSegmentsMatched            int64 `json:"numSegmentsMatched"`
	NumConsumingSegmentsQueried   int64 `json:"numConsumingSegmentsQueried"`
	NumConsumingSegmentsProcessed int64 `json:"numConsumingSegmentsProcessed"`
	NumConsumingSegmentsMatched   int64 `json:"numConsumingSegmentsMatched"`
	MinConsumingFreshnessTimeMs   int64 `json:"minConsumingFreshnessTimeMs"`
	NumSegmentsPrunedByServer     int64 `json:"numSegmentsPrunedByServer"`

	TraceInfo     map[string]string `json:"traceInfo,omitempty"`
	TablesQueried []string          `json:"tablesQueried,omitempty"`
}

// Empty returns a response without results or errors.
func Empty() *BrokerResponse {
	return &BrokerResponse{Exceptions: []Exception{}}
}

// FromErrors returns a response carrying only exceptions.
func FromErrors(errs ...error) *BrokerResponse {
	r := Empty()
	for _, err := range errs {
		if err != nil {
			r.AddException(ExceptionFromError(err))
		}
	}
	return r
}

// SetResultTable sets the result and its row count. A nil table hides the
// rows but keeps the count.
func (r *BrokerResponse) SetResultTable(t *ResultTable) {
	r.ResultTable = t
	if t != nil {
		r.NumRowsResultSet = len(t.Rows)
	}
}

// AddException records a processing error.
func (r *BrokerResponse) AddException(e Exception) {
	r.Exceptions = append(r.Exceptions, e)
}

// IsPartialResult reports whether the response misses data because of
// errors or limits.
func (r *BrokerResponse) IsPartialResult() bool {
	return len(r.Exceptions) > 0 || r.NumGroupsLimitReached
}

// AddTable records a queried table once.
func (r *BrokerResponse) AddTable(name string) {
	if !slices.Contains(r.TablesQueried, name) {
		r.TablesQueried = append(r.TablesQueried, name)
	}
}

type brokerResponse BrokerResponse

// MarshalJSON derives partialResult from the exceptions and limits.
func (r BrokerResponse) MarshalJSON() ([]byte, error) {
	r.PartialResult = r.IsPartialResult()
	if r.Exceptions == nil {
		r.Exceptions = []Exception{}
	}
	return codec.Default.Marshal(brokerResponse(r))
}

// Marshal encodes the response with c, or with codec.Default when c is nil.
func (r *BrokerResponse) Marshal(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(r)
}

// Unmarshal decodes a response. Unknown fields are ignored.
func Unmarshal(data []byte) (*BrokerResponse, error) {
	var br brokerResponse
	if err := codec.Default.Unmarshal(data, &br); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	r := BrokerResponse(br)
	return &r, nil
}

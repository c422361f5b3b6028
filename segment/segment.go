package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// MutableSegment is an in-memory, append-only column segment.
//
// One goroutine calls Index; any number of goroutines read concurrently
// through NumDocs, Record and DataSource without locks. A document becomes
// visible only after every structure of every column holds its entry: the
// document count is stored last and loaded first.
type MutableSegment struct {
	name    string
	id      string
	schema  *schema.Schema
	table   *schema.TableConfig
	opts    Options
	logger  *slog.Logger
	metrics Metrics

	columns []column
	byName  map[string]int
	sources map[string]*dataSource

	alloc *accountant

	mu          sync.Mutex // serializes Index and Destroy
	numDocs     atomic.Int64
	state       atomic.Int32
	writeErr    atomic.Pointer[error]
	createdAt   time.Time
	lastIndexed atomic.Int64
}

// New creates an empty segment for s. The schema must be validated.
func New(s *schema.Schema, optFns ...Option) (*MutableSegment, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", schema.ErrInvalidSchema)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	table := opts.TableConfig
	if table == nil {
		table = &schema.TableConfig{Name: s.Name}
	}
	if err := table.Validate(s); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if opts.Name == "" {
		opts.Name = s.Name + "__" + id
	}

	seg := &MutableSegment{
		name:      opts.Name,
		id:        id,
		schema:    s,
		table:     table,
		opts:      opts,
		logger:    opts.Logger.With("segment", opts.Name),
		metrics:   opts.Metrics,
		byName:    make(map[string]int, len(s.Fields)),
		sources:   make(map[string]*dataSource, len(s.Fields)),
		alloc:     &accountant{rc: opts.Resources},
		createdAt: time.Now(),
	}

	idx := &table.Indexing
	for i := range s.Fields {
		f := &s.Fields[i]
		def, _ := s.DefaultNullValue(f.Name)
		c := newColumn(columnConfig{
			spec:        f,
			def:         def,
			dictionary:  idx.HasDictionary(f.Name),
			nullable:    idx.NullHandling() && !f.NotNull,
			inverted:    idx.HasInvertedIndex(f.Name),
			rangeIdx:    idx.HasRangeIndex(f.Name),
			text:        idx.HasTextIndex(f.Name),
			chunkSize:   opts.ChunkSize,
			postingSize: opts.PostingChunkSize,
			maxDict:     opts.MaxDictionarySize,
			alloc:       seg.alloc,
			logger:      seg.logger,
		})
		seg.byName[f.Name] = len(seg.columns)
		seg.columns = append(seg.columns, c)
		seg.sources[f.Name] = &dataSource{seg: seg, col: c}
	}

	seg.logger.Debug("segment created", "columns", len(seg.columns), "chunk_size", opts.ChunkSize)
	return seg, nil
}

// Name returns the segment name.
func (s *MutableSegment) Name() string { return s.name }

// ID returns the unique instance id of the segment.
func (s *MutableSegment) ID() string { return s.id }

// Schema returns the segment schema.
func (s *MutableSegment) Schema() *schema.Schema { return s.schema }

// TableConfig returns the indexing configuration in effect.
func (s *MutableSegment) TableConfig() *schema.TableConfig { return s.table }

// State returns the lifecycle state.
func (s *MutableSegment) State() State { return State(s.state.Load()) }

// NumDocs returns the number of fully indexed documents.
func (s *MutableSegment) NumDocs() int { return int(s.numDocs.Load()) }

// LastIndexedAt returns when the latest document was published, or the zero
// time for an empty segment.
func (s *MutableSegment) LastIndexedAt() time.Time {
	if ms := s.lastIndexed.Load(); ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// ColumnNames returns the column names in schema order.
func (s *MutableSegment) ColumnNames() []string { return s.schema.Columns() }

// MemoryUsage returns the index memory reserved by the segment.
func (s *MutableSegment) MemoryUsage() int64 { return s.alloc.used.Load() }

// Writable reports whether Index can still accept rows.
func (s *MutableSegment) Writable() bool {
	return s.State() != StateDestroyed && s.writeErr.Load() == nil
}

// Index appends r as the next document.
//
// Columns absent from r, holding a null value, or listed in r's null set
// are stored as null. r is not retained.
//
// A type mismatch rejects the row and leaves the segment unchanged. A
// saturated dictionary or a refused allocation also leaves NumDocs
// unchanged but makes the segment read-only: later calls fail with
// ErrSegmentNotWritable.
func (s *MutableSegment) Index(r *row.Row) error {
	start := time.Now()
	err := s.index(r)
	s.metrics.RecordIndex(time.Since(start), err)
	return err
}

func (s *MutableSegment) index(r *row.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateDestroyed {
		return ErrSegmentDestroyed
	}
	if p := s.writeErr.Load(); p != nil {
		return fmt.Errorf("%w: %w", ErrSegmentNotWritable, *p)
	}

	docID := s.NumDocs()
	if docID >= math.MaxInt32 {
		return s.fail(fmt.Errorf("%w: docID space exhausted", ErrSegmentNotWritable))
	}

	// Phase 1: validate every column, then resolve dictionary ids.
	for _, c := range s.columns {
		v, ok := r.Value(c.name())
		null := !ok || v.IsNull() || r.IsNull(c.name())
		if err := c.stage(v, null); err != nil {
			return &ColumnError{Column: c.name(), Op: "index", Err: err}
		}
	}
	for _, c := range s.columns {
		if err := c.resolve(); err != nil {
			return s.fail(&ColumnError{Column: c.name(), Op: "dictionary", Err: err})
		}
	}

	// Phase 2: reserve capacity for docID in every structure.
	for _, c := range s.columns {
		if err := c.reserve(docID); err != nil {
			return s.fail(&ColumnError{Column: c.name(), Op: "reserve", Err: err})
		}
	}

	// Phase 3: write. Nothing below can fail.
	for _, c := range s.columns {
		c.commit(docID)
	}

	// Phase 4: publish.
	s.lastIndexed.Store(time.Now().UnixMilli())
	s.numDocs.Store(int64(docID + 1))
	if docID == 0 {
		s.state.CompareAndSwap(int32(StateEmpty), int32(StateConsuming))
	}
	return nil
}

// fail makes fatal errors sticky.
func (s *MutableSegment) fail(err error) error {
	if fatal(err) || errors.Is(err, ErrSegmentNotWritable) {
		s.writeErr.Store(&err)
		s.logger.Error("segment is no longer writable", "num_docs", s.NumDocs(), "error", err)
	}
	return err
}

// Record reconstructs document docID into reuse (cleared first) or into a
// new Row when reuse is nil. Null columns carry their default value and are
// listed in the row's null set in schema order.
func (s *MutableSegment) Record(docID int, reuse *row.Row) (*row.Row, error) {
	start := time.Now()
	r, err := s.record(docID, reuse)
	s.metrics.RecordRead(time.Since(start), err)
	return r, err
}

func (s *MutableSegment) record(docID int, reuse *row.Row) (*row.Row, error) {
	if s.State() == StateDestroyed {
		return nil, ErrSegmentDestroyed
	}
	if n := s.NumDocs(); docID < 0 || docID >= n {
		return nil, fmt.Errorf("%w: %d (num docs %d)", ErrDocIDOutOfRange, docID, n)
	}

	if reuse == nil {
		reuse = row.New()
	} else {
		reuse.Clear()
	}
	for _, c := range s.columns {
		if c.isNull(docID) {
			reuse.PutDefaultNullValue(c.name(), c.defaultValue())
			continue
		}
		reuse.PutValue(c.name(), c.value(docID))
	}

	// A concurrent Destroy may have freed the structures mid-read.
	if s.State() == StateDestroyed {
		return nil, ErrSegmentDestroyed
	}
	return reuse, nil
}

// DataSource returns the read-only view of a column. The view is shared and
// always reflects the latest published document.
func (s *MutableSegment) DataSource(column string) (DataSource, error) {
	if s.State() == StateDestroyed {
		return nil, ErrSegmentDestroyed
	}
	ds, ok := s.sources[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	return ds, nil
}

// Metadata returns segment and column statistics.
func (s *MutableSegment) Metadata() (SegmentMetadata, error) {
	if s.State() == StateDestroyed {
		return SegmentMetadata{}, ErrSegmentDestroyed
	}
	md := SegmentMetadata{
		Name:        s.name,
		ID:          s.id,
		Table:       s.table.Name,
		NumDocs:     s.NumDocs(),
		State:       s.State(),
		CreatedAt:   s.createdAt,
		MemoryBytes: s.MemoryUsage(),
		Columns:     make(map[string]ColumnMetadata, len(s.columns)),
	}
	md.LastIndexedAt = s.LastIndexedAt()
	for _, c := range s.columns {
		md.Columns[c.name()] = c.metadata()
	}
	return md, nil
}

// Destroy releases all index memory. Every later call, including reads
// through previously obtained data sources, fails with
// ErrSegmentDestroyed. Callers must stop readers before destroying a
// segment; the segment does not reference-count them.
func (s *MutableSegment) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		cur := s.state.Load()
		if State(cur) == StateDestroyed {
			return ErrSegmentDestroyed
		}
		if s.state.CompareAndSwap(cur, int32(StateDestroyed)) {
			break
		}
	}

	before := s.MemoryUsage()
	for _, c := range s.columns {
		c.free()
	}
	s.logger.Info("segment destroyed", "num_docs", s.NumDocs(), "released_bytes", before-s.MemoryUsage())
	return nil
}

// accountant forwards chunk reservations to the resource controller and
// tracks the segment's share.
type accountant struct {
	rc   *resource.Controller
	used atomic.Int64
}

func (a *accountant) Reserve(n int64) error {
	if err := a.rc.Reserve(n); err != nil {
		return err
	}
	a.used.Add(n)
	return nil
}

func (a *accountant) Release(n int64) {
	a.rc.Release(n)
	a.used.Add(-n)
}

// Package textindex implements the realtime text index: a term dictionary
// over tokenized string values with one posting list per term.
package textindex

import (
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
	"github.com/hupe1980/rtseg/internal/postings"
)

// Tokenize lower-cases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Index maps terms to documents.
type Index struct {
	alloc     chunked.Allocator
	listChunk int

	terms    sync.Map // string → *postings.List
	numTerms atomic.Int64
	bytes    atomic.Int64
}

// New creates an empty text index.
func New(listChunkSize int, alloc chunked.Allocator) *Index {
	return &Index{alloc: alloc, listChunk: listChunkSize}
}

// Prepare tokenizes text and creates missing posting lists, so that Add for
// the same text cannot fail on allocation.
func (x *Index) Prepare(text string) ([]string, error) {
	tokens := Tokenize(text)
	for _, tok := range tokens {
		var l *postings.List
		if v, ok := x.terms.Load(tok); ok {
			l = v.(*postings.List)
		} else {
			l = postings.NewList(x.listChunk, x.alloc)
			x.terms.Store(tok, l)
			x.numTerms.Add(1)
		}
		before := l.Bytes()
		if err := l.Reserve(); err != nil {
			return nil, err
		}
		x.bytes.Add(l.Bytes() - before)
	}
	return tokens, nil
}

// Add indexes the tokens of docID.
func (x *Index) Add(docID uint32, tokens []string) error {
	for _, tok := range tokens {
		v, ok := x.terms.Load(tok)
		if !ok {
			continue
		}
		l := v.(*postings.List)
		before := l.Bytes()
		if err := l.Add(docID); err != nil {
			return err
		}
		x.bytes.Add(l.Bytes() - before)
	}
	return nil
}

// Match returns the documents below limit containing every term of query.
// A query without terms matches nothing.
func (x *Index) Match(query string, limit uint32) *roaring.Bitmap {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return roaring.New()
	}
	var out *roaring.Bitmap
	for _, tok := range tokens {
		v, ok := x.terms.Load(tok)
		if !ok {
			return roaring.New()
		}
		rb := v.(*postings.List).Snapshot(limit)
		if out == nil {
			out = rb
			continue
		}
		out.And(rb)
		if out.IsEmpty() {
			return out
		}
	}
	return out
}

// NumTerms returns the number of distinct terms.
func (x *Index) NumTerms() int { return int(x.numTerms.Load()) }

// Bytes returns the reserved memory.
func (x *Index) Bytes() int64 { return x.bytes.Load() }

// Free releases all posting lists.
func (x *Index) Free() {
	x.terms.Range(func(_, v any) bool {
		v.(*postings.List).Free()
		return true
	})
	x.terms.Clear()
	x.numTerms.Store(0)
	x.bytes.Store(0)
}

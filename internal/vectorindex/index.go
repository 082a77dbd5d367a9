// Package vectorindex provides the persistent similarity-searchable index of
// embedded document chunks used by the KBRAG service.
package vectorindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/localrivet/kbrag/internal/vector"
)

// Entry is one embedded chunk held by the index.
type Entry struct {
	ID        string    // content hash of the chunk
	Source    string    // label or path of the originating document
	Ordinal   int       // chunk position within that document
	Content   string    // chunk text
	Embedding []float32 // vector produced at ingestion time
}

// Result pairs an entry with its similarity to a query vector.
type Result struct {
	Entry Entry
	Score float64
}

// Index is a flat in-memory vector index over chunk entries. Every entry's
// embedding has the same dimension, fixed at construction. The zero value is
// unusable; create an Index with New or load one through a Store.
type Index struct {
	dimension int
	entries   []Entry
}

// New creates an empty index that accepts vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

func (x *Index) ready() error {
	if x == nil || x.dimension <= 0 {
		return errors.New("index not initialized")
	}
	return nil
}

// Count returns the number of entries in the index.
func (x *Index) Count() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Dimension returns the vector dimension the index was built for.
func (x *Index) Dimension() int {
	if x == nil {
		return 0
	}
	return x.dimension
}

// Add appends entries to the index. Every embedding must match the index
// dimension; on mismatch nothing is appended. Entries keep insertion order,
// which Search uses to break score ties.
func (x *Index) Add(entries ...Entry) error {
	if err := x.ready(); err != nil {
		return err
	}

	for _, entry := range entries {
		if len(entry.Embedding) != x.dimension {
			return fmt.Errorf("entry %s has embedding dimension %d, index requires %d",
				entry.ID, len(entry.Embedding), x.dimension)
		}
	}

	x.entries = append(x.entries, entries...)
	return nil
}

// Search returns the breadth nearest entries to the query vector by cosine
// similarity, in descending score order. breadth is clamped to [1, Count()].
func (x *Index) Search(query []float32, breadth int) ([]Result, error) {
	if err := x.ready(); err != nil {
		return nil, err
	}
	if len(x.entries) == 0 {
		return nil, errors.New("index has no entries")
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index requires %d",
			len(query), x.dimension)
	}

	if breadth < 1 {
		breadth = 1
	}
	if breadth > len(x.entries) {
		breadth = len(x.entries)
	}

	results := make([]Result, 0, len(x.entries))
	for _, entry := range x.entries {
		score, err := vector.CosineSimilarity(query, entry.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to score entry %s: %w", entry.ID, err)
		}
		results = append(results, Result{Entry: entry, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results[:breadth], nil
}

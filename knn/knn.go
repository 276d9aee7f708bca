// Package knn provides an exact nearest-neighbor index over sparse rating
// vectors using cosine distance.
//
// The index is fitted once from a rating matrix and is immutable afterwards:
// a new matrix requires a new index. Search is a brute-force scan over the
// full row set, which is exact by construction; with row counts bounded by
// the popularity floor there is no need for approximation.
//
// Cosine is implemented the usual way for sparse data: rows are L2-normalized
// at fit time, queries at search time, and the distance is 1 minus the dot
// product of the normalized vectors.
package knn

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/bookrec/matrix"
)

// DefaultFanout is the neighbor count used when a search does not request an
// explicit k.
const DefaultFanout = 20

var (
	// ErrInvalidK is returned when k is negative.
	ErrInvalidK = errors.New("knn: k must not be negative")

	// ErrEmptyIndex is returned when fitting over a matrix with no rows.
	ErrEmptyIndex = errors.New("knn: cannot fit an empty matrix")
)

// ErrDimensionMismatch is returned when a query references columns outside
// the fitted matrix.
type ErrDimensionMismatch struct {
	Dim    int
	Column int32
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("knn: query column %d outside fitted dimension %d", e.Column, e.Dim)
}

// SearchResult is a single neighbor: the matrix row and its cosine distance
// from the query, in [0,2]. A distance of 0 means identical direction; the
// query row itself is included when it is present in the index, so callers
// that query with an indexed row must drop the self-match themselves.
type SearchResult struct {
	Row      int
	Distance float32
}

// Options contains configuration options for the index.
type Options struct {
	// Fanout is the neighbor count used when Search is called with k == 0.
	Fanout int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	Fanout: DefaultFanout,
}

// Index is an immutable flat cosine index over sparse rows.
type Index struct {
	dim    int // column count of the fitted matrix
	rowPtr []int32
	colIdx []int32
	values []float32 // L2-normalized per row
	fanout int
}

// Fit builds an index over the rows of m.
func Fit(m *matrix.UserItem, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	if m.Rows() == 0 {
		return nil, ErrEmptyIndex
	}

	ix := &Index{
		dim:    m.Cols(),
		rowPtr: make([]int32, 0, m.Rows()+1),
		colIdx: make([]int32, 0, m.NNZ()),
		values: make([]float32, 0, m.NNZ()),
		fanout: opts.Fanout,
	}
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		ix.rowPtr = append(ix.rowPtr, int32(len(ix.colIdx)))
		ix.colIdx = append(ix.colIdx, row.Idx...)
		ix.values = append(ix.values, normalize(row.Val)...)
	}
	ix.rowPtr = append(ix.rowPtr, int32(len(ix.colIdx)))
	return ix, nil
}

// Rows returns the number of indexed rows.
func (ix *Index) Rows() int { return len(ix.rowPtr) - 1 }

// Fanout returns the default neighbor count.
func (ix *Index) Fanout() int { return ix.fanout }

// Search returns the k nearest rows to q by cosine distance, ascending.
// If k is 0 the configured fanout is used; k larger than the row count is
// clamped. Ties are broken by row index so results are deterministic.
func (ix *Index) Search(q matrix.SparseVector, k int) ([]SearchResult, error) {
	if k < 0 {
		return nil, ErrInvalidK
	}
	if k == 0 {
		k = ix.fanout
	}
	if n := ix.Rows(); k > n {
		k = n
	}
	if len(q.Idx) > 0 {
		if last := q.Idx[len(q.Idx)-1]; int(last) >= ix.dim {
			return nil, &ErrDimensionMismatch{Dim: ix.dim, Column: last}
		}
	}

	qVal := normalize(q.Val)

	top := &candidateHeap{}
	heap.Init(top)
	for row := 0; row < ix.Rows(); row++ {
		lo, hi := ix.rowPtr[row], ix.rowPtr[row+1]
		dot := sparseDot(q.Idx, qVal, ix.colIdx[lo:hi], ix.values[lo:hi])
		dist := clampDistance(1 - dot)

		if top.Len() < k {
			heap.Push(top, candidate{row: int32(row), dist: dist})
			continue
		}
		worst := top.items[0]
		if dist < worst.dist || (dist == worst.dist && int32(row) < worst.row) {
			top.items[0] = candidate{row: int32(row), dist: dist}
			heap.Fix(top, 0)
		}
	}

	results := make([]SearchResult, top.Len())
	for i := range results {
		results[i] = SearchResult{Row: int(top.items[i].row), Distance: top.items[i].dist}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Row < results[j].Row
	})
	return results, nil
}

// normalize returns an L2-normalized copy of vs. A zero vector is returned
// unchanged, which yields the maximum-uncorrelated distance of 1 against any
// other vector.
func normalize(vs []float32) []float32 {
	var norm2 float64
	for _, v := range vs {
		norm2 += float64(v) * float64(v)
	}
	out := make([]float32, len(vs))
	if norm2 == 0 {
		return out
	}
	inv := 1 / math.Sqrt(norm2)
	for i, v := range vs {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// sparseDot computes the dot product of two sparse vectors via a merge join
// on their ascending column indices.
func sparseDot(aIdx []int32, aVal []float32, bIdx []int32, bVal []float32) float32 {
	var dot float64
	i, j := 0, 0
	for i < len(aIdx) && j < len(bIdx) {
		switch {
		case aIdx[i] == bIdx[j]:
			dot += float64(aVal[i]) * float64(bVal[j])
			i++
			j++
		case aIdx[i] < bIdx[j]:
			i++
		default:
			j++
		}
	}
	return float32(dot)
}

// clampDistance bounds float rounding noise into the valid cosine range.
func clampDistance(d float32) float32 {
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// Snapshot is the serializable form of an Index.
type Snapshot struct {
	Dim    int       `json:"dim"`
	RowPtr []int32   `json:"row_ptr"`
	ColIdx []int32   `json:"col_idx"`
	Values []float32 `json:"values"`
	Fanout int       `json:"fanout"`
}

// Snapshot returns the serializable form of the index.
func (ix *Index) Snapshot() *Snapshot {
	return &Snapshot{
		Dim:    ix.dim,
		RowPtr: ix.rowPtr,
		ColIdx: ix.colIdx,
		Values: ix.values,
		Fanout: ix.fanout,
	}
}

// FromSnapshot reconstructs an index from its serialized form.
func FromSnapshot(s *Snapshot) (*Index, error) {
	if len(s.RowPtr) < 2 {
		return nil, ErrEmptyIndex
	}
	if len(s.ColIdx) != len(s.Values) {
		return nil, fmt.Errorf("knn: snapshot col_idx/values length mismatch: %d != %d", len(s.ColIdx), len(s.Values))
	}
	for i := 1; i < len(s.RowPtr); i++ {
		if s.RowPtr[i] < s.RowPtr[i-1] {
			return nil, fmt.Errorf("knn: snapshot row_ptr not monotonic at %d", i)
		}
	}
	if int(s.RowPtr[len(s.RowPtr)-1]) != len(s.ColIdx) {
		return nil, fmt.Errorf("knn: snapshot row_ptr end %d does not match %d cells", s.RowPtr[len(s.RowPtr)-1], len(s.ColIdx))
	}
	fanout := s.Fanout
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Index{
		dim:    s.Dim,
		rowPtr: s.RowPtr,
		colIdx: s.ColIdx,
		values: s.Values,
		fanout: fanout,
	}, nil
}

// Package matrix builds the sparse title-by-user rating matrix.
//
// Rows are book titles, columns are user IDs, and cells hold explicit
// ratings; absent cells mean "no rating by this user". Construction joins
// explicit ratings to books by ISBN, applies a popularity floor on titles
// followed by an activity floor on users, and accumulates the surviving
// triples directly into a compressed sparse row encoding. The intermediate
// dense pivot is never materialized.
//
// The two floors are ordered: user activity is recounted after unpopular
// titles are removed, so a user's count may drop below the floor once their
// ratings of excluded titles no longer contribute.
package matrix

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bookrec/dataset"
)

// ErrEmpty is returned when no ratings survive joining and thresholding.
var ErrEmpty = errors.New("matrix: no ratings survive thresholds")

// Options contains configuration options for matrix construction.
type Options struct {
	// MinTitleRatings is the popularity floor: titles with fewer explicit
	// ratings are excluded from the matrix.
	MinTitleRatings int

	// MinUserRatings is the activity floor: users with fewer explicit
	// ratings, counted after the title filter, are excluded.
	MinUserRatings int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	MinTitleRatings: 35,
	MinUserRatings:  10,
}

// SparseVector is one matrix row: ascending column indices and cell values.
// Both slices alias index-internal memory and must be treated as read-only.
type SparseVector struct {
	Idx []int32
	Val []float32
}

// UserItem is an immutable title-by-user rating matrix in CSR form.
// Row order is ascending by title, column order ascending by user ID, which
// makes rebuilds from identical input byte-for-byte reproducible.
type UserItem struct {
	titles []string
	users  []int
	rowOf  map[string]int

	rowPtr []int32
	colIdx []int32
	values []float32

	// Explicit rating counts per row/column, taken before duplicate
	// (title,user) pairs are averaged into a single cell.
	rowCount []int32
	colCount []int32
}

type triple struct {
	title  string
	userID int
	rating int
}

// Build constructs the matrix from cleaned books and explicit ratings.
func Build(books []dataset.Book, ratings []dataset.Rating, optFns ...func(o *Options)) (*UserItem, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MinTitleRatings < 1 || opts.MinUserRatings < 1 {
		return nil, fmt.Errorf("matrix: floors must be >= 1, got %d/%d", opts.MinTitleRatings, opts.MinUserRatings)
	}

	// Join ratings to books by ISBN; ratings without a matching book carry
	// no usable title and are discarded.
	titleOf := dataset.TitleByISBN(books)
	triples := make([]triple, 0, len(ratings))
	for _, r := range ratings {
		title, ok := titleOf[r.ISBN]
		if !ok {
			continue
		}
		if r.UserID < 0 {
			return nil, fmt.Errorf("matrix: negative user id %d", r.UserID)
		}
		triples = append(triples, triple{title: title, userID: r.UserID, rating: r.Rating})
	}

	// Popularity floor on titles.
	titleCounts := make(map[string]int)
	for _, t := range triples {
		titleCounts[t.title]++
	}
	kept := triples[:0]
	for _, t := range triples {
		if titleCounts[t.title] >= opts.MinTitleRatings {
			kept = append(kept, t)
		}
	}

	// Activity floor on users, recounted on the title-filtered set.
	userCounts := make(map[int]int)
	for _, t := range kept {
		userCounts[t.userID]++
	}
	active := roaring.New()
	for id, n := range userCounts {
		if n >= opts.MinUserRatings {
			active.Add(uint32(id))
		}
	}
	final := kept[:0]
	for _, t := range kept {
		if active.Contains(uint32(t.userID)) {
			final = append(final, t)
		}
	}
	if len(final) == 0 {
		return nil, ErrEmpty
	}

	return fromTriples(final), nil
}

// fromTriples pivots the surviving triples into CSR form. Duplicate
// (title,user) pairs are averaged into a single cell.
func fromTriples(triples []triple) *UserItem {
	sort.Slice(triples, func(i, j int) bool {
		if triples[i].title != triples[j].title {
			return triples[i].title < triples[j].title
		}
		return triples[i].userID < triples[j].userID
	})

	userSet := make(map[int]struct{})
	for _, t := range triples {
		userSet[t.userID] = struct{}{}
	}
	users := make([]int, 0, len(userSet))
	for id := range userSet {
		users = append(users, id)
	}
	sort.Ints(users)
	colOf := make(map[int]int32, len(users))
	for j, id := range users {
		colOf[id] = int32(j)
	}

	m := &UserItem{
		users:    users,
		rowOf:    make(map[string]int),
		colCount: make([]int32, len(users)),
	}

	i := 0
	for i < len(triples) {
		title := triples[i].title
		row := len(m.titles)
		m.titles = append(m.titles, title)
		m.rowOf[title] = row
		m.rowPtr = append(m.rowPtr, int32(len(m.colIdx)))
		m.rowCount = append(m.rowCount, 0)

		for i < len(triples) && triples[i].title == title {
			userID := triples[i].userID
			sum, n := 0, 0
			for i < len(triples) && triples[i].title == title && triples[i].userID == userID {
				sum += triples[i].rating
				n++
				i++
			}
			m.colIdx = append(m.colIdx, colOf[userID])
			m.values = append(m.values, float32(float64(sum)/float64(n)))
			m.rowCount[row] += int32(n)
			m.colCount[colOf[userID]] += int32(n)
		}
	}
	m.rowPtr = append(m.rowPtr, int32(len(m.colIdx)))
	return m
}

// Rows returns the number of title rows.
func (m *UserItem) Rows() int { return len(m.titles) }

// Cols returns the number of user columns.
func (m *UserItem) Cols() int { return len(m.users) }

// NNZ returns the number of explicit cells.
func (m *UserItem) NNZ() int { return len(m.values) }

// Titles returns the row keys in row order. Read-only.
func (m *UserItem) Titles() []string { return m.titles }

// Users returns the column keys in column order. Read-only.
func (m *UserItem) Users() []int { return m.users }

// RowIndex returns the row for a title.
func (m *UserItem) RowIndex(title string) (int, bool) {
	row, ok := m.rowOf[title]
	return row, ok
}

// TitleAt returns the title keying row i.
func (m *UserItem) TitleAt(i int) string { return m.titles[i] }

// Row returns row i as a sparse vector. Read-only.
func (m *UserItem) Row(i int) SparseVector {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return SparseVector{Idx: m.colIdx[lo:hi], Val: m.values[lo:hi]}
}

// RowRatingCount returns the number of explicit ratings behind row i,
// counted before duplicate (title,user) pairs were averaged.
func (m *UserItem) RowRatingCount(i int) int { return int(m.rowCount[i]) }

// ColRatingCount returns the number of explicit ratings behind column j,
// counted after the title filter.
func (m *UserItem) ColRatingCount(j int) int { return int(m.colCount[j]) }

// Snapshot is the serializable form of a UserItem.
type Snapshot struct {
	Titles   []string  `json:"titles"`
	Users    []int     `json:"users"`
	RowPtr   []int32   `json:"row_ptr"`
	ColIdx   []int32   `json:"col_idx"`
	Values   []float32 `json:"values"`
	RowCount []int32   `json:"row_count"`
	ColCount []int32   `json:"col_count"`
}

// Snapshot returns the serializable form of the matrix.
func (m *UserItem) Snapshot() *Snapshot {
	return &Snapshot{
		Titles:   m.titles,
		Users:    m.users,
		RowPtr:   m.rowPtr,
		ColIdx:   m.colIdx,
		Values:   m.values,
		RowCount: m.rowCount,
		ColCount: m.colCount,
	}
}

// FromSnapshot reconstructs a matrix from its serialized form, validating
// structural consistency so a decoded-but-wrong artifact cannot be served.
func FromSnapshot(s *Snapshot) (*UserItem, error) {
	if len(s.RowPtr) != len(s.Titles)+1 {
		return nil, fmt.Errorf("matrix: snapshot row_ptr length %d does not match %d titles", len(s.RowPtr), len(s.Titles))
	}
	if len(s.ColIdx) != len(s.Values) {
		return nil, fmt.Errorf("matrix: snapshot col_idx/values length mismatch: %d != %d", len(s.ColIdx), len(s.Values))
	}
	if len(s.RowCount) != len(s.Titles) || len(s.ColCount) != len(s.Users) {
		return nil, fmt.Errorf("matrix: snapshot count vectors do not match dimensions")
	}
	for i := 1; i < len(s.RowPtr); i++ {
		if s.RowPtr[i] < s.RowPtr[i-1] {
			return nil, fmt.Errorf("matrix: snapshot row_ptr not monotonic at %d", i)
		}
	}
	if n := len(s.RowPtr); n > 0 && int(s.RowPtr[n-1]) != len(s.ColIdx) {
		return nil, fmt.Errorf("matrix: snapshot row_ptr end %d does not match %d cells", s.RowPtr[n-1], len(s.ColIdx))
	}
	for _, c := range s.ColIdx {
		if int(c) >= len(s.Users) || c < 0 {
			return nil, fmt.Errorf("matrix: snapshot column index %d out of range", c)
		}
	}

	rowOf := make(map[string]int, len(s.Titles))
	for i, t := range s.Titles {
		rowOf[t] = i
	}
	return &UserItem{
		titles:   s.Titles,
		users:    s.Users,
		rowOf:    rowOf,
		rowPtr:   s.RowPtr,
		colIdx:   s.ColIdx,
		values:   s.Values,
		rowCount: s.RowCount,
		colCount: s.ColCount,
	}, nil
}

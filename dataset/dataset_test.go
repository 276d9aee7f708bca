package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{name: "empty", in: nil, want: 0},
		{name: "single", in: []float64{7}, want: 7},
		{name: "odd", in: []float64{3, 1, 2}, want: 2},
		{name: "even", in: []float64{4, 1, 3, 2}, want: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, median(tt.in))
		})
	}
}

func TestMedianDoesNotMutate(t *testing.T) {
	in := []float64{3, 1, 2}
	median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMetadataByTitle(t *testing.T) {
	books := []Book{
		{ISBN: "a", Title: "Dune", Author: "Frank Herbert", ImageURL: "http://img/1"},
		{ISBN: "b", Title: "Dune", Author: "Reissue Editor", ImageURL: "http://img/2"},
		{ISBN: "c", Title: "Emma", Author: "Jane Austen", ImageURL: "http://img/3"},
	}
	meta := MetadataByTitle(books)

	assert.Len(t, meta, 2)
	// The same work appears under many ISBNs; the first row wins.
	assert.Equal(t, BookInfo{Author: "Frank Herbert", ImageURL: "http://img/1"}, meta["Dune"])
	assert.Equal(t, BookInfo{Author: "Jane Austen", ImageURL: "http://img/3"}, meta["Emma"])
}

func TestTitleByISBN(t *testing.T) {
	books := []Book{
		{ISBN: "a", Title: "Dune"},
		{ISBN: "a", Title: "Dune (Duplicate Row)"},
		{ISBN: "b", Title: "Emma"},
	}
	byISBN := TitleByISBN(books)

	assert.Equal(t, "Dune", byISBN["a"])
	assert.Equal(t, "Emma", byISBN["b"])
}

package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bookrec/dataset"
)

var testBooks = []dataset.Book{
	{ISBN: "ia", Title: "Animal Farm"},
	{ISBN: "ia2", Title: "Animal Farm"}, // second edition, same work
	{ISBN: "ib", Title: "Beloved"},
	{ISBN: "ic", Title: "Candide"},
}

func lowFloors(o *Options) {
	o.MinTitleRatings = 1
	o.MinUserRatings = 1
}

func TestBuildJoinsByISBN(t *testing.T) {
	ratings := []dataset.Rating{
		{UserID: 1, ISBN: "ia", Rating: 5},
		{UserID: 1, ISBN: "unknown-isbn", Rating: 9},
	}
	m, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Rows())
	assert.Equal(t, 1, m.NNZ())
}

func TestBuildFloorOrdering(t *testing.T) {
	// User 3 has two ratings, but one is for a title below the popularity
	// floor. Activity is counted after the title filter, so user 3 drops
	// out as well.
	ratings := []dataset.Rating{
		{UserID: 1, ISBN: "ia", Rating: 5},
		{UserID: 1, ISBN: "ib", Rating: 4},
		{UserID: 2, ISBN: "ia", Rating: 3},
		{UserID: 2, ISBN: "ib", Rating: 2},
		{UserID: 3, ISBN: "ia", Rating: 5},
		{UserID: 3, ISBN: "ic", Rating: 1},
	}
	m, err := Build(testBooks, ratings, func(o *Options) {
		o.MinTitleRatings = 2
		o.MinUserRatings = 2
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Animal Farm", "Beloved"}, m.Titles())
	assert.Equal(t, []int{1, 2}, m.Users())
	assert.Equal(t, 4, m.NNZ())
}

func TestBuildAveragesDuplicateCells(t *testing.T) {
	// The same user rated the same work under two ISBNs; the cell holds
	// the mean, while the per-row count keeps both ratings.
	ratings := []dataset.Rating{
		{UserID: 1, ISBN: "ia", Rating: 4},
		{UserID: 1, ISBN: "ia2", Rating: 8},
	}
	m, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)

	require.Equal(t, 1, m.NNZ())
	row := m.Row(0)
	assert.Equal(t, []float32{6}, row.Val)
	assert.Equal(t, 2, m.RowRatingCount(0))
	assert.Equal(t, 2, m.ColRatingCount(0))
}

func TestBuildOrdering(t *testing.T) {
	// Input order is scrambled; rows come out ascending by title and
	// columns ascending by user ID regardless.
	ratings := []dataset.Rating{
		{UserID: 9, ISBN: "ic", Rating: 1},
		{UserID: 2, ISBN: "ia", Rating: 2},
		{UserID: 9, ISBN: "ia", Rating: 3},
		{UserID: 2, ISBN: "ib", Rating: 4},
	}
	m, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)

	assert.Equal(t, []string{"Animal Farm", "Beloved", "Candide"}, m.Titles())
	assert.Equal(t, []int{2, 9}, m.Users())

	row, ok := m.RowIndex("Animal Farm")
	require.True(t, ok)
	v := m.Row(row)
	assert.Equal(t, []int32{0, 1}, v.Idx)
	assert.Equal(t, []float32{2, 3}, v.Val)
}

func TestBuildDeterministic(t *testing.T) {
	ratings := []dataset.Rating{
		{UserID: 1, ISBN: "ia", Rating: 5},
		{UserID: 2, ISBN: "ib", Rating: 3},
		{UserID: 3, ISBN: "ic", Rating: 7},
		{UserID: 1, ISBN: "ib", Rating: 2},
	}
	a, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)
	b, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestBuildErrors(t *testing.T) {
	t.Run("nothing survives thresholds", func(t *testing.T) {
		ratings := []dataset.Rating{{UserID: 1, ISBN: "ia", Rating: 5}}
		_, err := Build(testBooks, ratings, func(o *Options) {
			o.MinTitleRatings = 2
			o.MinUserRatings = 1
		})
		require.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("invalid floors", func(t *testing.T) {
		_, err := Build(testBooks, nil, func(o *Options) {
			o.MinTitleRatings = 0
			o.MinUserRatings = 1
		})
		require.Error(t, err)
	})

	t.Run("no ratings", func(t *testing.T) {
		_, err := Build(testBooks, nil, lowFloors)
		require.ErrorIs(t, err, ErrEmpty)
	})
}

func TestSnapshotRoundtrip(t *testing.T) {
	ratings := []dataset.Rating{
		{UserID: 1, ISBN: "ia", Rating: 5},
		{UserID: 2, ISBN: "ib", Rating: 3},
		{UserID: 1, ISBN: "ib", Rating: 2},
	}
	m, err := Build(testBooks, ratings, lowFloors)
	require.NoError(t, err)

	restored, err := FromSnapshot(m.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, m.Titles(), restored.Titles())
	assert.Equal(t, m.Users(), restored.Users())
	for i := 0; i < m.Rows(); i++ {
		assert.Equal(t, m.Row(i), restored.Row(i))
	}

	row, ok := restored.RowIndex("Beloved")
	require.True(t, ok)
	assert.Equal(t, "Beloved", restored.TitleAt(row))
}

func TestFromSnapshotRejectsInconsistentState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"row_ptr length", func(s *Snapshot) { s.RowPtr = s.RowPtr[:1] }},
		{"col_idx/values mismatch", func(s *Snapshot) { s.Values = s.Values[:len(s.Values)-1] }},
		{"row_ptr not monotonic", func(s *Snapshot) { s.RowPtr[1] = 99 }},
		{"column out of range", func(s *Snapshot) { s.ColIdx[0] = 42 }},
		{"count vector length", func(s *Snapshot) { s.RowCount = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Build(testBooks, []dataset.Rating{
				{UserID: 1, ISBN: "ia", Rating: 5},
				{UserID: 2, ISBN: "ib", Rating: 3},
			}, lowFloors)
			require.NoError(t, err)

			s := m.Snapshot()
			tt.mutate(s)
			_, err = FromSnapshot(s)
			require.Error(t, err)
		})
	}
}

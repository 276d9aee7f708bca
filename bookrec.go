package bookrec

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/bookrec/artifact"
	"github.com/hupe1980/bookrec/dataset"
	"github.com/hupe1980/bookrec/knn"
	"github.com/hupe1980/bookrec/matrix"
)

// Artifact names within the configured blob store.
const (
	MatrixArtifact = "matrix.bin"
	IndexArtifact  = "index.bin"
)

// NoImage is the sentinel returned when a recommended title has no cover
// image URL.
const NoImage = "No Image"

// Status tells a caller whether a queried title was known to the engine.
type Status string

const (
	// StatusFound means the title is a matrix row and items were ranked.
	StatusFound Status = "found"

	// StatusNotFound means the title is not in the matrix. This is a
	// normal result, not an error: most titles never clear the
	// popularity floor.
	StatusNotFound Status = "not_found"
)

// Recommendation is one ranked similar title.
type Recommendation struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	ImageURL   string  `json:"image_url"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
}

// RecommendResult is the outcome of a similarity query.
type RecommendResult struct {
	Status Status           `json:"status"`
	Query  string           `json:"query"`
	Items  []Recommendation `json:"items"`
}

// TopRatedBook is one entry of the most-rated listing.
type TopRatedBook struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	ImageURL   string `json:"image_url"`
	NumRatings int    `json:"num_ratings"`
}

// Stats summarizes the engine's loaded state.
type Stats struct {
	Titles  int `json:"titles"`
	Users   int `json:"users"`
	Ratings int `json:"ratings"`
}

// state is the immutable, atomically swapped serving state.
type state struct {
	matrix   *matrix.UserItem
	index    *knn.Index
	meta     map[string]dataset.BookInfo
	topRated []TopRatedBook
}

// matrixSnapshot is the persisted form of everything derived from the raw
// tables except the index, so a cache hit needs no CSV access at all.
type matrixSnapshot struct {
	Matrix   *matrix.Snapshot            `json:"matrix"`
	Meta     map[string]dataset.BookInfo `json:"metadata"`
	TopRated []TopRatedBook              `json:"top_rated"`
}

// Engine owns the rating matrix, the neighbor index, and the display
// metadata. It is safe for concurrent queries; rebuilds swap the whole state
// atomically.
type Engine struct {
	opts   options
	logger *Logger

	state   atomic.Pointer[state]
	buildMu sync.Mutex
}

// NewEngine creates an engine without touching the cache or the dataset.
// The engine serves nothing until Rebuild succeeds; most callers want Open.
func NewEngine(optFns ...Option) *Engine {
	opts := applyOptions(optFns)
	return &Engine{opts: opts, logger: opts.logger}
}

// Open creates an Engine, loading cached artifacts when both are present and
// intact, and running the full build pipeline otherwise.
func Open(ctx context.Context, optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)
	e := &Engine{opts: opts, logger: opts.logger}

	if err := e.loadArtifacts(ctx); err != nil {
		e.logger.LogArtifact(ctx, "load", MatrixArtifact, err)
		if err := e.rebuild(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// loadArtifacts restores the serving state from the blob store. Any failure
// (missing, corrupt, or inconsistent artifacts) aborts the load; nothing
// partial is ever served.
func (e *Engine) loadArtifacts(ctx context.Context) error {
	var ms matrixSnapshot
	if err := artifact.Load(ctx, e.opts.store, MatrixArtifact, &ms); err != nil {
		return err
	}
	var is knn.Snapshot
	if err := artifact.Load(ctx, e.opts.store, IndexArtifact, &is); err != nil {
		return err
	}

	m, err := matrix.FromSnapshot(ms.Matrix)
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrCorrupt, err)
	}
	ix, err := knn.FromSnapshot(&is)
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrCorrupt, err)
	}
	if ix.Rows() != m.Rows() {
		return fmt.Errorf("%w: index has %d rows, matrix has %d", artifact.ErrCorrupt, ix.Rows(), m.Rows())
	}

	e.state.Store(&state{
		matrix:   m,
		index:    ix,
		meta:     ms.Meta,
		topRated: ms.TopRated,
	})
	e.logger.InfoContext(ctx, "artifacts loaded",
		"titles", m.Rows(),
		"users", m.Cols(),
	)
	return nil
}

// Rebuild runs the full pipeline (ingestion, matrix build, index fit),
// persists fresh artifacts, and swaps the serving state. A rebuild that
// overlaps another returns ErrRebuildInProgress; queries keep serving the
// previous state until the swap.
func (e *Engine) Rebuild(ctx context.Context) error {
	return e.rebuild(ctx)
}

func (e *Engine) rebuild(ctx context.Context) error {
	if !e.buildMu.TryLock() {
		return ErrRebuildInProgress
	}
	defer e.buildMu.Unlock()

	if !e.opts.hasFiles {
		return ErrNoDataset
	}

	start := time.Now()
	ds, err := dataset.Load(ctx, e.opts.files, func(o *dataset.Options) {
		o.Logger = e.logger.Logger
	})
	if err != nil {
		e.logger.LogBuild(ctx, 0, 0, time.Since(start), err)
		return err
	}

	m, err := matrix.Build(ds.Books, ds.Ratings, func(o *matrix.Options) {
		o.MinTitleRatings = e.opts.minTitleRatings
		o.MinUserRatings = e.opts.minUserRatings
	})
	if err != nil {
		e.logger.LogBuild(ctx, 0, 0, time.Since(start), err)
		return err
	}

	ix, err := knn.Fit(m, func(o *knn.Options) {
		o.Fanout = e.opts.fanout
	})
	if err != nil {
		e.logger.LogBuild(ctx, m.Rows(), m.Cols(), time.Since(start), err)
		return err
	}

	meta := dataset.MetadataByTitle(ds.Books)
	st := &state{
		matrix:   m,
		index:    ix,
		meta:     meta,
		topRated: computeTopRated(ds, meta),
	}

	if err := e.saveArtifacts(ctx, st); err != nil {
		e.logger.LogBuild(ctx, m.Rows(), m.Cols(), time.Since(start), err)
		return err
	}

	e.state.Store(st)
	e.logger.LogBuild(ctx, m.Rows(), m.Cols(), time.Since(start), nil)
	return nil
}

func (e *Engine) saveArtifacts(ctx context.Context, st *state) error {
	withOpts := func(o *artifact.Options) {
		o.Codec = e.opts.codec
		o.Compressor = e.opts.compressor
	}

	ms := &matrixSnapshot{
		Matrix:   st.matrix.Snapshot(),
		Meta:     st.meta,
		TopRated: st.topRated,
	}
	if err := artifact.Save(ctx, e.opts.store, MatrixArtifact, ms, withOpts); err != nil {
		e.logger.LogArtifact(ctx, "save", MatrixArtifact, err)
		return err
	}
	e.logger.LogArtifact(ctx, "save", MatrixArtifact, nil)

	if err := artifact.Save(ctx, e.opts.store, IndexArtifact, st.index.Snapshot(), withOpts); err != nil {
		e.logger.LogArtifact(ctx, "save", IndexArtifact, err)
		return err
	}
	e.logger.LogArtifact(ctx, "save", IndexArtifact, nil)
	return nil
}

// computeTopRated counts explicit ratings per title over the full joined
// dataset (before any thresholding). Ties keep the order in which titles
// were first encountered in the ratings table.
func computeTopRated(ds *dataset.Dataset, meta map[string]dataset.BookInfo) []TopRatedBook {
	titleOf := dataset.TitleByISBN(ds.Books)
	counts := make(map[string]int)
	var order []string
	for _, r := range ds.Ratings {
		title, ok := titleOf[r.ISBN]
		if !ok {
			continue
		}
		if counts[title] == 0 {
			order = append(order, title)
		}
		counts[title]++
	}

	books := make([]TopRatedBook, 0, len(order))
	for _, title := range order {
		info := meta[title]
		books = append(books, TopRatedBook{
			Title:      title,
			Author:     orUnknown(info.Author),
			ImageURL:   orNoImage(info.ImageURL),
			NumRatings: counts[title],
		})
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].NumRatings > books[j].NumRatings
	})
	return books
}

// Recommend returns up to k titles most similar to the given title by the
// cosine of their rating vectors, ranked by descending similarity with ties
// broken by title. An unknown title yields StatusNotFound, never an error.
//
// The index over-fetches k+1 neighbors and drops the first one, which is
// taken to be the query row itself at distance zero. The drop is positional:
// if another row ties the query at distance zero, that row may be dropped in
// its place. This mirrors the long-standing behavior of the pipeline and is
// deliberate.
func (e *Engine) Recommend(ctx context.Context, title string, k int) (*RecommendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	st := e.state.Load()
	if st == nil {
		return nil, ErrNotReady
	}

	row, ok := st.matrix.RowIndex(title)
	if !ok {
		e.logger.LogQuery(ctx, title, k, false, 0)
		return &RecommendResult{Status: StatusNotFound, Query: title, Items: []Recommendation{}}, nil
	}

	neighbors, err := st.index.Search(st.matrix.Row(row), k+1)
	if err != nil {
		return nil, err
	}
	if len(neighbors) > 0 {
		neighbors = neighbors[1:] // self-match
	}

	type scored struct {
		title      string
		similarity float64
	}
	cands := make([]scored, 0, len(neighbors))
	for _, n := range neighbors {
		cands = append(cands, scored{
			title:      st.matrix.TitleAt(n.Row),
			similarity: 1 - float64(n.Distance),
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].similarity != cands[j].similarity {
			return cands[i].similarity > cands[j].similarity
		}
		return cands[i].title < cands[j].title
	})
	if len(cands) > k {
		cands = cands[:k]
	}

	items := make([]Recommendation, 0, len(cands))
	for rank, c := range cands {
		info := st.meta[c.title]
		items = append(items, Recommendation{
			Title:      c.title,
			Author:     orUnknown(info.Author),
			ImageURL:   orNoImage(info.ImageURL),
			Rank:       rank + 1,
			Similarity: c.similarity,
		})
	}

	e.logger.LogQuery(ctx, title, k, true, len(items))
	return &RecommendResult{Status: StatusFound, Query: title, Items: items}, nil
}

// TopRated returns the n most-rated titles by explicit rating count over the
// full dataset. n defaults to 20 when non-positive.
func (e *Engine) TopRated(ctx context.Context, n int) ([]TopRatedBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := e.state.Load()
	if st == nil {
		return nil, ErrNotReady
	}
	if n <= 0 {
		n = 20
	}
	if n > len(st.topRated) {
		n = len(st.topRated)
	}
	out := make([]TopRatedBook, n)
	copy(out, st.topRated[:n])
	return out, nil
}

// KnownTitles returns every title the engine can recommend from, in matrix
// row order (ascending by title). Useful for input selection and
// autocomplete.
func (e *Engine) KnownTitles() ([]string, error) {
	st := e.state.Load()
	if st == nil {
		return nil, ErrNotReady
	}
	titles := st.matrix.Titles()
	out := make([]string, len(titles))
	copy(out, titles)
	return out, nil
}

// Stats returns the dimensions of the loaded matrix.
func (e *Engine) Stats() (Stats, error) {
	st := e.state.Load()
	if st == nil {
		return Stats{}, ErrNotReady
	}
	return Stats{
		Titles:  st.matrix.Rows(),
		Users:   st.matrix.Cols(),
		Ratings: st.matrix.NNZ(),
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return dataset.UnknownField
	}
	return s
}

func orNoImage(s string) string {
	if s == "" {
		return NoImage
	}
	return s
}

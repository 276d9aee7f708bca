package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Files names the three raw CSV sources of a load.
type Files struct {
	Books   string
	Ratings string
	Users   string
}

// isbnOverrides fixes four records that ship broken in the upstream export
// (author and publisher columns shifted into one another).
var isbnOverrides = map[string]struct{ author, publisher string }{
	"0751352497": {"DK", "Dorling Kindersley Publishers Ltd"},
	"9627982032": {"Larissa Anne Downe", "Edinburgh Financial Publishing"},
	"193169656X": {"Elaine Corvidae", "NovelBooks, Inc."},
	"1931696993": {"Linnea Sinclair", "Novelbooks, Incorporated"},
}

// Load reads and cleans the three CSV files.
func Load(ctx context.Context, files Files, optFns ...func(o *Options)) (*Dataset, error) {
	books, err := os.Open(files.Books)
	if err != nil {
		return nil, fmt.Errorf("dataset: open books: %w", err)
	}
	defer books.Close()

	ratings, err := os.Open(files.Ratings)
	if err != nil {
		return nil, fmt.Errorf("dataset: open ratings: %w", err)
	}
	defer ratings.Close()

	users, err := os.Open(files.Users)
	if err != nil {
		return nil, fmt.Errorf("dataset: open users: %w", err)
	}
	defer users.Close()

	return LoadReaders(ctx, books, ratings, users, optFns...)
}

// LoadReaders reads and cleans the three tables from open readers.
// The three tables are parsed concurrently; cleaning runs after all parses
// complete because the year and age medians need the full columns.
func LoadReaders(ctx context.Context, books, ratings, users io.Reader, optFns ...func(o *Options)) (*Dataset, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		rawBooks   []rawBook
		rawRatings []Rating
		rawUsers   []rawUser
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawBooks, err = readBooks(gctx, books, &opts)
		return err
	})
	g.Go(func() error {
		var err error
		rawRatings, err = readRatings(gctx, ratings, &opts)
		return err
	})
	g.Go(func() error {
		var err error
		rawUsers, err = readUsers(gctx, users, &opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		Books:   cleanBooks(rawBooks),
		Ratings: rawRatings,
		Users:   cleanUsers(rawUsers),
	}

	if opts.Logger != nil {
		opts.Logger.Info("dataset loaded",
			"books", len(ds.Books),
			"explicit_ratings", len(ds.Ratings),
			"users", len(ds.Users),
		)
	}
	return ds, nil
}

type rawBook struct {
	isbn      string
	title     string
	author    string
	publisher string
	year      string
	imageM    string
	imageL    string
}

type rawUser struct {
	id  int
	age string
}

// progress throttles row-count log lines to at most one per second.
type progress struct {
	opts    *Options
	table   string
	limiter *rate.Limiter
	rows    int
}

func newProgress(opts *Options, table string) *progress {
	return &progress{
		opts:    opts,
		table:   table,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (p *progress) tick() {
	p.rows++
	if p.opts.Logger == nil || p.opts.ProgressEvery <= 0 {
		return
	}
	if p.rows%p.opts.ProgressEvery != 0 {
		return
	}
	if p.limiter.Allow() {
		p.opts.Logger.Debug("reading table", "table", p.table, "rows", p.rows)
	}
}

// header maps contract column names to field positions.
type header map[string]int

func readHeader(table string, rec []string, required ...string) (header, error) {
	h := make(header, len(rec))
	for i, name := range rec {
		h[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, &ErrMissingColumn{Table: table, Column: col}
		}
	}
	return h, nil
}

func (h header) get(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func readBooks(ctx context.Context, r io.Reader, opts *Options) ([]rawBook, error) {
	cr := newCSVReader(r)
	first, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: books header: %w", err)
	}
	h, err := readHeader("books", first, ColISBN, ColTitle)
	if err != nil {
		return nil, err
	}

	p := newProgress(opts, "books")
	var out []rawBook
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: books line %d: %w", line, err)
		}
		isbn := h.get(rec, ColISBN)
		if isbn == "" {
			return nil, &ErrMissingKey{Table: "books", Line: line, Column: ColISBN}
		}
		out = append(out, rawBook{
			isbn:      isbn,
			title:     h.get(rec, ColTitle),
			author:    h.get(rec, ColAuthor),
			publisher: h.get(rec, ColPublisher),
			year:      h.get(rec, ColYear),
			imageM:    h.get(rec, ColImageM),
			imageL:    h.get(rec, ColImageL),
		})
		p.tick()
	}
	return out, nil
}

func readRatings(ctx context.Context, r io.Reader, opts *Options) ([]Rating, error) {
	cr := newCSVReader(r)
	first, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: ratings header: %w", err)
	}
	h, err := readHeader("ratings", first, ColUserID, ColISBN, ColRating)
	if err != nil {
		return nil, err
	}

	p := newProgress(opts, "ratings")
	var out []Rating
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: ratings line %d: %w", line, err)
		}
		userField := h.get(rec, ColUserID)
		if userField == "" {
			return nil, &ErrMissingKey{Table: "ratings", Line: line, Column: ColUserID}
		}
		isbn := h.get(rec, ColISBN)
		if isbn == "" {
			return nil, &ErrMissingKey{Table: "ratings", Line: line, Column: ColISBN}
		}
		userID, err := strconv.Atoi(userField)
		if err != nil {
			return nil, fmt.Errorf("dataset: ratings line %d: bad %s %q", line, ColUserID, userField)
		}
		rating, err := strconv.Atoi(h.get(rec, ColRating))
		if err != nil {
			return nil, fmt.Errorf("dataset: ratings line %d: bad %s %q", line, ColRating, h.get(rec, ColRating))
		}
		p.tick()
		if rating == 0 {
			// Implicit interaction, no explicit signal.
			continue
		}
		out = append(out, Rating{UserID: userID, ISBN: isbn, Rating: rating})
	}
	return out, nil
}

func readUsers(ctx context.Context, r io.Reader, opts *Options) ([]rawUser, error) {
	cr := newCSVReader(r)
	first, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: users header: %w", err)
	}
	h, err := readHeader("users", first, ColUserID)
	if err != nil {
		return nil, err
	}

	p := newProgress(opts, "users")
	var out []rawUser
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: users line %d: %w", line, err)
		}
		userField := h.get(rec, ColUserID)
		if userField == "" {
			return nil, &ErrMissingKey{Table: "users", Line: line, Column: ColUserID}
		}
		id, err := strconv.Atoi(userField)
		if err != nil {
			return nil, fmt.Errorf("dataset: users line %d: bad %s %q", line, ColUserID, userField)
		}
		out = append(out, rawUser{id: id, age: h.get(rec, ColAge)})
		p.tick()
	}
	return out, nil
}

// cleanBooks applies the correction and imputation policy to raw book rows.
func cleanBooks(raw []rawBook) []Book {
	// First pass: parse years so the median covers only parseable values.
	years := make([]float64, 0, len(raw))
	parsed := make([]float64, len(raw))
	ok := make([]bool, len(raw))
	for i, b := range raw {
		if y, err := strconv.ParseFloat(b.year, 64); err == nil {
			parsed[i] = y
			ok[i] = true
			years = append(years, y)
		}
	}
	yearMedian := median(years)

	out := make([]Book, 0, len(raw))
	for i, b := range raw {
		author, publisher := b.author, b.publisher
		if o, hit := isbnOverrides[b.isbn]; hit {
			author = o.author
			publisher = o.publisher
		}
		if author == "" {
			author = UnknownField
		}
		if publisher == "" {
			publisher = UnknownField
		}

		image := b.imageL
		if image == "" {
			image = b.imageM
		}

		year := yearMedian
		if ok[i] {
			year = parsed[i]
		}

		out = append(out, Book{
			ISBN:      b.isbn,
			Title:     b.title,
			Author:    author,
			Publisher: publisher,
			Year:      int(year),
			ImageURL:  image,
		})
	}
	return out
}

// cleanUsers imputes missing ages with the median of the full user set, then
// filters to the plausible [5,100] range.
func cleanUsers(raw []rawUser) []User {
	ages := make([]float64, 0, len(raw))
	for _, u := range raw {
		if a, err := strconv.ParseFloat(u.age, 64); err == nil {
			ages = append(ages, a)
		}
	}
	ageMedian := median(ages)

	out := make([]User, 0, len(raw))
	for _, u := range raw {
		age := ageMedian
		if a, err := strconv.ParseFloat(u.age, 64); err == nil {
			age = a
		}
		if age < 5 || age > 100 {
			continue
		}
		out = append(out, User{ID: u.id, Age: int(age)})
	}
	return out
}

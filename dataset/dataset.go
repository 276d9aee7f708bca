package dataset

import (
	"fmt"
	"log/slog"
	"sort"
)

// Column names form the wire contract with the upstream CSV exports.
const (
	ColISBN      = "ISBN"
	ColTitle     = "Book-Title"
	ColAuthor    = "Book-Author"
	ColYear      = "Year-Of-Publication"
	ColPublisher = "Publisher"
	ColImageM    = "Image-URL-M"
	ColImageL    = "Image-URL-L"
	ColUserID    = "User-ID"
	ColRating    = "Book-Rating"
	ColAge       = "Age"
)

// UnknownField is substituted for a missing author or publisher.
const UnknownField = "Unknown"

// Book is a cleaned book record.
type Book struct {
	ISBN      string
	Title     string
	Author    string
	Publisher string
	Year      int
	ImageURL  string
}

// Rating is an explicit (non-zero) user rating of a book.
type Rating struct {
	UserID int
	ISBN   string
	Rating int
}

// User is a cleaned user record. Users outside the plausible age range
// [5,100] are dropped during load.
type User struct {
	ID  int
	Age int
}

// Dataset holds the cleaned output of a full load.
type Dataset struct {
	Books   []Book
	Ratings []Rating // explicit ratings only
	Users   []User
}

// BookInfo is the per-title display metadata joined into query results.
type BookInfo struct {
	Author   string
	ImageURL string
}

// MetadataByTitle builds the title -> display metadata table, keeping the
// first occurrence of each title. Titles, not ISBNs, are the join key for
// presentation: the same work appears under many ISBNs.
func MetadataByTitle(books []Book) map[string]BookInfo {
	meta := make(map[string]BookInfo, len(books))
	for _, b := range books {
		if _, ok := meta[b.Title]; ok {
			continue
		}
		meta[b.Title] = BookInfo{Author: b.Author, ImageURL: b.ImageURL}
	}
	return meta
}

// TitleByISBN builds the ISBN -> title join table.
func TitleByISBN(books []Book) map[string]string {
	byISBN := make(map[string]string, len(books))
	for _, b := range books {
		if _, ok := byISBN[b.ISBN]; ok {
			continue
		}
		byISBN[b.ISBN] = b.Title
	}
	return byISBN
}

// ErrMissingKey reports a record without a required join key.
// It is fatal: unlike the imputable fields there is no policy that can
// repair a record that cannot be joined.
type ErrMissingKey struct {
	Table  string
	Line   int
	Column string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("dataset: %s line %d: missing required %s", e.Table, e.Line, e.Column)
}

// ErrMissingColumn reports a source file whose header lacks a contract column.
type ErrMissingColumn struct {
	Table  string
	Column string
}

func (e *ErrMissingColumn) Error() string {
	return fmt.Sprintf("dataset: %s: header missing column %q", e.Table, e.Column)
}

// Options contains configuration options for loading.
type Options struct {
	// Logger receives progress and summary events. Nil disables logging.
	Logger *slog.Logger

	// ProgressEvery is the row interval between progress log candidates.
	// Emission is additionally rate-limited to once per second.
	ProgressEvery int
}

// DefaultOptions contains the default configuration options for loading.
var DefaultOptions = Options{
	Logger:        nil,
	ProgressEvery: 100_000,
}

// median returns the statistical median of vs (mean of the two middle values
// for even counts). vs is not modified. Returns 0 for an empty input.
func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := make([]float64, len(vs))
	copy(s, vs)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

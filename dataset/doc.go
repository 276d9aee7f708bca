// Package dataset loads and cleans the raw book, rating, and user tables.
//
// The three CSV sources share the Book-Crossing column layout: books are keyed
// by ISBN, ratings reference ISBN and User-ID, users carry an optional age.
// Loading applies a fixed correction and imputation policy instead of
// rejecting records: known-bad ISBNs get hard-coded author/publisher fixes,
// missing authors and publishers default to "Unknown", a missing large image
// URL falls back to the medium one, unparseable publication years are replaced
// with the median of the parseable ones, and missing ages are replaced with
// the median age before the [5,100] range filter is applied.
//
// Only a genuinely missing join key (ISBN or User-ID) is a fatal load error.
// Ratings with value 0 carry no explicit signal and are discarded.
package dataset

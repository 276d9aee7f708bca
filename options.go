package bookrec

import (
	"github.com/hupe1980/bookrec/blobstore"
	"github.com/hupe1980/bookrec/codec"
	"github.com/hupe1980/bookrec/compress"
	"github.com/hupe1980/bookrec/dataset"
)

type options struct {
	store      blobstore.Store
	codec      codec.Codec
	compressor compress.Compressor
	logger     *Logger

	files    dataset.Files
	hasFiles bool

	minTitleRatings int
	minUserRatings  int
	fanout          int
}

// Option configures Open behavior.
type Option func(*options)

// WithDataset configures the raw CSV sources used when a rebuild is needed.
// An engine opened without a dataset can still serve from cached artifacts,
// but any rebuild fails with ErrNoDataset.
func WithDataset(files dataset.Files) Option {
	return func(o *options) {
		o.files = files
		o.hasFiles = true
	}
}

// WithStore configures where built artifacts are cached.
// Defaults to a LocalStore in the current directory.
func WithStore(store blobstore.Store) Option {
	return func(o *options) {
		if store != nil {
			o.store = store
		}
	}
}

// WithCodec configures the codec used for saving artifacts. Loading always
// resolves the codec from the artifact header. If nil is passed,
// codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompressor configures the compressor used for saving artifacts.
// If nil is passed, compress.Default is used.
func WithCompressor(c compress.Compressor) Option {
	return func(o *options) {
		if c == nil {
			c = compress.Default
		}
		o.compressor = c
	}
}

// WithThresholds overrides the popularity floor (minimum explicit ratings
// per title) and the activity floor (minimum explicit ratings per user,
// counted after the title filter).
func WithThresholds(minTitleRatings, minUserRatings int) Option {
	return func(o *options) {
		o.minTitleRatings = minTitleRatings
		o.minUserRatings = minUserRatings
	}
}

// WithFanout overrides the default neighbor fan-out used by the index.
func WithFanout(fanout int) Option {
	return func(o *options) {
		if fanout > 0 {
			o.fanout = fanout
		}
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		store:           blobstore.NewLocalStore("."),
		codec:           codec.Default,
		compressor:      compress.Default,
		logger:          NoopLogger(),
		minTitleRatings: 35,
		minUserRatings:  10,
		fanout:          20,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

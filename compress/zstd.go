package compress

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses with klauspost zstd at the default level. It is the best
// trade-off for the repetitive JSON payloads of matrix snapshots and the
// default artifact compressor.
type Zstd struct{}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// Encoder and decoder are stateless in EncodeAll/DecodeAll mode and safe for
// concurrent use, so a single shared pair serves the whole process.
func zstdInit() {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
}

// Compress encodes data as a zstd frame.
func (Zstd) Compress(data []byte) ([]byte, error) {
	zstdInit()
	if zstdErr != nil {
		return nil, zstdErr
	}
	return zstdEnc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress decodes a zstd frame.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	zstdInit()
	if zstdErr != nil {
		return nil, zstdErr
	}
	return zstdDec.DecodeAll(data, nil)
}

// Name returns the unique name of the compressor ("zstd").
func (Zstd) Name() string { return "zstd" }

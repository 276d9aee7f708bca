package artifact

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bookrec/blobstore"
	"github.com/hupe1980/bookrec/codec"
	"github.com/hupe1980/bookrec/compress"
)

type payload struct {
	Titles []string  `json:"titles"`
	Values []float32 `json:"values"`
}

var testPayload = payload{
	Titles: []string{"Dune", "Emma"},
	Values: []float32{0.5, 1.25},
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()

	codecs := []string{"json", "go-json"}
	compressors := []string{"zstd", "lz4", "none"}
	for _, cn := range codecs {
		for _, zn := range compressors {
			t.Run(cn+"/"+zn, func(t *testing.T) {
				store := blobstore.NewMemoryStore()
				c, _ := codec.ByName(cn)
				z, _ := compress.ByName(zn)

				require.NoError(t, Save(ctx, store, "blob.bin", testPayload, func(o *Options) {
					o.Codec = c
					o.Compressor = z
				}))

				var out payload
				require.NoError(t, Load(ctx, store, "blob.bin", &out))
				assert.Equal(t, testPayload, out)
			})
		}
	}
}

func TestLoadResolvesFormatFromHeader(t *testing.T) {
	// An artifact saved with a non-default codec and compressor must load
	// without the loader knowing either: both are resolved from the header.
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	jsonCodec, _ := codec.ByName("json")
	lz4Comp, _ := compress.ByName("lz4")
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload, func(o *Options) {
		o.Codec = jsonCodec
		o.Compressor = lz4Comp
	}))

	var out payload
	require.NoError(t, Load(ctx, store, "blob.bin", &out))
	assert.Equal(t, testPayload, out)
}

func TestLoadMissing(t *testing.T) {
	var out payload
	err := Load(context.Background(), blobstore.NewMemoryStore(), "missing.bin", &out)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLoadCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload))

	// Flip a byte near the end, well inside the compressed payload.
	blob := storedBlob(t, store, "blob.bin")
	require.True(t, store.Corrupt("blob.bin", len(blob)-2))

	var out payload
	err := Load(ctx, store, "blob.bin", &out)
	require.ErrorIs(t, err, ErrCorrupt)

	var sumErr *ChecksumMismatchError
	require.ErrorAs(t, err, &sumErr)
	assert.NotEqual(t, sumErr.Expected, sumErr.Actual)
}

func TestLoadBadMagic(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload))
	require.True(t, store.Corrupt("blob.bin", 0))

	var out payload
	err := Load(ctx, store, "blob.bin", &out)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadVersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload))

	// The version lives right after the 4-byte magic.
	blob := storedBlob(t, store, "blob.bin")
	blob[4] = byte(Version + 1)
	blob[5] = 0
	require.NoError(t, store.Put(ctx, "blob.bin", blob))

	var out payload
	err := Load(ctx, store, "blob.bin", &out)
	require.ErrorIs(t, err, ErrCorrupt)

	var verErr *VersionMismatchError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, uint16(Version+1), verErr.Got)
	assert.Equal(t, uint16(Version), verErr.Want)
}

func TestLoadTruncated(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload))

	blob := storedBlob(t, store, "blob.bin")
	for _, n := range []int{0, 3, 5, len(blob) / 2} {
		require.NoError(t, store.Put(ctx, "blob.bin", blob[:n]))
		var out payload
		err := Load(ctx, store, "blob.bin", &out)
		require.ErrorIs(t, err, ErrCorrupt, "truncated to %d bytes", n)
	}
}

func TestHeaderLayout(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "blob.bin", testPayload))

	blob := storedBlob(t, store, "blob.bin")
	assert.Equal(t, uint32(Magic), binary.LittleEndian.Uint32(blob[:4]))
	assert.Equal(t, uint16(Version), binary.LittleEndian.Uint16(blob[4:6]))
}

func storedBlob(t *testing.T, store *blobstore.MemoryStore, name string) []byte {
	t.Helper()
	rc, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// Package artifact persists built engine state as self-describing blobs.
//
// Every artifact carries a fixed header (magic, format version, codec name,
// compressor name) followed by a CRC32-checksummed compressed payload.
// Loading resolves the codec and compressor from the header, so an artifact
// written with one configuration still loads under another — but an artifact
// from a different format version, or one that fails the checksum, is
// rejected rather than partially decoded.
package artifact

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/bookrec/blobstore"
	"github.com/hupe1980/bookrec/codec"
	"github.com/hupe1980/bookrec/compress"
)

const (
	// Magic identifies bookrec artifact blobs (ASCII "BKRC").
	Magic = 0x424B5243

	// Version is the current artifact format version. Artifacts are only
	// compatible within the same version; there is no migration.
	Version = 1
)

// ErrCorrupt reports an artifact that is truncated, damaged, or from an
// incompatible format version. All header and checksum failures satisfy
// `errors.Is(err, ErrCorrupt)`.
var ErrCorrupt = errors.New("artifact: corrupt or incompatible artifact")

// ChecksumMismatchError is returned when the payload checksum does not match.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("artifact: checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }

// VersionMismatchError is returned when the artifact was written by a
// different format version.
type VersionMismatchError struct {
	Got  uint16
	Want uint16
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("artifact: format version %d, want %d", e.Got, e.Want)
}

func (e *VersionMismatchError) Unwrap() error { return ErrCorrupt }

// Options contains configuration options for saving.
type Options struct {
	// Codec serializes the payload. Defaults to codec.Default.
	Codec codec.Codec

	// Compressor compresses the serialized payload.
	// Defaults to compress.Default.
	Compressor compress.Compressor
}

// Save serializes v and writes it to the store under name.
// The write is atomic per the Store contract.
func Save(ctx context.Context, store blobstore.Store, name string, v any, optFns ...func(o *Options)) error {
	opts := Options{Codec: codec.Default, Compressor: compress.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Compressor == nil {
		opts.Compressor = compress.Default
	}

	plain, err := opts.Codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", name, err)
	}
	payload, err := opts.Compressor.Compress(plain)
	if err != nil {
		return fmt.Errorf("artifact: compress %s: %w", name, err)
	}

	var buf bytes.Buffer
	writeHeader(&buf, opts.Codec.Name(), opts.Compressor.Name(), payload)
	buf.Write(payload)

	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("artifact: put %s: %w", name, err)
	}
	return nil
}

// Load reads the artifact under name from the store and decodes it into v.
// A missing blob returns blobstore.ErrNotFound; anything unreadable returns
// an error satisfying ErrCorrupt.
func Load(ctx context.Context, store blobstore.Store, name string, v any) error {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("artifact: read %s: %w", name, err)
	}

	codecName, compName, payload, err := parseHeader(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return fmt.Errorf("%s: unknown codec %q: %w", name, codecName, ErrCorrupt)
	}
	comp, ok := compress.ByName(compName)
	if !ok {
		return fmt.Errorf("%s: unknown compressor %q: %w", name, compName, ErrCorrupt)
	}

	plain, err := comp.Decompress(payload)
	if err != nil {
		return fmt.Errorf("%s: decompress: %v: %w", name, err, ErrCorrupt)
	}
	if err := c.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%s: decode: %v: %w", name, err, ErrCorrupt)
	}
	return nil
}

// Header layout, little-endian:
//
//	magic   uint32
//	version uint16
//	codec   uint8 length + bytes
//	comp    uint8 length + bytes
//	length  uint64 (compressed payload)
//	crc32   uint32 (IEEE, over compressed payload)
//	payload
func writeHeader(buf *bytes.Buffer, codecName, compName string, payload []byte) {
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], Magic)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint16(scratch[:2], Version)
	buf.Write(scratch[:2])

	buf.WriteByte(byte(len(codecName)))
	buf.WriteString(codecName)
	buf.WriteByte(byte(len(compName)))
	buf.WriteString(compName)

	binary.LittleEndian.PutUint64(scratch[:8], uint64(len(payload)))
	buf.Write(scratch[:8])
	binary.LittleEndian.PutUint32(scratch[:4], crc32.ChecksumIEEE(payload))
	buf.Write(scratch[:4])
}

func parseHeader(data []byte) (codecName, compName string, payload []byte, err error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return "", "", nil, fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}
	if magic != Magic {
		return "", "", nil, fmt.Errorf("artifact: bad magic 0x%08x: %w", magic, ErrCorrupt)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", "", nil, fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}
	if version != Version {
		return "", "", nil, &VersionMismatchError{Got: version, Want: Version}
	}

	codecName, err = readName(r)
	if err != nil {
		return "", "", nil, err
	}
	compName, err = readName(r)
	if err != nil {
		return "", "", nil, err
	}

	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", "", nil, fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}
	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return "", "", nil, fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}

	payload = data[len(data)-r.Len():]
	if uint64(len(payload)) != length {
		return "", "", nil, fmt.Errorf("artifact: payload length %d, header says %d: %w", len(payload), length, ErrCorrupt)
	}
	if actual := crc32.ChecksumIEEE(payload); actual != sum {
		return "", "", nil, &ChecksumMismatchError{Expected: sum, Actual: actual}
	}
	return codecName, compName, payload, nil
}

func readName(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", fmt.Errorf("artifact: truncated header: %w", ErrCorrupt)
	}
	return string(name), nil
}

// Package bulk encodes vertex id collections for transfer between a graph
// store and its clients.
//
// Frame format:
//
//	[4 bytes: magic "CCB1"]
//	[1 byte:  flags, bit 0 set when the body is zstd-compressed]
//	[4 bytes: id count (big-endian)]
//	[body:    count big-endian int64 values, optionally zstd-compressed]
//
// A whole collection moves in one frame, so a bulk store operation costs a
// single round trip regardless of its size.
package bulk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	// ContentType identifies a bulk frame in HTTP bodies.
	ContentType = "application/x-ccgraph-ids"
	// TextContentType identifies the bracketed list form.
	TextContentType = "text/plain"

	headerSize = 9
	idSize     = 8

	flagZstd byte = 1 << 0

	// CompressThreshold is the raw body size above which frames are compressed.
	CompressThreshold = 4 * 1024
	// MaxIDs bounds the id count a decoder accepts.
	MaxIDs = 1 << 28

	// minWindow is the smallest decoder window allowed, whatever the count.
	minWindow = 8 << 20
)

var magic = [4]byte{'C', 'C', 'B', '1'}

// ErrMalformed is returned for frames that cannot be decoded.
var ErrMalformed = errors.New("malformed bulk frame")

var encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))

// EncodeIDs packs ids into a single frame.
func EncodeIDs(ids []int64) ([]byte, error) {
	if len(ids) > MaxIDs {
		return nil, fmt.Errorf("encode %d ids: exceeds limit of %d", len(ids), MaxIDs)
	}

	body := make([]byte, len(ids)*idSize)
	for i, id := range ids {
		binary.BigEndian.PutUint64(body[i*idSize:], uint64(id))
	}

	var flags byte
	if len(body) > CompressThreshold {
		body = encoder.EncodeAll(body, make([]byte, 0, len(body)/2))
		flags |= flagZstd
	}

	frame := make([]byte, headerSize, headerSize+len(body))
	copy(frame, magic[:])
	frame[4] = flags
	binary.BigEndian.PutUint32(frame[5:headerSize], uint32(len(ids)))
	return append(frame, body...), nil
}

// DecodeIDs unpacks a frame. An empty collection decodes to an empty,
// non-nil slice.
func DecodeIDs(frame []byte) ([]int64, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformed, len(frame))
	}
	flags, count, err := parseHeader(frame[:headerSize])
	if err != nil {
		return nil, err
	}
	return decodeBody(flags, count, frame[headerSize:])
}

// WriteIDs encodes ids and writes the frame to w.
func WriteIDs(w io.Writer, ids []int64) error {
	frame, err := EncodeIDs(ids)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadIDs reads one frame from r. The body read stops once it exceeds
// what the declared count allows.
func ReadIDs(r io.Reader) ([]int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	flags, count, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	limit := int64(count) * idSize
	if flags&flagZstd != 0 {
		limit = compressBound(limit)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes allowed for %d ids", ErrMalformed, limit, count)
	}
	return decodeBody(flags, count, body)
}

func parseHeader(header []byte) (byte, uint32, error) {
	if !bytes.Equal(header[:4], magic[:]) {
		return 0, 0, fmt.Errorf("%w: bad magic %q", ErrMalformed, header[:4])
	}
	count := binary.BigEndian.Uint32(header[5:headerSize])
	if count > MaxIDs {
		return 0, 0, fmt.Errorf("%w: count %d exceeds limit", ErrMalformed, count)
	}
	return header[4], count, nil
}

func decodeBody(flags byte, count uint32, body []byte) ([]int64, error) {
	want := int64(count) * idSize
	if flags&flagZstd != 0 {
		var err error
		body, err = inflate(body, want)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrMalformed, err)
		}
	}
	if int64(len(body)) != want {
		return nil, fmt.Errorf("%w: body is %d bytes, want %d", ErrMalformed, len(body), want)
	}

	ids := make([]int64, count)
	for i := range ids {
		ids[i] = int64(binary.BigEndian.Uint64(body[i*idSize:]))
	}
	return ids, nil
}

// inflate decompresses body, reading at most one byte past want so an
// oversized payload is rejected without being expanded in full.
func inflate(body []byte, want int64) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(body),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(max(want, minWindow))))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(io.LimitReader(dec, want+1))
}

// compressBound is the largest compressed size accepted for n raw bytes.
func compressBound(n int64) int64 {
	return n + n/64 + 1024
}

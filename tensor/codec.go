package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/permuto/internal/conv"
	"github.com/hupe1980/permuto/internal/hash"
)

var (
	// ErrInvalidFrame is returned for malformed or truncated frames.
	ErrInvalidFrame = errors.New("tensor: invalid frame")
	// ErrChecksumMismatch is returned when the payload CRC does not match.
	ErrChecksumMismatch = errors.New("tensor: checksum mismatch")
)

const (
	frameMagic   = "PMTO"
	frameVersion = 1

	// magic, version, dtype, compression, rank, rawLen, crc
	fixedHeaderSize = 4 + 1 + 1 + 1 + 1 + 8 + 4
)

// DType identifies the stored element type.
type DType uint8

const (
	// Float32 stores IEEE-754 single precision values.
	Float32 DType = 1
	// Float64 stores IEEE-754 double precision values.
	Float64 DType = 2
)

func (d DType) size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// DTypeOf returns the frame dtype used for T.
func DTypeOf[T conv.Float]() DType {
	var z T
	if unsafe.Sizeof(z) == 4 {
		return Float32
	}
	return Float64
}

// Compression identifies the payload compression.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, fmt.Errorf("tensor: unknown compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Encode serializes t into a frame. LZ4 falls back to an uncompressed
// payload when the data is incompressible.
func Encode[T conv.Float](t *Tensor[T], c Compression) ([]byte, error) {
	if t == nil || len(t.Shape) == 0 {
		return nil, fmt.Errorf("%w: empty tensor", ErrShapeMismatch)
	}
	if len(t.Shape) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: rank %d exceeds %d", ErrShapeMismatch, len(t.Shape), math.MaxUint8)
	}
	n, err := numElements(t.Shape)
	if err != nil {
		return nil, err
	}
	if n != len(t.Data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShapeMismatch, t.Shape, n, len(t.Data))
	}

	dtype := DTypeOf[T]()
	raw := encodeValues(t.Data, dtype)

	payload, c, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	rawLen, err := conv.IntToUint64(len(raw))
	if err != nil {
		return nil, err
	}

	headerSize := fixedHeaderSize + 4*len(t.Shape)
	frame := make([]byte, headerSize, headerSize+len(payload))
	copy(frame, frameMagic)
	frame[4] = frameVersion
	frame[5] = byte(dtype)
	frame[6] = byte(c)
	frame[7] = byte(len(t.Shape))
	off := 8
	for _, s := range t.Shape {
		dim, err := conv.IntToUint32(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
		}
		binary.LittleEndian.PutUint32(frame[off:], dim)
		off += 4
	}
	binary.LittleEndian.PutUint64(frame[off:], rawLen)
	binary.LittleEndian.PutUint32(frame[off+8:], hash.CRC32C(raw))

	return append(frame, payload...), nil
}

// Header describes a frame without decoding its payload.
type Header struct {
	DType       DType
	Compression Compression
	Shape       []int
	RawLen      uint64
	CRC         uint32
	Size        int // header size in bytes
}

// ParseHeader validates and parses the frame header.
func ParseHeader(frame []byte) (*Header, error) {
	if len(frame) < fixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidFrame, len(frame))
	}
	if string(frame[:4]) != frameMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidFrame, frame[:4])
	}
	if frame[4] != frameVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFrame, frame[4])
	}

	h := &Header{DType: DType(frame[5]), Compression: Compression(frame[6])}
	if h.DType.size() == 0 {
		return nil, fmt.Errorf("%w: unknown %s", ErrInvalidFrame, h.DType)
	}
	if h.Compression > CompressionZSTD {
		return nil, fmt.Errorf("%w: unknown %s", ErrInvalidFrame, h.Compression)
	}

	rank := int(frame[7])
	if rank == 0 {
		return nil, fmt.Errorf("%w: rank 0", ErrInvalidFrame)
	}
	h.Size = fixedHeaderSize + 4*rank
	if len(frame) < h.Size {
		return nil, fmt.Errorf("%w: truncated shape", ErrInvalidFrame)
	}

	h.Shape = make([]int, rank)
	off := 8
	for i := range h.Shape {
		dim, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(frame[off:]))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		h.Shape[i] = dim
		off += 4
	}
	h.RawLen = binary.LittleEndian.Uint64(frame[off:])
	h.CRC = binary.LittleEndian.Uint32(frame[off+8:])

	n, err := numElements(h.Shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	want, err := conv.MulInt(n, h.DType.size())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if uint64(want) != h.RawLen {
		return nil, fmt.Errorf("%w: raw length %d does not match shape %v", ErrInvalidFrame, h.RawLen, h.Shape)
	}
	return h, nil
}

// Decode parses a frame into a Tensor[T]. Frames of the other precision are
// converted.
func Decode[T conv.Float](frame []byte) (*Tensor[T], error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}

	raw, err := decompress(frame[h.Size:], h.Compression, int(h.RawLen))
	if err != nil {
		return nil, err
	}
	if crc := hash.CRC32C(raw); crc != h.CRC {
		return nil, fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, crc, h.CRC)
	}

	return &Tensor[T]{Shape: h.Shape, Data: decodeValues[T](raw, h.DType)}, nil
}

func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("tensor: lz4: %w", err)
		}
		if n == 0 {
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZSTD:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		return enc.EncodeAll(raw, nil), CompressionZSTD, nil
	}
	return nil, 0, fmt.Errorf("tensor: unknown %s", c)
}

func decompress(payload []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrInvalidFrame, len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrInvalidFrame, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrInvalidFrame, n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrInvalidFrame, err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrInvalidFrame, len(raw), rawLen)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: unknown %s", ErrInvalidFrame, c)
}

func encodeValues[T conv.Float](data []T, dtype DType) []byte {
	buf := make([]byte, len(data)*dtype.size())
	if dtype == Float32 {
		for i, v := range data {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		}
		return buf
	}
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(float64(v)))
	}
	return buf
}

func decodeValues[T conv.Float](raw []byte, dtype DType) []T {
	out := make([]T, len(raw)/dtype.size())
	if dtype == Float32 {
		for i := range out {
			out[i] = T(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
		}
		return out
	}
	for i := range out {
		out[i] = T(math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:])))
	}
	return out
}

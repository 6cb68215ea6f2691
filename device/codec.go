package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/latchkv/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the compression of stored segments.
type Codec uint8

const (
	// CodecNone stores segments uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, the default).
	CodecLZ4 Codec = 1
	// CodecZSTD uses ZSTD (better ratio, slower).
	CodecZSTD Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// Frame format: [codec u8][rawLen u32][crc32c(raw) u32][data...]
const frameHeaderSize = 9

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

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeFrame compresses raw. Data that does not shrink below 90% is stored
// uncompressed.
func encodeFrame(raw []byte, codec Codec) ([]byte, error) {
	var compressed []byte
	switch codec {
	case CodecNone:
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CodecZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(raw))*0.9 {
		codec, compressed = CodecNone, raw
	}

	frame := make([]byte, frameHeaderSize+len(compressed))
	frame[0] = byte(codec)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(frame[5:], hash.CRC32C(raw))
	copy(frame[frameHeaderSize:], compressed)
	return frame, nil
}

func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, errors.New("frame too small for header")
	}
	codec := Codec(frame[0])
	rawLen := int(binary.LittleEndian.Uint32(frame[1:]))
	sum := binary.LittleEndian.Uint32(frame[5:])
	data := frame[frameHeaderSize:]

	var raw []byte
	switch codec {
	case CodecNone:
		if len(data) != rawLen {
			return nil, fmt.Errorf("frame holds %d bytes, header says %d", len(data), rawLen)
		}
		raw = make([]byte, rawLen)
		copy(raw, data)
	case CodecLZ4:
		raw = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("lz4: got %d bytes, want %d", n, rawLen)
		}
	case CodecZSTD:
		dec := getZstdDecoder()
		var err error
		raw, err = dec.DecodeAll(data, make([]byte, 0, rawLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("zstd: got %d bytes, want %d", len(raw), rawLen)
		}
	default:
		return nil, fmt.Errorf("unknown codec %d", codec)
	}

	if hash.CRC32C(raw) != sum {
		return nil, ErrChecksum
	}
	return raw, nil
}

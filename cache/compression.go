package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/snappy"
)

// CompressionCodec names how snapshots are compressed before they are cached.
type CompressionCodec string

const (
	CompressionNone   CompressionCodec = "none"
	CompressionGzip   CompressionCodec = "gzip"
	CompressionSnappy CompressionCodec = "snappy"
)

var (
	ErrUnsupportedCodec   = errors.New("cache: unsupported compression codec")
	ErrCorruptCompression = errors.New("cache: corrupt compressed payload")
)

// Compressed bodies start with zipHeader and a one byte codec tag. Anything
// else is returned as stored, so entries written before compression was
// enabled stay readable.
var zipHeader = []byte("odmz")

const (
	tagGzip   byte = 'g'
	tagSnappy byte = 's'
)

type compressor struct {
	tag byte
}

func newCompressor(codec CompressionCodec) (valueCodec, error) {
	switch codec {
	case "", CompressionNone:
		return nil, nil
	case CompressionGzip:
		return compressor{tag: tagGzip}, nil
	case CompressionSnappy:
		return compressor{tag: tagSnappy}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

func (c compressor) encode(_ string, value []byte) ([]byte, error) {
	out := make([]byte, 0, len(zipHeader)+1+len(value)/2)
	out = append(out, zipHeader...)
	out = append(out, c.tag)
	if c.tag == tagSnappy {
		return append(out, snappy.Encode(nil, value)...), nil
	}
	buf := bytes.NewBuffer(out)
	zw, err := gzip.NewWriterLevel(buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(value); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (compressor) decode(_ string, body []byte) ([]byte, error) {
	if len(body) <= len(zipHeader) || !bytes.HasPrefix(body, zipHeader) {
		return body, nil
	}
	payload := body[len(zipHeader)+1:]
	switch body[len(zipHeader)] {
	case tagGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, ErrCorruptCompression
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	case tagSnappy:
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

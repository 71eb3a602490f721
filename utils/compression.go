package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Encoding names match the HTTP Content-Encoding tokens.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingBrotli   Encoding = "br"
)

// packMinSize is the payload size below which Pack stores data as is.
const packMinSize = 512

// Encode compresses data with enc.
func Encode(data []byte, enc Encoding) ([]byte, error) {
	if enc == EncodingIdentity || len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case EncodingGzip:
		w = gzip.NewWriter(&buf)
	case EncodingBrotli:
		w = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", enc)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to %s encode: %w", enc, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish %s stream: %w", enc, err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte, enc Encoding) ([]byte, error) {
	if enc == EncodingIdentity || len(data) == 0 {
		return data, nil
	}

	var r io.Reader
	switch enc {
	case EncodingGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case EncodingBrotli:
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", enc)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to %s decode: %w", enc, err)
	}
	return out, nil
}

// DecodeContent undoes a Content-Encoding header value the HTTP transport left
// in place. Unknown encodings return body unchanged.
func DecodeContent(body []byte, contentEncoding string) []byte {
	enc := Encoding(strings.ToLower(strings.TrimSpace(contentEncoding)))
	if enc != EncodingGzip && enc != EncodingBrotli {
		return body
	}
	decoded, err := Decode(body, enc)
	if err != nil {
		return body
	}
	return decoded
}

// Pack brotli compresses data when it is large enough and prefixes a one byte
// marker so Unpack knows how it was stored.
func Pack(data []byte) ([]byte, error) {
	if len(data) < packMinSize {
		return append([]byte{'n'}, data...), nil
	}
	compressed, err := Encode(data, EncodingBrotli)
	if err != nil {
		return nil, err
	}
	return append([]byte{'b'}, compressed...), nil
}

func Unpack(packed []byte) ([]byte, error) {
	if len(packed) == 0 {
		return nil, fmt.Errorf("empty packed payload")
	}
	switch packed[0] {
	case 'n':
		return packed[1:], nil
	case 'b':
		return Decode(packed[1:], EncodingBrotli)
	default:
		return nil, fmt.Errorf("unknown payload marker %q", packed[0])
	}
}

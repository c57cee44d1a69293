package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// decodeBody undoes the Content-Encoding of raw and converts it to UTF-8
// using the charset named in Content-Type.
func decodeBody(h http.Header, raw []byte) (string, error) {
	data, err := decompress(h.Get("Content-Encoding"), raw)
	if err != nil {
		return "", err
	}
	return decodeCharset(h.Get("Content-Type"), data)
}

// decompress handles the encodings announced in our Accept-Encoding header.
// Some servers send raw deflate streams labelled "deflate", so a zlib
// failure falls back to raw deflate.
func decompress(encoding string, raw []byte) ([]byte, error) {
	switch enc := strings.ToLower(strings.TrimSpace(encoding)); enc {
	case "", "identity":
		return raw, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case "deflate":
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			data, err := io.ReadAll(zr)
			zr.Close()
			if err == nil {
				return data, nil
			}
		}
		slog.Warn("fetch: cannot decompress as zlib, treating as raw deflate")
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return io.ReadAll(fr)
	default:
		return nil, fmt.Errorf("unknown content encoding %q", encoding)
	}
}

// decodeCharset converts data to UTF-8. Without a charset parameter the data
// is taken as UTF-8 and invalid sequences are dropped.
func decodeCharset(contentType string, data []byte) (string, error) {
	var label string
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	slog.Debug("fetch: charset", "charset", label)
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("charset %q: %w", label, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("charset %q: %w", label, err)
	}
	return string(b), nil
}

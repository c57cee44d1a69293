package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/dict2anki/dict2anki/internal/fsutil"
)

// GuessFile requests rawURL and guesses a file name and size for it without
// reading the body. The name comes from Content-Disposition, then from the
// last segment of the final URL path, then from "file" plus an extension for
// the Content-Type. size is -1 when the server does not announce a length.
func (c *Client) GuessFile(ctx context.Context, rawURL string) (name string, size int64, err error) {
	resp, err := c.open(ctx, c.http, rawURL, identity(), c.retry)
	if err != nil {
		return "", -1, fmt.Errorf("fetch: guess file: %w", err)
	}
	defer resp.Body.Close()

	name = guessName(resp)
	size = resp.ContentLength
	slog.Debug("fetch: guess file", "url", rawURL, "name", name, "size", size)
	return name, size, nil
}

func guessName(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	p := resp.Request.URL.Path
	if name := p[strings.LastIndex(p, "/")+1:]; name != "" {
		return name
	}
	name := "file"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}

// identity asks for the bytes as stored, so saved files are never left
// compressed.
func identity() http.Header {
	return http.Header{"Accept-Encoding": {"identity"}}
}

// Save downloads rawURL to filename (the guessed name when empty) and
// returns the path written and its size. When the size is known the data goes
// to filename+".part" first; an existing shorter part file is resumed with a
// Range request, and the part file is renamed once complete. Interrupted
// transfers are resumed up to the retry limit. report, when not nil, is called
// with the bytes written so far and the expected total (-1 if unknown).
//
// force is passed to fsutil.ValidPath: without it an existing file is never
// overwritten and a fresh name is picked instead.
func (c *Client) Save(ctx context.Context, rawURL, filename string, force bool, report func(done, total int64)) (string, int64, error) {
	return c.SaveNamed(ctx, rawURL, func(guessed string) string {
		if filename == "" {
			return guessed
		}
		return filename
	}, force, report)
}

// SaveNamed is Save with the target path computed by name from the guessed
// file name.
func (c *Client) SaveNamed(ctx context.Context, rawURL string, name func(guessed string) string, force bool, report func(done, total int64)) (string, int64, error) {
	guessed, total, err := c.GuessFile(ctx, rawURL)
	if err != nil {
		return "", 0, err
	}
	filename, err := fsutil.ValidPath(name(guessed), force)
	if err != nil {
		return "", 0, err
	}

	part := filename
	if total >= 0 {
		part = filename + ".part"
	}

	var size int64
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if total >= 0 {
		if info, err := os.Stat(part); err == nil && info.Size() > 0 && info.Size() < total {
			slog.Info("fetch: part file already exists, resuming", "file", part, "size", info.Size())
			size = info.Size()
			flags = os.O_WRONLY | os.O_APPEND
		}
	}

	f, err := os.OpenFile(part, flags, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("fetch: save: %w", err)
	}
	size, err = c.download(ctx, rawURL, f, size, total, report)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", size, fmt.Errorf("fetch: save %s: %w", rawURL, err)
	}

	if part != filename {
		if err := os.Rename(part, filename); err != nil {
			return "", size, fmt.Errorf("fetch: save: %w", err)
		}
	}
	slog.Debug("fetch: saved", "file", filename, "size", size)
	return filename, size, nil
}

// download appends the body of rawURL to f starting at offset size until
// total bytes are written (or the body ends when total is unknown).
func (c *Client) download(ctx context.Context, rawURL string, f *os.File, size, total int64, report func(done, total int64)) (int64, error) {
	// Downloads may take longer than a page request; keep the transport but
	// drop the overall timeout. The context still bounds the transfer.
	hc := &http.Client{Transport: c.http.Transport}

	failures := 0
	for total < 0 || size < total {
		hdr := identity()
		if size > 0 {
			hdr.Set("Range", fmt.Sprintf("bytes=%d-", size))
		}
		resp, err := c.open(ctx, hc, rawURL, hdr, c.retry)
		if err != nil {
			return size, err
		}

		if size > 0 && resp.StatusCode != http.StatusPartialContent {
			slog.Info("fetch: server ignored range, retrieving from the start", "url", rawURL)
			if err := f.Truncate(0); err != nil {
				resp.Body.Close()
				return 0, err
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				resp.Body.Close()
				return 0, err
			}
			size = 0
		}

		n, err := io.Copy(f, &reportReader{r: resp.Body, done: size, total: total, report: report})
		resp.Body.Close()
		size += n

		if err == nil && (total < 0 || size >= total) {
			break
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		failures++
		if failures >= c.retry || ctx.Err() != nil {
			return size, err
		}
		slog.Warn("fetch: download interrupted, resuming", "url", rawURL, "size", size, "total", total, "err", err)
	}
	return size, nil
}

// reportReader calls report after every read.
type reportReader struct {
	r      io.Reader
	done   int64
	total  int64
	report func(done, total int64)
}

func (rr *reportReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	rr.done += int64(n)
	if n > 0 && rr.report != nil {
		rr.report(rr.done, rr.total)
	}
	return n, err
}

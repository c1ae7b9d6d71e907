// Package streaming implements range-addressable blob delivery: HTTP
// Range parsing with strict 416 semantics and bounded chunked transfer
// so memory use is independent of the requested range length.
package streaming

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"meagle/internal/logging"
	"meagle/internal/metrics"
)

// ChunkSize is the fixed read/write unit for blob transfer.
const ChunkSize = 1 << 20 // 1 MiB

// ErrInvalidRange indicates a Range header that cannot be satisfied:
// wrong unit, unparseable bounds, start after end, or start beyond the
// end of the blob.
var ErrInvalidRange = errors.New("invalid range")

// ByteRange is an absolute inclusive byte range within a blob.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a 206 response.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange resolves a Range header against a blob of the given size.
// A missing header returns (nil, nil): serve the whole blob. Supported
// forms are "bytes=<start>-<end>", "bytes=<start>-" and
// "bytes=-<suffix-length>"; the suffix form resolves to the final
// suffix-length bytes. Anything else is ErrInvalidRange.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	unit, value, found := strings.Cut(header, "=")
	if !found || strings.ToLower(strings.TrimSpace(unit)) != "bytes" {
		return nil, ErrInvalidRange
	}

	startStr, endStr, found := strings.Cut(value, "-")
	if !found {
		return nil, ErrInvalidRange
	}

	var start, end int64
	if startStr == "" {
		// Suffix form: last <endStr> bytes.
		length, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, ErrInvalidRange
		}
		start = size - length
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, ErrInvalidRange
		}
		if endStr == "" {
			end = size - 1
		} else if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return nil, ErrInvalidRange
		}
	}

	if start < 0 || end < start || start >= size {
		return nil, ErrInvalidRange
	}
	if end > size-1 {
		end = size - 1
	}
	return &ByteRange{Start: start, End: end}, nil
}

// ServeBlob serves the file at path with full Range support: 200 for
// whole-blob requests, 206 with Content-Range for valid ranges, 416
// with "Content-Range: bytes */<size>" for unsatisfiable ones, and
// header-only responses for HEAD. contentType falls back to
// application/octet-stream when empty.
func ServeBlob(w http.ResponseWriter, r *http.Request, path, contentType string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		metrics.RangeRequestsTotal.WithLabelValues("not_found").Inc()
		http.Error(w, "file missing", http.StatusNotFound)
		return
	}
	size := info.Size()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}

	br, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		metrics.RangeRequestsTotal.WithLabelValues("invalid_range").Inc()
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if br == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		metrics.RangeRequestsTotal.WithLabelValues("full").Inc()
		copyFileRange(w, r, path, ByteRange{Start: 0, End: size - 1})
		return
	}

	w.Header().Set("Content-Range", br.ContentRange(size))
	w.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	metrics.RangeRequestsTotal.WithLabelValues("partial").Inc()
	copyFileRange(w, r, path, *br)
}

// copyFileRange streams the inclusive byte range of path to w in
// ChunkSize pieces. It never reads past the range, stops early on a
// short read, and aborts when the client disconnects.
func copyFileRange(w http.ResponseWriter, r *http.Request, path string, br ByteRange) {
	file, err := os.Open(path)
	if err != nil {
		logging.Error("failed to open blob %s: %v", path, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close blob %s: %v", path, err)
		}
	}()

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		logging.Error("failed to seek blob %s to %d: %v", path, br.Start, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, ChunkSize)
	remaining := br.Length()

	for remaining > 0 {
		select {
		case <-r.Context().Done():
			logging.Debug("client disconnected while streaming %s", path)
			return
		default:
		}

		readSize := int64(len(buf))
		if remaining < readSize {
			readSize = remaining
		}

		n, readErr := file.Read(buf[:readSize])
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			metrics.BlobBytesServed.Add(float64(written))
			if writeErr != nil {
				logging.Debug("write aborted while streaming %s: %v", path, writeErr)
				return
			}
			remaining -= int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil || n == 0 {
			// Short read ends the stream rather than looping.
			if readErr != nil && readErr != io.EOF {
				logging.Warn("read error while streaming %s: %v", path, readErr)
			}
			return
		}
	}
}

// Package reader implements an incremental stdio reader: it extracts
// lines grouped up to (and excluding) a caller-supplied marker from an
// arbitrary byte stream, forwarding every byte read to an attached
// writer according to a three-valued write policy, while tolerating
// UTF-8 codepoints split across reads.
package reader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ghciwatch/ghciwatch/internal/ghcmessage"
)

// FindAt controls where a marker must appear within a line to count as
// a match.
type FindAt int

const (
	// LineStart requires the marker to be a prefix of the line (or of
	// the line with ANSI escapes stripped, so a marker planted right
	// after a color-reset sequence still matches at the true start).
	LineStart FindAt = iota
	// Anywhere allows the marker to appear anywhere within the line.
	Anywhere
)

// WriteBehavior controls which of the lines read are forwarded to the
// attached writer.
type WriteBehavior int

const (
	// Write forwards every byte read, including the matching line.
	Write WriteBehavior = iota
	// NoFinalLine forwards every byte except the matching line.
	NoFinalLine
	// Hide forwards nothing.
	Hide
)

// Reader incrementally reads from src, splitting it into lines and
// searching for a marker line, while forwarding bytes to w per the
// WriteBehavior passed to ReadUntil. A zero Reader is not usable; use
// New.
type Reader struct {
	src io.Reader
	w   io.Writer

	// buf holds raw bytes read from src but not yet consumed: this
	// covers both "we read further than the next newline" and "the
	// trailing partial line, possibly ending mid-codepoint". Newline
	// bytes (0x0A) can never occur inside a valid multi-byte UTF-8
	// sequence (continuation bytes are always >= 0x80), so splitting
	// on raw '\n' bytes is always safe regardless of codepoint
	// boundaries; decoding is deferred until a line is cut.
	buf []byte

	readBuf []byte // scratch buffer reused across src.Read calls
}

// New constructs a Reader that reads from src and forwards bytes to w.
func New(src io.Reader, w io.Writer) *Reader {
	return &Reader{src: src, w: w, readBuf: make([]byte, 32*1024)}
}

// ReadUntil returns the concatenation of all complete lines read since
// the previous ReadUntil call, up to and excluding the first line that
// matches marker under findAt. The matching line is consumed from the
// internal buffer, not returned and not duplicated on a later call.
//
// Every byte read is forwarded to the attached writer in source order,
// except as withheld by writeBehavior. If ctx is cancelled before a
// marker is found, ReadUntil returns ctx.Err(). If the underlying
// stream reaches EOF before a marker is found, ReadUntil returns
// whatever lines it collected along with io.EOF, so callers can
// distinguish "stream closed" from "marker not found yet" (which never
// surfaces to the caller — ReadUntil blocks internally until one or the
// other happens).
func (r *Reader) ReadUntil(ctx context.Context, marker string, findAt FindAt, writeBehavior WriteBehavior) (string, error) {
	var out strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		idx := indexByte(r.buf, '\n')
		if idx < 0 {
			// No complete line yet. Check whether the marker has
			// already arrived in the still-growing partial line.
			if matchesMarker(decodeTolerant(r.buf), marker, findAt) {
				r.forward(writeBehavior, r.buf, false, true)
				r.buf = nil // edge case: discard the partial line.
				return out.String(), nil
			}

			n, err := r.src.Read(r.readBuf)
			if n > 0 {
				r.buf = append(r.buf, r.readBuf[:n]...)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return out.String(), io.EOF
				}
				return out.String(), err
			}
			continue
		}

		lineBytes := r.buf[:idx]
		r.buf = r.buf[idx+1:]
		line := decodeLine(lineBytes)

		if matchesMarker(line, marker, findAt) {
			r.forward(writeBehavior, lineBytes, true, true)
			return out.String(), nil
		}

		r.forward(writeBehavior, lineBytes, true, false)
		out.WriteString(line)
		out.WriteByte('\n')
	}
}

// forward writes lineBytes (optionally plus a trailing newline) to the
// attached writer, honoring writeBehavior: Hide withholds every line,
// NoFinalLine withholds only the matching (final) line, and Write
// withholds nothing.
func (r *Reader) forward(behavior WriteBehavior, lineBytes []byte, withNewline bool, isFinal bool) {
	if r.w == nil {
		return
	}
	if behavior == Hide {
		return
	}
	if behavior == NoFinalLine && isFinal {
		return
	}
	_, _ = r.w.Write(lineBytes)
	if withNewline {
		_, _ = r.w.Write([]byte{'\n'})
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// decodeLine converts a complete line's raw bytes to a string,
// replacing invalid UTF-8 with U+FFFD and logging a warning — this can
// only happen for genuinely malformed input, never for a codepoint
// split across reads, since decoding is deferred until the full line
// (up to the terminating newline) has been assembled.
func decodeLine(b []byte) string {
	if !isValidUTF8(b) {
		slog.Warn("replacing invalid UTF-8 in ghci output", "bytes", len(b))
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(b)
}

// decodeTolerant renders a not-yet-terminated partial line for marker
// matching only; it never logs and is never used to produce returned
// text, so a trailing mid-codepoint tail (which will be completed by a
// future read) can't spuriously trip the warning path.
func decodeTolerant(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func matchesMarker(line, marker string, findAt FindAt) bool {
	switch findAt {
	case Anywhere:
		return strings.Contains(line, marker)
	default: // LineStart
		if strings.HasPrefix(line, marker) {
			return true
		}
		// ANSI-in-marker rule: some test libraries emit ANSI escapes
		// between the newline and the marker.
		return strings.HasPrefix(ghcmessage.StripANSI(line), marker)
	}
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

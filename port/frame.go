// Package port drives transformations for a host process over a byte stream.
//
// Every message in either direction is a frame:
//
//	length, uint32 big endian | category, 4 bytes | JSON body
//
// where length counts the category and the body.
package port

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/drummonds/purpleify/transform"
)

// Frame categories
const (
	CategoryOptions  = "OPTS"
	CategoryDone     = "DONE"
	CategoryStatus   = "STAT"
	CategoryError    = "ERRR"
	categorySize     = 4
	lengthPrefixSize = 4
)

// MaxFrameSize bounds the length a peer may announce
const MaxFrameSize = 16 << 20

// Frame is a decoded message
type Frame struct {
	Category string
	Body     []byte
}

// Options configure the transformation run by the next DONE frame
type Options struct {
	Quality         transform.Quality    `json:"quality"`
	BackgroundColor transform.Color      `json:"background_color"`
	InFile          string               `json:"in_file"`
	OutFile         string               `json:"out_file"`
	PageRange       *transform.PageRange `json:"page_range,omitempty"`
}

// errMissingQuality rejects OPTS that leave the quality out
var errMissingQuality = errors.New("missing quality")

// UnmarshalJSON requires the quality to be present
func (o *Options) UnmarshalJSON(data []byte) error {
	type options Options
	var raw struct {
		options
		Quality *transform.Quality `json:"quality"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Quality == nil {
		return errMissingQuality
	}
	*o = Options(raw.options)
	o.Quality = *raw.Quality
	return nil
}

// Status reports progress of a running transformation
type Status struct {
	PercentDone float64 `json:"percent_done"`
}

// Complete reports a finished transformation
type Complete struct {
	OriginalTitle string `json:"original_title"`
}

// ErrorMessage reports a failure
type ErrorMessage struct {
	Message string `json:"message"`
}

// ReadFrame reads one frame. It returns io.EOF only when the stream ends cleanly
// before a frame starts.
func ReadFrame(r io.Reader) (Frame, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("%w: reading frame length: %w", transform.ErrReceiving, err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes exceeds the %d byte limit", transform.ErrReceiving, length, MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("%w: reading frame body: %w", transform.ErrReceiving, err)
	}
	if len(body) < categorySize {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes has no category", errMalformedFrame, len(body))
	}

	return Frame{Category: string(body[:categorySize]), Body: body[categorySize:]}, nil
}

// errMalformedFrame is a complete frame with unusable content. The stream can
// still be read after one.
var errMalformedFrame = errors.New("malformed frame")

// WriteFrame encodes v as JSON and writes it as a single frame
func WriteFrame(w io.Writer, category string, v any) error {
	if len(category) != categorySize {
		return fmt.Errorf("invalid frame category %q", category)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", category, err)
	}

	frame := make([]byte, 0, lengthPrefixSize+categorySize+len(body))
	frame = binary.BigEndian.AppendUint32(frame, uint32(categorySize+len(body)))
	frame = append(frame, category...)
	frame = append(frame, body...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", category, err)
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

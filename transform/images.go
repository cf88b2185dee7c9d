package transform

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
)

// Streaming container framing. Each block is a header followed by its payload:
//
//	"PPDF" | offset to next header, uint32 big endian | postfix
//
// The offset counts the header itself, so it is payload length + HeaderSize.
const (
	HeaderMagic     = "PPDF"
	HeaderSize      = len(HeaderMagic) + 4 + 3
	PostfixMetadata = "MET"
	PostfixImage    = "IMG"
)

// ImageHeader introduces one block of the streaming container
type ImageHeader struct {
	// Size is the payload length, without the header
	Size    uint32
	Postfix [3]byte
}

// NewImageHeader builds the header for a payload of size bytes
func NewImageHeader(postfix string, size int) (ImageHeader, error) {
	if len(postfix) != 3 {
		return ImageHeader{}, fmt.Errorf("invalid header postfix %q", postfix)
	}
	if size < 0 || size > math.MaxUint32-HeaderSize {
		return ImageHeader{}, fmt.Errorf("%w: block of %d bytes is too large", ErrImageEncoding, size)
	}
	h := ImageHeader{Size: uint32(size)}
	copy(h.Postfix[:], postfix)
	return h, nil
}

// IsMetadata reports whether the block carries the document metadata
func (h ImageHeader) IsMetadata() bool { return string(h.Postfix[:]) == PostfixMetadata }

// IsImage reports whether the block carries a page image
func (h ImageHeader) IsImage() bool { return string(h.Postfix[:]) == PostfixImage }

// MarshalBinary encodes the header in its wire form
func (h ImageHeader) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, HeaderSize)
	out = append(out, HeaderMagic...)
	out = binary.BigEndian.AppendUint32(out, h.Size+uint32(HeaderSize))
	out = append(out, h.Postfix[:]...)
	return out, nil
}

// UnmarshalBinary decodes a header in its wire form
func (h *ImageHeader) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("header is %d bytes, want %d", len(data), HeaderSize)
	}
	if string(data[:4]) != HeaderMagic {
		return fmt.Errorf("bad header magic %q", data[:4])
	}
	offset := binary.BigEndian.Uint32(data[4:8])
	if offset < uint32(HeaderSize) {
		return fmt.Errorf("header offset %d is shorter than the header", offset)
	}
	h.Size = offset - uint32(HeaderSize)
	copy(h.Postfix[:], data[8:])
	return nil
}

// ImagesMetadata is the payload of the first block of a stream
type ImagesMetadata struct {
	OriginalTitle string `json:"originalTitle"`
	PageCount     int    `json:"pageCount"`
}

// Images streams a transformed document as one metadata block followed by one
// PNG block per page in range. Pages are rendered lazily as the stream is read.
type Images struct {
	state          *State
	unread         bytes.Buffer
	nextOffset     int
	queuedMetadata bool
	err            error
}

// NewImages takes ownership of state. Close releases it.
func NewImages(state *State) *Images {
	return &Images{state: state}
}

// TransformImages loads data and returns the image stream for it
func TransformImages(renderer pdfrenderer.Renderer, data []byte, pageRange *PageRange, quality Quality, background *Color) (*Images, error) {
	state, err := NewState(renderer, data, pageRange, quality, background)
	if err != nil {
		return nil, err
	}
	return NewImages(state), nil
}

// Pages is the number of page blocks queued so far
func (im *Images) Pages() int { return im.nextOffset }

// TotalPages is the number of page blocks the stream will carry
func (im *Images) TotalPages() int {
	if im.state == nil {
		return im.nextOffset
	}
	return im.state.PagesInRange()
}

// Read implements io.Reader. It returns io.EOF once every page has been read.
// A failed page ends the stream with that error.
func (im *Images) Read(p []byte) (int, error) {
	if im.err != nil {
		return 0, im.err
	}
	if im.state == nil {
		return 0, io.EOF
	}

	if !im.queuedMetadata {
		meta, err := json.Marshal(ImagesMetadata{
			OriginalTitle: im.state.OriginalTitle(),
			PageCount:     im.state.PageCount(),
		})
		if err != nil {
			im.err = wrap(ErrImageEncoding, err)
			return 0, im.err
		}
		if err := im.queue(PostfixMetadata, meta); err != nil {
			im.err = err
			return 0, err
		}
		im.queuedMetadata = true
	}

	if im.unread.Len() == 0 {
		if !im.state.IncludesOffset(im.nextOffset) {
			return 0, io.EOF
		}

		page, err := im.state.TransformPage(im.nextOffset)
		if err != nil {
			im.err = err
			return 0, err
		}
		encoded, err := page.PNG()
		if err != nil {
			im.err = err
			return 0, err
		}
		if err := im.queue(PostfixImage, encoded); err != nil {
			im.err = err
			return 0, err
		}
		im.nextOffset++
	}

	return im.unread.Read(p)
}

func (im *Images) queue(postfix string, payload []byte) error {
	header, err := NewImageHeader(postfix, len(payload))
	if err != nil {
		return err
	}
	raw, _ := header.MarshalBinary()
	im.unread.Write(raw)
	im.unread.Write(payload)
	return nil
}

// Close releases the document
func (im *Images) Close() error {
	if im.state == nil {
		return nil
	}
	err := im.state.Close()
	im.state = nil
	im.unread.Reset()
	return err
}

// ReadBlock reads the next block of a stream produced by Images. It returns
// io.EOF when the stream ends cleanly between blocks.
func ReadBlock(r io.Reader) (ImageHeader, []byte, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ImageHeader{}, nil, fmt.Errorf("truncated block header: %w", err)
		}
		return ImageHeader{}, nil, err
	}

	var header ImageHeader
	if err := header.UnmarshalBinary(raw); err != nil {
		return ImageHeader{}, nil, err
	}

	payload := make([]byte, header.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return header, nil, fmt.Errorf("truncated %s block: %w", header.Postfix[:], err)
	}
	return header, payload, nil
}

// TransformPagePNG renders a single page, offset from the start of the document,
// as a PNG
func TransformPagePNG(renderer pdfrenderer.Renderer, data []byte, offset int, quality Quality, background *Color) ([]byte, string, error) {
	state, err := NewState(renderer, data, nil, quality, background)
	if err != nil {
		return nil, "", err
	}
	defer state.Close()

	page, err := state.TransformPage(offset)
	if err != nil {
		return nil, "", err
	}
	encoded, err := page.PNG()
	if err != nil {
		return nil, "", err
	}
	return encoded, state.OriginalTitle(), nil
}

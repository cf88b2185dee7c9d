package transform

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this package wraps exactly one of them,
// use errors.Is to tell them apart.
var (
	ErrReceiving          = errors.New("error receiving the PDF")
	ErrRender             = errors.New("error reading the PDF")
	ErrUnknown            = errors.New("unknown error while rendering the PDF")
	ErrNonexistentPage    = errors.New("page does not exist")
	ErrPixelRead          = errors.New("error reading the pixels of a rendered page")
	ErrInsufficientMemory = errors.New("insufficient memory")
	ErrPDFWrite           = errors.New("error writing the transformed pages")
	ErrZeroPagePDF        = errors.New("PDF has zero pages")
	ErrImageEncoding      = errors.New("error outputting the transformed page as an image")
)

// wrap attaches a kind to a cause, keeping both in the chain
func wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// ErrorChain lists the messages of every error wrapped below err, outermost first.
// err itself is not included.
func ErrorChain(err error) []string {
	var sources []string
	queue := unwrapAll(err)
	for len(queue) > 0 {
		next := queue[0]
		queue = append(queue[1:], unwrapAll(next)...)
		sources = append(sources, next.Error())
	}
	return sources
}

func unwrapAll(err error) []error {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		return e.Unwrap()
	case interface{ Unwrap() error }:
		if inner := e.Unwrap(); inner != nil {
			return []error{inner}
		}
	}
	return nil
}

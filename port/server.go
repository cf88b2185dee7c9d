package port

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/transform"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ErrMissingOptions is returned for a DONE frame that no OPTS frame preceded
var ErrMissingOptions = errors.New("missing options")

// Server answers frames read from in with frames written to out
type Server struct {
	in       io.Reader
	out      io.Writer
	renderer pdfrenderer.Renderer
	options  *Options
}

// NewServer creates a server that renders documents with renderer
func NewServer(in io.Reader, out io.Writer, renderer pdfrenderer.Renderer) *Server {
	return &Server{in: in, out: out, renderer: renderer}
}

// Serve handles frames until the input is closed. Failures are reported to the
// host as ERRR frames and the next frame is served. Serve returns nil when the
// input ends cleanly, or the read error once the stream can no longer be framed.
func (s *Server) Serve() error {
	for {
		frame, err := ReadFrame(s.in)
		if err == io.EOF {
			Logger.Info("Input closed, shutting down")
			return nil
		}
		if err != nil && !errors.Is(err, errMalformedFrame) {
			s.reportError(err)
			return err
		}
		if err == nil {
			err = s.handle(frame)
		}
		if err != nil {
			s.reportError(err)
		}
	}
}

func (s *Server) handle(frame Frame) error {
	switch frame.Category {
	case CategoryOptions:
		var options Options
		if err := json.Unmarshal(frame.Body, &options); err != nil {
			s.options = nil
			return fmt.Errorf("%w: invalid options: %w", transform.ErrReceiving, err)
		}
		Logger.Debug("Received options", "quality", options.Quality, "in", options.InFile, "out", options.OutFile)
		s.options = &options
		return nil
	case CategoryDone:
		if s.options == nil {
			return ErrMissingOptions
		}
		return s.run(*s.options)
	default:
		return fmt.Errorf("%w: unrecognized message category %q", transform.ErrReceiving, frame.Category)
	}
}

// run transforms options.InFile into options.OutFile, reporting progress
func (s *Server) run(options Options) error {
	data, err := os.ReadFile(options.InFile)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	background := options.BackgroundColor
	progress, err := transform.Transform(s.renderer, data, options.PageRange, options.Quality, &background)
	if err != nil {
		return err
	}

	result, err := progress.Run(func(percentDone float64) error {
		return WriteFrame(s.out, CategoryStatus, Status{PercentDone: percentDone})
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(options.OutFile, result.Bytes, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	Logger.Info("Transformed document", "in", options.InFile, "out", options.OutFile, "bytes", len(result.Bytes))

	return WriteFrame(s.out, CategoryDone, Complete{OriginalTitle: result.OriginalTitle})
}

// reportError sends err to the host. A failure to send is only logged.
func (s *Server) reportError(err error) {
	Logger.Error("Transformation failed", "error", err, "causes", transform.ErrorChain(err))
	if sendErr := WriteFrame(s.out, CategoryError, ErrorMessage{Message: err.Error()}); sendErr != nil {
		Logger.Warn("Unable to report error to host", "error", sendErr)
	}
}

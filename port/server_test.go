package port

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/transform"
	"github.com/google/go-cmp/cmp"
)

type fakeRenderer struct {
	pages int
}

func (r *fakeRenderer) Open(data []byte) (pdfrenderer.Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, errors.New("not a PDF")
	}
	return &fakeDocument{pages: r.pages}, nil
}

func (r *fakeRenderer) Close() error { return nil }

type fakeDocument struct {
	pages int
}

func (d *fakeDocument) NumPage() int  { return d.pages }
func (d *fakeDocument) Title() string { return "Port test" }
func (d *fakeDocument) Close() error  { return nil }

func (d *fakeDocument) PageSize(index int) (float64, float64, error) {
	return 20, 30, nil
}

func (d *fakeDocument) RenderPage(index, width, height int) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.Black)
	return img, nil
}

func frame(t *testing.T, category string, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteFrame(&buf, category, v); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	return buf.Bytes()
}

func readFrames(t *testing.T, out *bytes.Buffer) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f, err := ReadFrame(out)
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		frames = append(frames, f)
	}
}

func writeInput(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, []byte("%PDF-fake"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	return in, filepath.Join(dir, "out.pdf")
}

func TestFrameRoundTrip(t *testing.T) {
	raw := frame(t, CategoryStatus, Status{PercentDone: 0.25})

	if got := binary.BigEndian.Uint32(raw[:4]); int(got) != len(raw)-4 {
		t.Errorf("Length prefix %d, frame body %d", got, len(raw)-4)
	}

	f, err := ReadFrame(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Category != CategoryStatus || string(f.Body) != `{"percent_done":0.25}` {
		t.Errorf("Unexpected frame %q %s", f.Category, f.Body)
	}
}

func TestOptionsFromHost(t *testing.T) {
	body := `{"quality":"High","background_color":{"r":1,"g":2,"b":3},"in_file":"a.pdf","out_file":"b.pdf","page_range":{"starting_index":2,"count":4}}`

	var got Options
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("Failed to decode options: %v", err)
	}
	want := Options{
		Quality:         transform.QualityHigh,
		BackgroundColor: transform.Color{R: 1, G: 2, B: 3},
		InFile:          "a.pdf",
		OutFile:         "b.pdf",
		PageRange:       &transform.PageRange{StartingIndex: 2, Count: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Options mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFrameErrors(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("Empty stream should be io.EOF, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0, 0})); !errors.Is(err, transform.ErrReceiving) {
		t.Errorf("Truncated prefix should be ErrReceiving, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 9, 'O', 'P'})); !errors.Is(err, transform.ErrReceiving) {
		t.Errorf("Truncated body should be ErrReceiving, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})); !errors.Is(err, transform.ErrReceiving) {
		t.Errorf("Oversized frame should be ErrReceiving, got %v", err)
	}
}

func TestServe(t *testing.T) {
	t.Run("Transforms on DONE", func(t *testing.T) {
		in, out := writeInput(t)
		var input bytes.Buffer
		input.Write(frame(t, CategoryOptions, Options{
			Quality:         transform.QualityLow,
			BackgroundColor: transform.DefaultBackgroundColor,
			InFile:          in,
			OutFile:         out,
		}))
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 2}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}

		frames := readFrames(t, &output)
		if len(frames) != 3 {
			t.Fatalf("Expected 2 STAT and 1 DONE, got %d frames", len(frames))
		}
		var last float64
		for _, f := range frames[:2] {
			if f.Category != CategoryStatus {
				t.Fatalf("Expected STAT, got %q", f.Category)
			}
			var status Status
			if err := json.Unmarshal(f.Body, &status); err != nil {
				t.Fatalf("Bad STAT body: %v", err)
			}
			if status.PercentDone <= last || status.PercentDone >= 1 {
				t.Errorf("Unexpected percent %v after %v", status.PercentDone, last)
			}
			last = status.PercentDone
		}

		if frames[2].Category != CategoryDone {
			t.Fatalf("Expected DONE, got %q", frames[2].Category)
		}
		var complete Complete
		if err := json.Unmarshal(frames[2].Body, &complete); err != nil || complete.OriginalTitle != "Port test" {
			t.Errorf("Unexpected DONE body %s", frames[2].Body)
		}

		written, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("Output not written: %v", err)
		}
		if !bytes.HasPrefix(written, []byte("%PDF-")) {
			t.Error("Output is not a PDF")
		}
	})

	t.Run("Options accept quality names", func(t *testing.T) {
		in, out := writeInput(t)
		body := `{"quality":"extremelow","background_color":{"r":1,"g":2,"b":3},"in_file":"` + in + `","out_file":"` + out + `","page_range":{"starting_index":0,"count":1}}`

		var input bytes.Buffer
		binary.Write(&input, binary.BigEndian, uint32(4+len(body)))
		input.WriteString(CategoryOptions + body)
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 3}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 2 || frames[0].Category != CategoryStatus || frames[1].Category != CategoryDone {
			t.Errorf("Expected one STAT then DONE, got %d frames", len(frames))
		}
	})

	t.Run("DONE without options", func(t *testing.T) {
		input := bytes.NewBuffer(frame(t, CategoryDone, struct{}{}))
		var output bytes.Buffer
		if err := NewServer(input, &output, &fakeRenderer{pages: 1}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 1 || frames[0].Category != CategoryError {
			t.Fatalf("Expected a single ERRR, got %d frames", len(frames))
		}
		var msg ErrorMessage
		json.Unmarshal(frames[0].Body, &msg)
		if !strings.Contains(msg.Message, "missing options") {
			t.Errorf("Unexpected message %q", msg.Message)
		}
	})

	t.Run("Options without quality", func(t *testing.T) {
		in, out := writeInput(t)
		body := `{"background_color":{"r":1,"g":2,"b":3},"in_file":"` + in + `","out_file":"` + out + `"}`

		var input bytes.Buffer
		binary.Write(&input, binary.BigEndian, uint32(4+len(body)))
		input.WriteString(CategoryOptions + body)
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 1}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 2 || frames[0].Category != CategoryError || frames[1].Category != CategoryError {
			t.Fatalf("Expected two ERRR frames, got %d frames", len(frames))
		}
		var msg ErrorMessage
		json.Unmarshal(frames[0].Body, &msg)
		if !strings.Contains(msg.Message, "missing quality") {
			t.Errorf("Unexpected message %q", msg.Message)
		}
		json.Unmarshal(frames[1].Body, &msg)
		if !strings.Contains(msg.Message, "missing options") {
			t.Errorf("Unexpected message %q", msg.Message)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Error("No output should be written")
		}
	})

	t.Run("Unbounded page count", func(t *testing.T) {
		in, out := writeInput(t)
		var input bytes.Buffer
		input.Write(frame(t, CategoryOptions, Options{
			Quality:   transform.QualityExtremeLow,
			InFile:    in,
			OutFile:   out,
			PageRange: &transform.PageRange{StartingIndex: 0, Count: math.MaxInt},
		}))
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 3}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 4 || frames[3].Category != CategoryDone {
			t.Fatalf("Expected 3 STAT and 1 DONE, got %d frames", len(frames))
		}
		var last float64
		for _, f := range frames[:3] {
			var status Status
			if err := json.Unmarshal(f.Body, &status); err != nil {
				t.Fatalf("Bad STAT body: %v", err)
			}
			if status.PercentDone <= last || status.PercentDone > 1 {
				t.Errorf("Unexpected percent %v after %v", status.PercentDone, last)
			}
			last = status.PercentDone
		}
	})

	t.Run("Errors do not stop the loop", func(t *testing.T) {
		in, out := writeInput(t)
		var input bytes.Buffer
		input.Write(frame(t, "WHAT", struct{}{}))
		input.Write([]byte{0, 0, 0, 2, 'O', 'P'})
		input.Write(frame(t, CategoryOptions, Options{Quality: transform.QualityLow, InFile: filepath.Join(t.TempDir(), "missing.pdf"), OutFile: out}))
		input.Write(frame(t, CategoryDone, struct{}{}))
		input.Write(frame(t, CategoryOptions, Options{Quality: transform.QualityLow, InFile: in, OutFile: out}))
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 1}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}

		var categories []string
		for _, f := range readFrames(t, &output) {
			categories = append(categories, f.Category)
		}
		want := []string{CategoryError, CategoryError, CategoryError, CategoryStatus, CategoryDone}
		if strings.Join(categories, ",") != strings.Join(want, ",") {
			t.Errorf("Frames %v, want %v", categories, want)
		}
	})

	t.Run("Zero page document", func(t *testing.T) {
		in, out := writeInput(t)
		var input bytes.Buffer
		input.Write(frame(t, CategoryOptions, Options{Quality: transform.QualityLow, InFile: in, OutFile: out}))
		input.Write(frame(t, CategoryDone, struct{}{}))

		var output bytes.Buffer
		if err := NewServer(&input, &output, &fakeRenderer{pages: 0}).Serve(); err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 1 || frames[0].Category != CategoryError {
			t.Fatalf("Expected a single ERRR, got %d frames", len(frames))
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Error("No output should be written")
		}
	})

	t.Run("Broken input stream", func(t *testing.T) {
		input := bytes.NewBuffer([]byte{0, 0, 0, 20, 'O', 'P', 'T', 'S'})
		var output bytes.Buffer
		err := NewServer(input, &output, &fakeRenderer{pages: 1}).Serve()
		if !errors.Is(err, transform.ErrReceiving) {
			t.Fatalf("Expected ErrReceiving, got %v", err)
		}
		frames := readFrames(t, &output)
		if len(frames) != 1 || frames[0].Category != CategoryError {
			t.Errorf("Expected the failure to be reported once, got %d frames", len(frames))
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("host went away") }

func TestReportErrorIgnoresSendFailure(t *testing.T) {
	input := bytes.NewBuffer(frame(t, CategoryDone, struct{}{}))
	if err := NewServer(input, failingWriter{}, &fakeRenderer{pages: 1}).Serve(); err != nil {
		t.Fatalf("Serve should shut down cleanly, got %v", err)
	}
}

// Command purpleify transforms PDF files from the command line.
//
//	purpleify -in report.pdf -out report-purple.pdf -quality high -color e261ff
//	purpleify -mode images -in report.pdf -out report.ppdf
//	purpleify -mode split -in report.ppdf -out pages/
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	config "github.com/drummonds/purpleify/config"
	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/transform"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	pdfrenderer.Logger = Logger
	transform.Logger = Logger
}

type cliOptions struct {
	mode       string
	in         string
	out        string
	quality    transform.Quality
	background transform.Color
	pageRange  *transform.PageRange
	page       int
}

func main() {
	rendererConfig, logger := config.SetupCLI()
	injectGlobals(logger)

	mode := flag.String("mode", "pdf", "pdf, images, page, info or split")
	in := flag.String("in", "", "Input PDF, or container file for split")
	out := flag.String("out", "", "Output file, or directory for split")
	quality := flag.String("quality", rendererConfig.DefaultQuality.String(), "extreme, high, normal, low or extremelow")
	color := flag.String("color", rendererConfig.DefaultBackground.Hex(), "Background colour as RRGGBB")
	start := flag.Int("start", 0, "First page offset")
	count := flag.Int("count", -1, "Number of pages, all when negative")
	page := flag.Int("page", 0, "Page offset for page mode")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "purpleify: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	options := cliOptions{mode: *mode, in: *in, out: *out, page: *page}
	var err error
	if options.quality, err = transform.ParseQuality(*quality); err != nil {
		fail(err)
	}
	if options.background, err = transform.ParseHexColor(*color); err != nil {
		fail(err)
	}
	if *start != 0 || *count >= 0 {
		pageRange := transform.PageRange{StartingIndex: *start, Count: *count}
		if *count < 0 {
			pageRange.Count = math.MaxInt32
		}
		if pageRange.StartingIndex < 0 {
			fail(fmt.Errorf("-start must not be negative"))
		}
		options.pageRange = &pageRange
	}

	if options.mode == "split" {
		if err := split(options); err != nil {
			fail(err)
		}
		return
	}

	renderer, err := pdfrenderer.NewRenderer(rendererConfig.Renderer)
	if err != nil {
		fail(err)
	}
	defer renderer.Close()

	data, err := os.ReadFile(options.in)
	if err != nil {
		fail(err)
	}

	switch options.mode {
	case "pdf":
		err = transformPDF(renderer, data, options)
	case "images":
		err = transformImages(renderer, data, options)
	case "page":
		err = transformPage(renderer, data, options)
	case "info":
		err = info(renderer, data)
	default:
		err = fmt.Errorf("unknown mode %q", options.mode)
	}
	if err != nil {
		renderer.Close()
		fail(err)
	}
}

func fail(err error) {
	if Logger != nil {
		Logger.Error("purpleify failed", "error", err, "causes", transform.ErrorChain(err))
	}
	fmt.Fprintln(os.Stderr, "purpleify:", err)
	os.Exit(1)
}

// outputPath is -out, or the input name with suffix in place of its extension
func outputPath(options cliOptions, suffix string) string {
	if options.out != "" {
		return options.out
	}
	return strings.TrimSuffix(options.in, filepath.Ext(options.in)) + suffix
}

func transformPDF(renderer pdfrenderer.Renderer, data []byte, options cliOptions) error {
	progress, err := transform.Transform(renderer, data, options.pageRange, options.quality, &options.background)
	if err != nil {
		return err
	}

	total := progress.TotalPages()
	result, err := progress.Run(func(percentDone float64) error {
		Logger.Info("Transforming", "page", progress.Pages(), "of", total, "percent", int(percentDone*100))
		return nil
	})
	if err != nil {
		return err
	}

	path := outputPath(options, "-purple.pdf")
	if err := os.WriteFile(path, result.Bytes, 0644); err != nil {
		return err
	}
	Logger.Info("Wrote transformed PDF", "path", path, "title", result.OriginalTitle, "pages", total)
	return nil
}

func transformImages(renderer pdfrenderer.Renderer, data []byte, options cliOptions) error {
	images, err := transform.TransformImages(renderer, data, options.pageRange, options.quality, &options.background)
	if err != nil {
		return err
	}
	defer images.Close()

	path := outputPath(options, ".ppdf")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	written, err := io.Copy(file, images)
	if err != nil {
		return err
	}
	Logger.Info("Wrote image container", "path", path, "pages", images.Pages(), "bytes", written)
	return file.Close()
}

func transformPage(renderer pdfrenderer.Renderer, data []byte, options cliOptions) error {
	encoded, title, err := transform.TransformPagePNG(renderer, data, options.page, options.quality, &options.background)
	if err != nil {
		return err
	}

	path := outputPath(options, fmt.Sprintf("-%03d.png", options.page))
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return err
	}
	Logger.Info("Wrote page", "path", path, "title", title, "page", options.page)
	return nil
}

func info(renderer pdfrenderer.Renderer, data []byte) error {
	documentInfo, err := pdfrenderer.Inspect(data)
	if err != nil || documentInfo.PageCount == 0 {
		doc, openErr := renderer.Open(data)
		if openErr != nil {
			return errors.Join(err, openErr)
		}
		documentInfo = pdfrenderer.Info{Title: doc.Title(), PageCount: doc.NumPage()}
		doc.Close()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(documentInfo)
}

// split writes every page of a container file to its own PNG in the -out directory
func split(options cliOptions) error {
	file, err := os.Open(options.in)
	if err != nil {
		return err
	}
	defer file.Close()

	dir := options.out
	if dir == "" {
		dir = strings.TrimSuffix(options.in, filepath.Ext(options.in))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	pages := 0
	for {
		header, payload, err := transform.ReadBlock(file)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch {
		case header.IsMetadata():
			var meta transform.ImagesMetadata
			if err := json.Unmarshal(payload, &meta); err != nil {
				return fmt.Errorf("invalid metadata block: %w", err)
			}
			Logger.Info("Container metadata", "title", meta.OriginalTitle, "pageCount", meta.PageCount)
		case header.IsImage():
			path := filepath.Join(dir, fmt.Sprintf("page-%03d.png", pages))
			if err := os.WriteFile(path, payload, 0644); err != nil {
				return err
			}
			pages++
		default:
			Logger.Warn("Skipping unknown block", "postfix", string(header.Postfix[:]))
		}
	}

	Logger.Info("Split container", "dir", dir, "pages", pages)
	return nil
}

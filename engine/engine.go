package engine

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drummonds/purpleify/config"
	"github.com/drummonds/purpleify/database"
	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/transform"
	"github.com/labstack/echo/v4"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Renderer     pdfrenderer.Renderer
}

// RegisterRoutes adds every API route to the echo instance. Everything lives
// under /api/*.
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo

	// Transformation API routes
	e.POST("/api/transform", serverHandler.TransformDocument)
	e.POST("/api/images", serverHandler.TransformImages)
	e.POST("/api/page/:index", serverHandler.TransformPage)
	e.POST("/api/info", serverHandler.GetInfo)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)

	// Admin API routes
	e.GET("/api/health", serverHandler.Health)
	e.POST("/api/jobs/purge", serverHandler.PurgeJobsNow)
}

// transformRequest is an uploaded document and the options to transform it with
type transformRequest struct {
	fileName   string
	data       []byte
	quality    transform.Quality
	background transform.Color
	pageRange  *transform.PageRange
}

// parseTransformRequest reads the multipart form shared by the transformation
// routes: file, quality, color, start and count
func (serverHandler *ServerHandler) parseTransformRequest(c echo.Context) (*transformRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: missing file upload: %w", transform.ErrReceiving, err)
	}

	maxBytes := int64(serverHandler.ServerConfig.MaxUploadMB) << 20
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload of %d bytes exceeds the %d MB limit", fileHeader.Size, serverHandler.ServerConfig.MaxUploadMB))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open upload: %w", transform.ErrReceiving, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read upload: %w", transform.ErrReceiving, err)
	}

	request := &transformRequest{
		fileName:   filepath.Base(fileHeader.Filename),
		data:       data,
		quality:    serverHandler.ServerConfig.DefaultQuality,
		background: serverHandler.ServerConfig.DefaultBackground,
	}

	if value := c.FormValue("quality"); value != "" {
		request.quality, err = transform.ParseQuality(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", transform.ErrReceiving, err)
		}
	}

	if value := c.FormValue("color"); value != "" {
		request.background, err = transform.ParseHexColor(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", transform.ErrReceiving, err)
		}
	}

	start, count := c.FormValue("start"), c.FormValue("count")
	if start != "" || count != "" {
		pageRange := transform.PageRange{StartingIndex: 0, Count: math.MaxInt32}
		if start != "" {
			if pageRange.StartingIndex, err = parseNonNegative("start", start); err != nil {
				return nil, err
			}
		}
		if count != "" {
			if pageRange.Count, err = parseNonNegative("count", count); err != nil {
				return nil, err
			}
		}
		request.pageRange = &pageRange
	}

	return request, nil
}

func parseNonNegative(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", transform.ErrReceiving, name, value)
	}
	return n, nil
}

// outputName is the download name of a transformed upload
func outputName(fileName, ext string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "document"
	}
	return base + "-purple" + ext
}

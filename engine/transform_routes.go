package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/drummonds/purpleify/database"
	"github.com/drummonds/purpleify/engine/pdfrenderer"
	"github.com/drummonds/purpleify/transform"
	"github.com/labstack/echo/v4"
)

const streamChunkSize = 32 * 1024

// TransformDocument purpleifies an uploaded PDF and returns the new PDF
// @Summary Transform a PDF
// @Description Re-render every page in range with the background replaced by a colour and reassemble a PDF
// @Tags Transform
// @Accept multipart/form-data
// @Produce application/pdf
// @Param file formData file true "PDF to transform"
// @Param quality formData string false "extreme, high, normal, low or extremelow"
// @Param color formData string false "Background colour as RRGGBB"
// @Param start formData int false "First page offset"
// @Param count formData int false "Number of pages"
// @Success 200 {file} binary "Transformed PDF"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 422 {object} map[string]interface{} "Document could not be rendered"
// @Router /transform [post]
func (serverHandler *ServerHandler) TransformDocument(c echo.Context) error {
	request, err := serverHandler.parseTransformRequest(c)
	if err != nil {
		return transformError(c, err)
	}

	job := serverHandler.startJob(database.JobTypeTransform, request.fileName, "Transforming "+request.fileName)
	setJobHeader(c, job)

	progress, err := transform.Transform(serverHandler.Renderer, request.data, request.pageRange, request.quality, &request.background)
	if err != nil {
		job.fail(err)
		return transformError(c, err)
	}

	total := progress.TotalPages()
	job.setTotal(total)
	Logger.Info("Transforming document", "file", request.fileName, "pages", total,
		"quality", request.quality, "background", request.background)

	result, err := progress.Run(func(float64) error {
		job.pageDone(progress.Pages(), total)
		return nil
	})
	if err != nil {
		job.fail(err)
		return transformError(c, err)
	}

	job.complete(database.JobResult{
		OriginalTitle: result.OriginalTitle,
		Pages:         total,
		Bytes:         len(result.Bytes),
	})
	Logger.Info("Document transformed", "file", request.fileName, "title", result.OriginalTitle, "bytes", len(result.Bytes))

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", outputName(request.fileName, ".pdf")))
	return c.Blob(http.StatusOK, "application/pdf", result.Bytes)
}

// TransformImages streams the transformed pages as PNG blocks
// @Summary Stream transformed pages
// @Description Stream a metadata block followed by one PNG block per page, each introduced by a PPDF header
// @Tags Transform
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "PDF to transform"
// @Param quality formData string false "Render quality"
// @Param color formData string false "Background colour as RRGGBB"
// @Param start formData int false "First page offset"
// @Param count formData int false "Number of pages"
// @Success 200 {file} binary "Image stream"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 422 {object} map[string]interface{} "Document could not be rendered"
// @Router /images [post]
func (serverHandler *ServerHandler) TransformImages(c echo.Context) error {
	request, err := serverHandler.parseTransformRequest(c)
	if err != nil {
		return transformError(c, err)
	}

	job := serverHandler.startJob(database.JobTypeImages, request.fileName, "Streaming "+request.fileName)
	setJobHeader(c, job)

	images, err := transform.TransformImages(serverHandler.Renderer, request.data, request.pageRange, request.quality, &request.background)
	if err != nil {
		job.fail(err)
		return transformError(c, err)
	}
	defer images.Close()
	job.setTotal(images.TotalPages())

	response := c.Response()
	response.Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	response.WriteHeader(http.StatusOK)

	// Errors past this point can only end the stream early; the client sees a
	// truncated block and the job records why.
	written := 0
	pagesSeen := 0
	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := images.Read(buf)
		if n > 0 {
			if _, err := response.Write(buf[:n]); err != nil {
				Logger.Warn("Client went away during image stream", "file", request.fileName, "error", err)
				job.fail(err)
				return nil
			}
			response.Flush()
			written += n
		}
		if pages := images.Pages(); pages != pagesSeen {
			pagesSeen = pages
			job.pageDone(pages, images.TotalPages())
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			Logger.Error("Image stream failed", "file", request.fileName, "error", readErr,
				"causes", transform.ErrorChain(readErr))
			job.fail(readErr)
			return nil
		}
	}

	job.complete(database.JobResult{Pages: images.Pages(), Bytes: written})
	return nil
}

// TransformPage renders one transformed page as a PNG
// @Summary Transform a single page
// @Description Render one page, offset from the start of the document, as a PNG. A width gives a thumbnail.
// @Tags Transform
// @Accept multipart/form-data
// @Produce image/png
// @Param index path int true "Page offset"
// @Param file formData file true "PDF to transform"
// @Param quality formData string false "Render quality"
// @Param color formData string false "Background colour as RRGGBB"
// @Param width query int false "Thumbnail width in pixels"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} map[string]interface{} "No such page"
// @Router /page/{index} [post]
func (serverHandler *ServerHandler) TransformPage(c echo.Context) error {
	index, err := parseNonNegative("index", c.Param("index"))
	if err != nil {
		return transformError(c, err)
	}

	width := 0
	if value := c.QueryParam("width"); value != "" {
		width, err = strconv.Atoi(value)
		if err != nil || width <= 0 {
			return transformError(c, fmt.Errorf("%w: width must be a positive integer, got %q", transform.ErrReceiving, value))
		}
	}

	request, err := serverHandler.parseTransformRequest(c)
	if err != nil {
		return transformError(c, err)
	}

	job := serverHandler.startJob(database.JobTypePage, request.fileName, fmt.Sprintf("Rendering page %d of %s", index, request.fileName))
	setJobHeader(c, job)
	job.setTotal(1)

	encoded, title, err := serverHandler.renderPage(request, index, width)
	if err != nil {
		job.fail(err)
		return transformError(c, err)
	}

	job.complete(database.JobResult{OriginalTitle: title, Pages: 1, Bytes: len(encoded)})
	return c.Blob(http.StatusOK, "image/png", encoded)
}

// renderPage transforms one page, scaling it down to width pixels when width is set
func (serverHandler *ServerHandler) renderPage(request *transformRequest, index, width int) ([]byte, string, error) {
	state, err := transform.NewState(serverHandler.Renderer, request.data, nil, request.quality, &request.background)
	if err != nil {
		return nil, "", err
	}
	defer state.Close()

	page, err := state.TransformPage(index)
	if err != nil {
		return nil, "", err
	}

	if width == 0 || width >= page.Image.Bounds().Dx() {
		encoded, err := page.PNG()
		return encoded, state.OriginalTitle(), err
	}

	thumbnail := imaging.Resize(page.Image, width, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.PNG); err != nil {
		return nil, "", fmt.Errorf("%w: %w", transform.ErrImageEncoding, err)
	}
	return buf.Bytes(), state.OriginalTitle(), nil
}

// GetInfo reports the title and page count of an uploaded PDF
// @Summary Inspect a PDF
// @Description Read the title and page count without rendering
// @Tags Transform
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF to inspect"
// @Success 200 {object} pdfrenderer.Info "Document info"
// @Failure 422 {object} map[string]interface{} "Not a readable PDF"
// @Router /info [post]
func (serverHandler *ServerHandler) GetInfo(c echo.Context) error {
	request, err := serverHandler.parseTransformRequest(c)
	if err != nil {
		return transformError(c, err)
	}

	info, err := serverHandler.inspect(request.data)
	if err != nil {
		return transformError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// inspect reads the PDF structure directly and falls back to the renderer when
// the structure cannot be parsed
func (serverHandler *ServerHandler) inspect(data []byte) (pdfrenderer.Info, error) {
	info, err := pdfrenderer.Inspect(data)
	if err == nil && info.PageCount > 0 {
		return info, nil
	}
	if err != nil {
		Logger.Debug("Falling back to renderer for document info", "error", err)
	}

	doc, openErr := serverHandler.Renderer.Open(data)
	if openErr != nil {
		return pdfrenderer.Info{}, fmt.Errorf("%w: %w", transform.ErrRender, openErr)
	}
	defer doc.Close()

	info = pdfrenderer.Info{Title: doc.Title(), PageCount: doc.NumPage()}
	if info.PageCount == 0 {
		return info, transform.ErrZeroPagePDF
	}
	return info, nil
}

// Health reports the configured backends
// @Summary Health check
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Service status"
// @Router /health [get]
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"renderer": serverHandler.ServerConfig.Renderer,
		"database": serverHandler.ServerConfig.DatabaseType,
	})
}

// PurgeJobsNow deletes finished jobs past their retention without waiting for the scheduler
// @Summary Purge old jobs
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Number of jobs deleted"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs/purge [post]
func (serverHandler *ServerHandler) PurgeJobsNow(c echo.Context) error {
	deleted, err := serverHandler.purgeOldJobs()
	if err != nil {
		if errors.Is(err, errNoDatabase) {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to purge jobs",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

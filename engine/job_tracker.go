package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/drummonds/purpleify/database"
	"github.com/drummonds/purpleify/transform"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// jobTracker records the progress of one request in the job store. Failing to
// record is logged and never fails the request.
type jobTracker struct {
	db    database.Repository
	id    ulid.ULID
	valid bool
}

// startJob creates a job and marks it running
func (serverHandler *ServerHandler) startJob(jobType database.JobType, sourceName, message string) *jobTracker {
	tracker := &jobTracker{db: serverHandler.DB}
	if serverHandler.DB == nil {
		return tracker
	}

	job, err := serverHandler.DB.CreateJob(jobType, sourceName, message)
	if err != nil {
		Logger.Error("Failed to create job", "type", jobType, "error", err)
		return tracker
	}
	tracker.id = job.ID
	tracker.valid = true

	if err := serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, message); err != nil {
		Logger.Error("Failed to update job status", "jobID", job.ID, "error", err)
	}
	return tracker
}

// ID is the job ID, empty when no job could be recorded
func (j *jobTracker) ID() string {
	if !j.valid {
		return ""
	}
	return j.id.String()
}

// setTotal records the number of pages the job renders
func (j *jobTracker) setTotal(total int) {
	if !j.valid {
		return
	}
	if err := j.db.UpdateJobTotalSteps(j.id, total); err != nil {
		Logger.Error("Failed to record job size", "jobID", j.id, "error", err)
	}
}

// pageDone records that done of total pages have been rendered. The last share
// is left for writing the output.
func (j *jobTracker) pageDone(done, total int) {
	if !j.valid {
		return
	}
	progress := database.PercentToProgress(float64(done) / float64(total+1))
	step := fmt.Sprintf("Rendered page %d of %d", done, total)
	if err := j.db.UpdateJobProgress(j.id, progress, step); err != nil {
		Logger.Error("Failed to update job progress", "jobID", j.id, "error", err)
	}
}

func (j *jobTracker) fail(err error) {
	if !j.valid {
		return
	}
	if dbErr := j.db.UpdateJobError(j.id, err.Error()); dbErr != nil {
		Logger.Error("Failed to record job error", "jobID", j.id, "error", dbErr)
	}
}

func (j *jobTracker) complete(result database.JobResult) {
	if !j.valid {
		return
	}
	if err := j.db.CompleteJob(j.id, result.String()); err != nil {
		Logger.Error("Failed to complete job", "jobID", j.id, "error", err)
	}
}

// setJobHeader tells the client which job tracks its request
func setJobHeader(c echo.Context, job *jobTracker) {
	if id := job.ID(); id != "" {
		c.Response().Header().Set("X-Job-Id", id)
	}
}

// statusForError maps transformation failures to HTTP status codes
func statusForError(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, transform.ErrReceiving):
		return http.StatusBadRequest
	case errors.Is(err, transform.ErrNonexistentPage):
		return http.StatusNotFound
	case errors.Is(err, transform.ErrZeroPagePDF), errors.Is(err, transform.ErrRender):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// transformError logs err and answers with its status and message
func transformError(c echo.Context, err error) error {
	status := statusForError(err)
	Logger.Error("Transformation request failed", "path", c.Path(), "status", status,
		"error", err, "causes", transform.ErrorChain(err))

	message := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	}
	return c.JSON(status, map[string]interface{}{
		"error": message,
	})
}

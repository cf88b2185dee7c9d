package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/drummonds/purpleify/database"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

const (
	defaultJobsPage = 20
	maxJobsPage     = 100
)

// GetJob reports one transformation by the ID returned in its X-Job-Id header
// @Summary Look up a transformation
// @Description Status, page progress and result of the transform, images, page or cleanup job with this ID
// @Tags Jobs
// @Produce json
// @Param id path string true "ID from the X-Job-Id response header"
// @Success 200 {object} database.Job "The job"
// @Failure 400 {object} map[string]interface{} "ID is not a ULID"
// @Failure 404 {object} map[string]interface{} "No such job, or it has been purged"
// @Failure 500 {object} map[string]interface{} "Job store unavailable"
// @Router /jobs/{id} [get]
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		return jobsError(c, http.StatusBadRequest, fmt.Sprintf("%q is not a job ID", c.Param("id")))
	}

	job, err := serverHandler.DB.GetJob(id)
	switch {
	case errors.Is(err, database.ErrJobNotFound):
		return jobsError(c, http.StatusNotFound, "No job "+id.String())
	case err != nil:
		Logger.Error("Job lookup failed", "jobID", id, "error", err)
		return jobsError(c, http.StatusInternalServerError, "Unable to read the job store")
	}
	return c.JSON(http.StatusOK, job)
}

// GetRecentJobs lists transformations, newest first
// @Summary List transformations
// @Description Page through every recorded job, newest first, until the purge removes it
// @Tags Jobs
// @Produce json
// @Param limit query int false "Jobs per page, 1 to 100 (default 20)"
// @Param offset query int false "Jobs to skip (default 0)"
// @Success 200 {array} database.Job "Jobs"
// @Failure 400 {object} map[string]interface{} "Bad limit or offset"
// @Failure 500 {object} map[string]interface{} "Job store unavailable"
// @Router /jobs [get]
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit, err := jobsQueryInt(c, "limit", defaultJobsPage, 1, maxJobsPage)
	if err != nil {
		return jobsError(c, http.StatusBadRequest, err.Error())
	}
	offset, err := jobsQueryInt(c, "offset", 0, 0, -1)
	if err != nil {
		return jobsError(c, http.StatusBadRequest, err.Error())
	}

	jobs, err := serverHandler.DB.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Listing jobs failed", "limit", limit, "offset", offset, "error", err)
		return jobsError(c, http.StatusInternalServerError, "Unable to read the job store")
	}
	return c.JSON(http.StatusOK, nonNilJobs(jobs))
}

// GetActiveJobs lists transformations that have not finished yet
// @Summary List unfinished transformations
// @Description Pending and running jobs, such as documents still being rendered page by page
// @Tags Jobs
// @Produce json
// @Success 200 {array} database.Job "Unfinished jobs"
// @Failure 500 {object} map[string]interface{} "Job store unavailable"
// @Router /jobs/active [get]
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs()
	if err != nil {
		Logger.Error("Listing unfinished jobs failed", "error", err)
		return jobsError(c, http.StatusInternalServerError, "Unable to read the job store")
	}
	return c.JSON(http.StatusOK, nonNilJobs(jobs))
}

// jobsQueryInt reads an optional integer query parameter in [low, high]. A
// negative high leaves it unbounded.
func jobsQueryInt(c echo.Context, name string, fallback, low, high int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < low || (high >= 0 && value > high) {
		if high < 0 {
			return 0, fmt.Errorf("%s must be an integer of at least %d, got %q", name, low, raw)
		}
		return 0, fmt.Errorf("%s must be an integer from %d to %d, got %q", name, low, high, raw)
	}
	return value, nil
}

// nonNilJobs makes an empty listing encode as [] rather than null
func nonNilJobs(jobs []database.Job) []database.Job {
	if jobs == nil {
		return []database.Job{}
	}
	return jobs
}

func jobsError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]interface{}{
		"error": message,
	})
}

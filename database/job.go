package database

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsFinished reports whether the job has reached a terminal status
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType represents the type of job
type JobType string

const (
	JobTypeTransform JobType = "transform"
	JobTypeImages    JobType = "images"
	JobTypePage      JobType = "page"
	JobTypeCleanup   JobType = "cleanup"
)

// Job represents a transformation or housekeeping run
type Job struct {
	ID          ulid.ULID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	SourceName  string     `json:"sourceName,omitempty"` // Uploaded file name
	Progress    int        `json:"progress"`             // 0-100
	CurrentStep string     `json:"currentStep"`          // Human-readable current step
	TotalSteps  int        `json:"totalSteps"`           // Pages to transform
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
	Result      string     `json:"result,omitempty"` // JSON encoded JobResult
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobResult summarises a finished transformation
type JobResult struct {
	OriginalTitle string `json:"originalTitle"`
	Pages         int    `json:"pages"`
	Bytes         int    `json:"bytes"`
}

// String encodes the result for storage in Job.Result
func (r JobResult) String() string {
	encoded, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// ParseResult decodes Job.Result, returning nil when there is none
func (j *Job) ParseResult() (*JobResult, error) {
	if j.Result == "" {
		return nil, nil
	}
	result := new(JobResult)
	if err := json.Unmarshal([]byte(j.Result), result); err != nil {
		return nil, err
	}
	return result, nil
}

// PercentToProgress converts a fraction in [0, 1] to whole percent
func PercentToProgress(percentDone float64) int {
	switch {
	case percentDone <= 0:
		return 0
	case percentDone >= 1:
		return 100
	}
	return int(percentDone * 100)
}

package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the processing state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Job is one URL's metadata-fetch-and-download unit of work.
type Job struct {
	ID           string
	URL          string
	PatternID    string
	OutputPath   string
	ResolvedPath string
	// Artifacts lists every file the tool announced while running.
	Artifacts    []string
	Status       JobStatus
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewJob creates a pending job for a match.
func NewJob(id string, m Match) *Job {
	now := time.Now()
	j := &Job{
		ID:        id,
		URL:       m.URL,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Pattern != nil {
		j.PatternID = m.Pattern.ID
	}
	return j
}

// Track notes a file the tool announced and makes it the resolved path.
func (j *Job) Track(path string) {
	j.ResolvedPath = path
	for _, a := range j.Artifacts {
		if a == path {
			return
		}
	}
	j.Artifacts = append(j.Artifacts, path)
}

// IsTerminal reports whether the job has settled.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Start moves a pending job to running with the requested output path.
func (j *Job) Start(outputPath string) error {
	if j.Status != StatusPending {
		return fmt.Errorf("start job %s from %s: %w", j.ID, j.Status, ErrJobTransition)
	}
	j.OutputPath = outputPath
	j.Status = StatusRunning
	j.UpdatedAt = time.Now()
	return nil
}

// Succeed settles a running job with the file actually written.
func (j *Job) Succeed(path string) error {
	if j.Status != StatusRunning {
		return fmt.Errorf("complete job %s from %s: %w", j.ID, j.Status, ErrJobTransition)
	}
	j.ResolvedPath = path
	j.Status = StatusSucceeded
	j.UpdatedAt = time.Now()
	return nil
}

// Fail settles a job with an error. Pending jobs may fail directly
// when no output path could be allocated.
func (j *Job) Fail(reason string) error {
	if j.IsTerminal() {
		return fmt.Errorf("fail job %s from %s: %w", j.ID, j.Status, ErrJobTransition)
	}
	j.Error = reason
	j.Status = StatusFailed
	j.UpdatedAt = time.Now()
	return nil
}

// FilePath returns the path of the delivered file, preferring the path
// reported by the extraction tool over the requested template.
func (j *Job) FilePath() string {
	if j.ResolvedPath != "" {
		return j.ResolvedPath
	}
	return j.OutputPath
}

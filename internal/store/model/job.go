package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// validPredecessors lists, for each status, the statuses a job is allowed to
// come from. Transitions are forward only; terminal states are absorbing.
var validPredecessors = map[JobStatus][]JobStatus{
	JobStatusRunning:   {JobStatusPending},
	JobStatusCompleted: {JobStatusRunning},
	JobStatusFailed:    {JobStatusPending, JobStatusRunning},
}

// PredecessorsOf returns the statuses from which a transition to status is legal.
func PredecessorsOf(status JobStatus) []JobStatus {
	return validPredecessors[status]
}

// IsTerminal reports whether status is absorbing.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type Job struct {
	ID        string    `gorm:"primaryKey"`
	Task      string    `gorm:"not null"`
	RepoURL   *string   `gorm:"column:repo_url"`
	Status    JobStatus `gorm:"type:VARCHAR(16);not null;default:pending;index"`
	Logs      string    `gorm:"not null;default:''"`
	Files     []byte    `gorm:"type:jsonb"`
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// FileList decodes the ordered list of produced file names.
func (j *Job) FileList() []string {
	if len(j.Files) == 0 {
		return []string{}
	}
	var files []string
	if err := json.Unmarshal(j.Files, &files); err != nil {
		return []string{}
	}
	return files
}

// SetFileList encodes files preserving order.
func (j *Job) SetFileList(files []string) {
	val, _ := json.Marshal(files)
	j.Files = val
}

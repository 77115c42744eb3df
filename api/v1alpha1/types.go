package v1alpha1

import "time"

// JobCreate is the job submission payload.
type JobCreate struct {
	Task    string  `json:"task"`
	RepoURL *string `json:"repo_url,omitempty"`
}

// Job is the submission acknowledgment.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// JobDetail is the full job view.
type JobDetail struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	RepoURL   *string   `json:"repo_url,omitempty"`
	Status    string    `json:"status"`
	Logs      string    `json:"logs"`
	Files     []string  `json:"files"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStatus is the status-only view.
type JobStatus struct {
	Status string `json:"status"`
}

// Error is the generic error payload.
type Error struct {
	Message string `json:"message"`
}

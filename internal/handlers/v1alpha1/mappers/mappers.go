package mappers

import (
	api "github.com/celia-labs/celia-agent/api/v1alpha1"
	"github.com/celia-labs/celia-agent/internal/store/model"
)

func JobToApi(job *model.Job) api.Job {
	return api.Job{
		ID:        job.ID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
	}
}

func JobToApiDetail(job *model.Job) api.JobDetail {
	return api.JobDetail{
		ID:        job.ID,
		Task:      job.Task,
		RepoURL:   job.RepoURL,
		Status:    string(job.Status),
		Logs:      job.Logs,
		Files:     job.FileList(),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func JobListToApi(jobs model.JobList) []api.JobDetail {
	result := make([]api.JobDetail, 0, len(jobs))
	for i := range jobs {
		result = append(result, JobToApiDetail(&jobs[i]))
	}
	return result
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/celia-labs/celia-agent/internal/agent"
	"github.com/celia-labs/celia-agent/internal/store"
	"github.com/celia-labs/celia-agent/internal/store/model"
)

// JobRunner executes a job pipeline. Satisfied by *agent.Coordinator.
type JobRunner interface {
	Execute(ctx context.Context, jobID string) error
}

type JobService struct {
	store         store.Store
	workspace     *agent.Workspace
	runner        JobRunner
	maxTaskLength int
}

func NewJobService(s store.Store, workspace *agent.Workspace, runner JobRunner, maxTaskLength int) *JobService {
	if maxTaskLength < 1 {
		maxTaskLength = 4096
	}
	return &JobService{
		store:         s,
		workspace:     workspace,
		runner:        runner,
		maxTaskLength: maxTaskLength,
	}
}

// CreateJob validates the task, persists the job in pending state, prepares
// its workspace and kicks the pipeline off in the background.
func (s *JobService) CreateJob(ctx context.Context, task string, repoURL *string) (*model.Job, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, NewErrInvalidTask("task must not be empty")
	}
	if len(task) > s.maxTaskLength {
		return nil, NewErrInvalidTask("task exceeds maximum length")
	}

	id := uuid.NewString()[:8]
	job, err := s.store.Job().Create(ctx, id, task, repoURL)
	if err != nil {
		return nil, err
	}

	if err := s.workspace.EnsureJobDirs(id); err != nil {
		return nil, err
	}
	zap.S().Named("job_service").Infof("job %s created", id)

	// The request returns immediately; execution is an asynchronous
	// background job detached from the request context.
	go func() {
		if err := s.runner.Execute(context.Background(), id); err != nil {
			zap.S().Named("job_service").Errorf("job %s execution failed: %v", id, err)
		}
	}()

	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

func (s *JobService) GetJobStatus(ctx context.Context, id string) (model.JobStatus, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

func (s *JobService) ListJobs(ctx context.Context, limit int) (model.JobList, error) {
	return s.store.Job().List(ctx, limit)
}

// DeleteJob removes the job record. This is an external surface operation;
// the coordinator itself never deletes jobs.
func (s *JobService) DeleteJob(ctx context.Context, id string) error {
	return s.store.Job().Delete(ctx, id)
}

// ResolveFile returns the on-disk path of a produced artifact.
func (s *JobService) ResolveFile(ctx context.Context, id string, filename string) (string, error) {
	if _, err := s.GetJob(ctx, id); err != nil {
		return "", err
	}
	path, err := s.workspace.ResolveFile(id, filename)
	if err != nil {
		return "", NewErrFileNotFound(filename)
	}
	return path, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/celia-labs/celia-agent/internal/store/model"
)

type Job interface {
	InitialMigration() error
	Create(ctx context.Context, id string, task string, repoURL *string) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, limit int) (model.JobList, error)
	UpdateStatus(ctx context.Context, id string, status model.JobStatus) error
	AppendLog(ctx context.Context, id string, text string) error
	AddFile(ctx context.Context, id string, filename string) error
	SetError(ctx context.Context, id string, message string) error
	Delete(ctx context.Context, id string) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.Job{})
}

func (s *JobStore) Create(ctx context.Context, id string, task string, repoURL *string) (*model.Job, error) {
	now := time.Now()
	job := model.Job{
		ID:      id,
		Task:    task,
		RepoURL: repoURL,
		Status:  model.JobStatusPending,
		Logs:    fmt.Sprintf("[%s] Job created\n", now.Format(time.RFC3339)),
	}
	job.SetFileList([]string{})

	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, limit int) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx).Model(&model.Job{}).Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if result := tx.Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

// UpdateStatus enforces the forward-only lifecycle: the update only applies
// when the current status is a legal predecessor of the requested one.
func (s *JobStore) UpdateStatus(ctx context.Context, id string, status model.JobStatus) error {
	preds := model.PredecessorsOf(status)
	if len(preds) == 0 {
		return ErrInvalidStatusChange
	}

	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status IN ?", id, preds).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidStatusChange
	}
	return nil
}

// AppendLog adds a timestamp-prefixed line to the job log. The log only
// grows; lines are never rewritten.
func (s *JobStore) AppendLog(ctx context.Context, id string, text string) error {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), text)

	result := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ?", id).
		Update("logs", gorm.Expr("logs || ?", line))
	if result.Error != nil {
		return fmt.Errorf("appending job log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AddFile registers a produced file name, deduplicating while preserving
// insertion order.
func (s *JobStore) AddFile(ctx context.Context, id string, filename string) error {
	txCtx, err := newTransactionContext(ctx, s.db)
	if err != nil {
		return err
	}

	job, err := s.Get(txCtx, id)
	if err != nil {
		_, _ = Rollback(txCtx)
		return err
	}

	files := job.FileList()
	for _, f := range files {
		if f == filename {
			_, _ = Rollback(txCtx)
			return nil
		}
	}
	job.SetFileList(append(files, filename))

	result := s.getDB(txCtx).Model(&model.Job{}).Where("id = ?", id).Update("files", job.Files)
	if result.Error != nil {
		_, _ = Rollback(txCtx)
		return fmt.Errorf("adding job file: %w", result.Error)
	}

	_, err = Commit(txCtx)
	return err
}

// SetError transitions the job to failed, records the message and appends an
// error log line. Logs and files already present are preserved.
func (s *JobStore) SetError(ctx context.Context, id string, message string) error {
	txCtx, err := newTransactionContext(ctx, s.db)
	if err != nil {
		return err
	}

	if err := s.UpdateStatus(txCtx, id, model.JobStatusFailed); err != nil && !errors.Is(err, ErrInvalidStatusChange) {
		_, _ = Rollback(txCtx)
		return err
	}

	result := s.getDB(txCtx).Model(&model.Job{}).Where("id = ?", id).Update("error", message)
	if result.Error != nil {
		_, _ = Rollback(txCtx)
		return fmt.Errorf("setting job error: %w", result.Error)
	}

	if err := s.AppendLog(txCtx, id, fmt.Sprintf("[ERROR] %s", message)); err != nil {
		_, _ = Rollback(txCtx)
		return err
	}

	_, err = Commit(txCtx)
	return err
}

// Delete removes the job row. The coordinator never calls this; deletion is
// an external surface operation only.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Job{ID: id})
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}

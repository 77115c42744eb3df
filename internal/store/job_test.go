package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/celia-labs/celia-agent/internal/config"
	st "github.com/celia-labs/celia-agent/internal/store"
	"github.com/celia-labs/celia-agent/internal/store/model"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

const (
	insertJobStm = "INSERT INTO jobs (id, task, status, logs, files, created_at, updated_at) VALUES ('%s', '%s', '%s', '', '[]', '%s', '%s');"
)

var _ = Describe("job store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db

		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from jobs;")
	})

	Context("create", func() {
		It("successfully creates a pending job", func() {
			job, err := s.Job().Create(context.TODO(), "a1b2c3d4", "deploy the service", nil)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
			Expect(job.Logs).To(ContainSubstring("Job created"))
			Expect(job.FileList()).To(BeEmpty())

			var count int
			tx := gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("stores the repository url when given", func() {
			repo := "https://example.com/repo.git"
			_, err := s.Job().Create(context.TODO(), "a1b2c3d4", "task", &repo)
			Expect(err).To(BeNil())

			var stored string
			tx := gormdb.Raw("SELECT repo_url FROM jobs LIMIT 1;").Scan(&stored)
			Expect(tx.Error).To(BeNil())
			Expect(stored).To(Equal(repo))
		})

		It("rejects a duplicated job id", func() {
			_, err := s.Job().Create(context.TODO(), "a1b2c3d4", "task", nil)
			Expect(err).To(BeNil())

			_, err = s.Job().Create(context.TODO(), "a1b2c3d4", "task", nil)
			Expect(err).To(MatchError(st.ErrDuplicateKey))
		})
	})

	Context("get", func() {
		It("successfully gets a job by id", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "deploy the service", "pending", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "a1b2c3d4")
			Expect(err).To(BeNil())
			Expect(job.Task).To(Equal("deploy the service"))
			Expect(job.Status).To(Equal(model.JobStatusPending))
		})

		It("returns not found for an unknown id", func() {
			_, err := s.Job().Get(context.TODO(), "missing1")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("lists newest jobs first and honors the limit", func() {
			for i, ts := range []string{"2026-01-02 10:00:00", "2026-01-02 11:00:00", "2026-01-02 12:00:00"} {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, fmt.Sprintf("job-%d", i), "task", "pending", ts, ts))
				Expect(tx.Error).To(BeNil())
			}

			jobs, err := s.Job().List(context.TODO(), 2)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].ID).To(Equal("job-2"))
			Expect(jobs[1].ID).To(Equal("job-1"))
		})

		It("lists everything when no limit is given", func() {
			for i := 0; i < 3; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, fmt.Sprintf("job-%d", i), "task", "pending", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
				Expect(tx.Error).To(BeNil())
			}

			jobs, err := s.Job().List(context.TODO(), 0)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(3))
		})
	})

	Context("update status", func() {
		It("moves a pending job to running", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "pending", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().UpdateStatus(context.TODO(), "a1b2c3d4", model.JobStatusRunning)
			Expect(err).To(BeNil())

			var status string
			tx = gormdb.Raw("SELECT status FROM jobs LIMIT 1;").Scan(&status)
			Expect(tx.Error).To(BeNil())
			Expect(status).To(Equal("running"))
		})

		It("refuses to skip the running state", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "pending", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().UpdateStatus(context.TODO(), "a1b2c3d4", model.JobStatusCompleted)
			Expect(err).To(MatchError(st.ErrInvalidStatusChange))
		})

		It("refuses to leave a terminal state", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "completed", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().UpdateStatus(context.TODO(), "a1b2c3d4", model.JobStatusRunning)
			Expect(err).To(MatchError(st.ErrInvalidStatusChange))

			err = s.Job().UpdateStatus(context.TODO(), "a1b2c3d4", model.JobStatusFailed)
			Expect(err).To(MatchError(st.ErrInvalidStatusChange))
		})

		It("fails a job directly from pending", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "pending", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			err := s.Job().UpdateStatus(context.TODO(), "a1b2c3d4", model.JobStatusFailed)
			Expect(err).To(BeNil())
		})

		It("returns not found for an unknown id", func() {
			err := s.Job().UpdateStatus(context.TODO(), "missing1", model.JobStatusRunning)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("append log", func() {
		It("appends timestamped lines in order", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "running", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().AppendLog(context.TODO(), "a1b2c3d4", "[SYSTEM] engine initialized")).To(BeNil())
			Expect(s.Job().AppendLog(context.TODO(), "a1b2c3d4", "[BRAIN] planning")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "a1b2c3d4")
			Expect(err).To(BeNil())
			Expect(job.Logs).To(ContainSubstring("[SYSTEM] engine initialized"))
			Expect(strings.Index(job.Logs, "[SYSTEM]")).To(BeNumerically("<", strings.Index(job.Logs, "[BRAIN]")))
		})

		It("returns not found for an unknown id", func() {
			err := s.Job().AppendLog(context.TODO(), "missing1", "line")
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("add file", func() {
		It("registers files preserving order and deduplicating", func() {
			_, err := s.Job().Create(context.TODO(), "a1b2c3d4", "task", nil)
			Expect(err).To(BeNil())

			Expect(s.Job().AddFile(context.TODO(), "a1b2c3d4", "report.md")).To(BeNil())
			Expect(s.Job().AddFile(context.TODO(), "a1b2c3d4", "data.csv")).To(BeNil())
			Expect(s.Job().AddFile(context.TODO(), "a1b2c3d4", "report.md")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "a1b2c3d4")
			Expect(err).To(BeNil())
			Expect(job.FileList()).To(Equal([]string{"report.md", "data.csv"}))
		})
	})

	Context("set error", func() {
		It("fails the job and records the message", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "running", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().AppendLog(context.TODO(), "a1b2c3d4", "[STEP 1] doing work")).To(BeNil())
			Expect(s.Job().SetError(context.TODO(), "a1b2c3d4", "execution timed out")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "a1b2c3d4")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).ToNot(BeNil())
			Expect(*job.Error).To(Equal("execution timed out"))

			// Earlier logs survive and the error line is appended last.
			Expect(job.Logs).To(ContainSubstring("[STEP 1] doing work"))
			Expect(job.Logs).To(ContainSubstring("[ERROR] execution timed out"))
		})

		It("overwrites the message on an already failed job", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "failed", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().SetError(context.TODO(), "a1b2c3d4", "second failure")).To(BeNil())

			job, err := s.Job().Get(context.TODO(), "a1b2c3d4")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(*job.Error).To(Equal("second failure"))
		})
	})

	Context("delete", func() {
		It("removes the job row", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "a1b2c3d4", "task", "completed", "2026-01-02 10:00:00", "2026-01-02 10:00:00"))
			Expect(tx.Error).To(BeNil())

			Expect(s.Job().Delete(context.TODO(), "a1b2c3d4")).To(BeNil())

			count := 1
			tx = gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("is a no-op for an unknown id", func() {
			Expect(s.Job().Delete(context.TODO(), "missing1")).To(BeNil())
		})
	})

	Context("transaction", func() {
		It("rolls back an uncommitted create", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Job().Create(ctx, "a1b2c3d4", "task", nil)
			Expect(err).To(BeNil())

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 1
			tx := gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("persists a committed create", func() {
			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Job().Create(ctx, "a1b2c3d4", "task", nil)
			Expect(err).To(BeNil())

			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			tx := gormdb.Raw("SELECT COUNT(*) FROM jobs;").Scan(&count)
			Expect(tx.Error).To(BeNil())
			Expect(count).To(Equal(1))
		})
	})
})

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/celia-labs/celia-agent/internal/genai"
	"github.com/celia-labs/celia-agent/internal/store"
	"github.com/celia-labs/celia-agent/internal/store/model"
	"github.com/celia-labs/celia-agent/pkg/metrics"
)

const (
	// maxCommandLogLength bounds a logged command line.
	maxCommandLogLength = 200

	// reportLogTailBytes bounds the log excerpt embedded in the report.
	reportLogTailBytes = 2000
)

// Config fixes the coordinator's concurrency budget and per-job timeout at
// construction time.
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	ReasoningDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		JobTimeout:        10 * time.Minute,
		ReasoningDelay:    time.Second,
	}
}

// Coordinator drives jobs through the execution pipeline under a fixed pool
// of concurrency slots. Within one job the pipeline is strictly sequential.
type Coordinator struct {
	store          store.Store
	client         *genai.Client
	executor       CommandExecutor
	workspace      *Workspace
	slots          chan struct{}
	timeout        time.Duration
	reasoningDelay time.Duration
}

func NewCoordinator(s store.Store, client *genai.Client, executor CommandExecutor, workspace *Workspace, cfg Config) *Coordinator {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Coordinator{
		store:          s,
		client:         client,
		executor:       executor,
		workspace:      workspace,
		slots:          make(chan struct{}, cfg.MaxConcurrentJobs),
		timeout:        cfg.JobTimeout,
		reasoningDelay: cfg.ReasoningDelay,
	}
}

// Execute acquires a concurrency slot and runs the job pipeline under the
// wall-clock budget. Any error or timeout marks the job failed with the
// error text recorded; logs and files already persisted are preserved.
func (c *Coordinator) Execute(ctx context.Context, jobID string) error {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.slots }()

	metrics.IncreaseJobsRunningMetric()
	defer metrics.DecreaseJobsRunningMetric()

	zap.S().Named("agent").Infof("starting execution for job %s", jobID)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.run(runCtx, jobID); err != nil {
		c.recordFailure(jobID, err)
		metrics.IncreaseJobsTotalMetric(string(model.JobStatusFailed))
		return err
	}

	metrics.IncreaseJobsTotalMetric(string(model.JobStatusCompleted))
	zap.S().Named("agent").Infof("job %s completed successfully", jobID)
	return nil
}

func (c *Coordinator) run(ctx context.Context, jobID string) error {
	jobs := c.store.Job()

	job, err := jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("job %s context missing from store: %w", jobID, err)
	}

	// 1. Mark running.
	if err := jobs.UpdateStatus(ctx, jobID, model.JobStatusRunning); err != nil {
		return err
	}
	if err := jobs.AppendLog(ctx, jobID, "[SYSTEM] Celia engine initialized. Execution pipeline armed."); err != nil {
		return err
	}

	// 2. Workspace synchronization.
	if job.RepoURL != nil && *job.RepoURL != "" {
		if err := jobs.AppendLog(ctx, jobID, fmt.Sprintf("[GIT] Synchronizing workspace with: %s", *job.RepoURL)); err != nil {
			return err
		}
		if err := c.workspace.SyncRepository(ctx, jobID, *job.RepoURL); err != nil {
			return err
		}
		if err := jobs.AppendLog(ctx, jobID, "[GIT] Repository cloned. Workspace verified."); err != nil {
			return err
		}
	}

	// 3. Planning. Failure is absorbed by the fallback plan, never fatal.
	if err := jobs.AppendLog(ctx, jobID, "[BRAIN] Requesting step-by-step strategy from the planner..."); err != nil {
		return err
	}
	var planContext string
	if job.RepoURL != nil {
		planContext = *job.RepoURL
	}
	plan := c.client.CreatePlan(ctx, job.Task, planContext)
	if plan.Fallback {
		if err := jobs.AppendLog(ctx, jobID, "[BRAIN] Planner unavailable, continuing with fallback plan."); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 4. Step execution, strictly in plan order. Step dependencies are
	// informational and never reorder or gate execution.
	workdir := c.workspace.JobDir(jobID)
	for _, step := range plan.Steps {
		if err := jobs.AppendLog(ctx, jobID, fmt.Sprintf("[STEP %d] %s (expecting: %s)", step.StepNumber, step.Action, step.ExpectedOutcome)); err != nil {
			return err
		}
		for _, cmd := range step.Commands {
			if err := jobs.AppendLog(ctx, jobID, fmt.Sprintf("[CMD] $ %s", truncateCommand(cmd))); err != nil {
				return err
			}
			if _, err := c.executor.Execute(ctx, workdir, cmd); err != nil {
				return err
			}
		}
		if err := pause(ctx, c.reasoningDelay); err != nil {
			return err
		}
	}

	// 5. Final report. Summarization failure is absorbed by the fallback.
	refreshed, err := jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	files := refreshed.FileList()
	summary := c.client.SummarizeResults(ctx, refreshed.Logs, files)
	if summary.Fallback {
		if err := jobs.AppendLog(ctx, jobID, "[BRAIN] Summarizer unavailable, report built from raw logs."); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	filename, err := c.workspace.WriteReport(jobID, buildReport(refreshed, summary))
	if err != nil {
		return err
	}
	if err := jobs.AddFile(ctx, jobID, filename); err != nil {
		return err
	}

	// 6. Finalize.
	if err := jobs.AppendLog(ctx, jobID, "[SUCCESS] All objectives verified. Artifacts ready."); err != nil {
		return err
	}
	return jobs.UpdateStatus(ctx, jobID, model.JobStatusCompleted)
}

// recordFailure persists the terminal failed state with a fresh context; the
// pipeline context may already be cancelled.
func (c *Coordinator) recordFailure(jobID string, cause error) {
	zap.S().Named("agent").Errorf("job %s failed: %v", jobID, cause)

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := fmt.Sprintf("fatal error in execution loop: %v", cause)
	if err := c.store.Job().SetError(persistCtx, jobID, msg); err != nil {
		zap.S().Named("agent").Errorf("failed to record job %s failure: %v", jobID, err)
	}
}

func buildReport(job *model.Job, summary genai.Summary) string {
	var b strings.Builder
	b.WriteString("# CELIA AGENT EXECUTION REPORT\n\n")
	fmt.Fprintf(&b, "**Job ID**: `%s`\n\n", job.ID)
	fmt.Fprintf(&b, "**Generated**: %s\n\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Status**: %s\n\n", job.Status)
	fmt.Fprintf(&b, "**Task**: %s\n\n", job.Task)
	if job.RepoURL != nil && *job.RepoURL != "" {
		fmt.Fprintf(&b, "**Repository**: %s\n\n", *job.RepoURL)
	}
	b.WriteString("## Summary\n\n")
	b.WriteString(summary.Text)
	b.WriteString("\n\n## Execution log (tail)\n\n```\n")
	b.WriteString(tail(job.Logs, reportLogTailBytes))
	b.WriteString("\n```\n\n## Files\n\n")
	files := job.FileList()
	if len(files) == 0 {
		b.WriteString("none\n")
	} else {
		for _, f := range files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

func truncateCommand(cmd string) string {
	if len(cmd) <= maxCommandLogLength {
		return cmd
	}
	return cmd[:maxCommandLogLength] + "..."
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	outputDirName = "output"

	// ReportFileName is the artifact registered in the job's file set once
	// the pipeline completes.
	ReportFileName = "CELIA_FINAL_REPORT.md"
)

// Workspace manages the per-job directory layout <base>/<job-id>/output and
// the simulated repository synchronization.
type Workspace struct {
	baseDir   string
	syncDelay time.Duration
}

func NewWorkspace(baseDir string) *Workspace {
	return &Workspace{baseDir: baseDir, syncDelay: 1500 * time.Millisecond}
}

// EnsureJobDirs creates the job directory and its output subdirectory.
func (w *Workspace) EnsureJobDirs(jobID string) error {
	outputDir := filepath.Join(w.baseDir, jobID, outputDirName)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating job workspace: %w", err)
	}
	return nil
}

// JobDir returns the workspace root of a job.
func (w *Workspace) JobDir(jobID string) string {
	return filepath.Join(w.baseDir, jobID)
}

// SyncRepository is a stand-in for real cloning: it validates nothing and
// simply waits a clone-shaped amount of time, honoring cancellation.
func (w *Workspace) SyncRepository(ctx context.Context, jobID string, repoURL string) error {
	return pause(ctx, w.syncDelay)
}

// WriteReport writes the final report artifact into the job's output
// directory and returns its file name.
func (w *Workspace) WriteReport(jobID string, content string) (string, error) {
	if err := w.EnsureJobDirs(jobID); err != nil {
		return "", err
	}
	path := filepath.Join(w.baseDir, jobID, outputDirName, ReportFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return ReportFileName, nil
}

// ResolveFile maps a produced file name to its path on disk, refusing names
// that escape the output directory.
func (w *Workspace) ResolveFile(jobID string, filename string) (string, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	path := filepath.Join(w.baseDir, jobID, outputDirName, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

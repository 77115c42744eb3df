package agent

import (
	"context"
	"time"
)

// CommandExecutor runs a single planned command inside a job workspace. The
// pipeline is written against this interface so wiring in real sandboxed
// execution does not change the coordinator.
type CommandExecutor interface {
	Execute(ctx context.Context, workdir string, command string) (string, error)
}

// SimulatedExecutor stands in for real command execution with a cooperative,
// context-aware delay.
type SimulatedExecutor struct {
	CommandDelay time.Duration
}

func NewSimulatedExecutor() *SimulatedExecutor {
	return &SimulatedExecutor{CommandDelay: 500 * time.Millisecond}
}

func (e *SimulatedExecutor) Execute(ctx context.Context, workdir string, command string) (string, error) {
	if err := pause(ctx, e.CommandDelay); err != nil {
		return "", err
	}
	return "", nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	planSystemInstruction = "You are Celia, an autonomous task agent. Respond ONLY with a JSON array of objects: " +
		`{"step_number": int, "action": str, "expected_outcome": str, "commands": [str], "estimated_time": str, "dependencies": [int]}`

	defaultStepAction  = "Manual Task Execution"
	defaultStepOutcome = "Goal reached"
)

// Step is one unit of an execution plan. Dependencies are validated at the
// parse boundary but informational only: execution stays in plan order.
type Step struct {
	StepNumber      int      `json:"step_number"`
	Action          string   `json:"action"`
	ExpectedOutcome string   `json:"expected_outcome"`
	Commands        []string `json:"commands"`
	EstimatedTime   string   `json:"estimated_time,omitempty"`
	Dependencies    []int    `json:"dependencies,omitempty"`
}

// Plan is the ordered sequence of steps produced by the planning call.
// Fallback marks a deterministic substitute produced after a planning
// failure, so callers can surface the degradation in logs instead of hiding
// it behind a caught error.
type Plan struct {
	Steps    []Step
	Fallback bool
}

// CreatePlan requests a JSON-shaped plan for the task. It never fails: on
// any error the caller receives a single-step fallback plan, guaranteeing at
// least one executable step.
func (c *Client) CreatePlan(ctx context.Context, task string, context_ string) *Plan {
	if context_ == "" {
		context_ = "Standard"
	}
	prompt := fmt.Sprintf("Create a step-by-step technical plan for: %s. Context: %s", task, context_)

	response, err := c.SendMessage(ctx, GenerateRequest{
		Message:           prompt,
		SystemInstruction: planSystemInstruction,
		JSONMode:          true,
		Temperature:       0.2,
	})
	if err != nil {
		zap.S().Named("genai").Warnf("planning call failed, substituting fallback plan: %v", err)
		return fallbackPlan()
	}

	steps, err := parsePlan(response)
	if err != nil {
		zap.S().Named("genai").Warnf("plan rejected, substituting fallback plan: %v", err)
		return fallbackPlan()
	}

	if len(steps) > c.maxPlanSteps {
		steps = steps[:c.maxPlanSteps]
	}
	return &Plan{Steps: steps}
}

func fallbackPlan() *Plan {
	return &Plan{
		Steps: []Step{{
			StepNumber:      1,
			Action:          defaultStepAction,
			ExpectedOutcome: defaultStepOutcome,
			Commands:        []string{},
		}},
		Fallback: true,
	}
}

// parsePlan rejects the whole plan when the top-level shape is wrong and
// silently defaults missing per-step fields to safe placeholders.
func parsePlan(text string) ([]Step, error) {
	text = strings.TrimSpace(text)

	var steps []Step
	if err := json.Unmarshal([]byte(text), &steps); err != nil {
		return nil, fmt.Errorf("plan is not a JSON array of steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}

	seen := make(map[int]struct{}, len(steps))
	for i := range steps {
		if steps[i].StepNumber == 0 {
			steps[i].StepNumber = i + 1
		}
		if _, dup := seen[steps[i].StepNumber]; dup {
			return nil, fmt.Errorf("duplicate step number %d", steps[i].StepNumber)
		}
		seen[steps[i].StepNumber] = struct{}{}

		if steps[i].Action == "" {
			steps[i].Action = defaultStepAction
		}
		if steps[i].ExpectedOutcome == "" {
			steps[i].ExpectedOutcome = defaultStepOutcome
		}
		if steps[i].Commands == nil {
			steps[i].Commands = []string{}
		}
	}

	if err := validateDependencies(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// validateDependencies checks that every dependency names a step present in
// the plan and that the dependency graph is acyclic.
func validateDependencies(steps []Step) error {
	present := make(map[int]struct{}, len(steps))
	for _, step := range steps {
		present[step.StepNumber] = struct{}{}
	}

	deps := make(map[int][]int, len(steps))
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if _, ok := present[dep]; !ok {
				return fmt.Errorf("step %d depends on unknown step %d", step.StepNumber, dep)
			}
			deps[step.StepNumber] = append(deps[step.StepNumber], dep)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[int]int, len(steps))

	var visit func(n int) error
	visit = func(n int) error {
		switch state[n] {
		case visiting:
			return fmt.Errorf("dependency cycle involving step %d", n)
		case done:
			return nil
		}
		state[n] = visiting
		for _, dep := range deps[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}

	for _, step := range steps {
		if err := visit(step.StepNumber); err != nil {
			return err
		}
	}
	return nil
}

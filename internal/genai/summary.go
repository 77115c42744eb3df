package genai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	summarySystemInstruction = "Provide a professional execution summary."

	// logTailBytes bounds how much of the execution log is sent to the
	// capability; older lines are dropped, tail-only.
	logTailBytes = 1000
)

// Summary is the final report text. Fallback marks a deterministic
// substitute built directly from the raw logs and files after the
// summarization call failed; summarization failure is never fatal to a job.
type Summary struct {
	Text     string
	Fallback bool
}

// SummarizeResults builds the final report from the execution log tail and
// the produced file list.
func (c *Client) SummarizeResults(ctx context.Context, logs string, files []string) Summary {
	prompt := fmt.Sprintf("Summarize these logs and files into a final report:\nLOGS: %s\nFILES: %s",
		tailString(logs, logTailBytes), strings.Join(files, ", "))

	text, err := c.SendMessage(ctx, GenerateRequest{
		Message:           prompt,
		SystemInstruction: summarySystemInstruction,
		Temperature:       0.5,
	})
	if err != nil {
		zap.S().Named("genai").Warnf("summarization call failed, substituting fallback summary: %v", err)
		return fallbackSummary(logs, files)
	}
	return Summary{Text: text}
}

// fallbackSummary is assembled from the raw inputs, not from the model.
func fallbackSummary(logs string, files []string) Summary {
	var b strings.Builder
	b.WriteString("Automated summary unavailable; raw execution record follows.\n\n")
	b.WriteString("## Execution log (tail)\n\n```\n")
	b.WriteString(tailString(logs, logTailBytes))
	b.WriteString("\n```\n\n## Produced files\n\n")
	if len(files) == 0 {
		b.WriteString("none\n")
	} else {
		for _, f := range files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return Summary{Text: b.String(), Fallback: true}
}

func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

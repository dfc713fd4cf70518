package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var contextLine = regexp.MustCompile(`(?m)^\[(\d+)\] (.*)$`)

// EchoLLM answers offline by quoting the first context passages with their
// markers. It lets the pipeline run without a model service.
type EchoLLM struct {
	maxPassages int
}

func NewEchoLLM(maxPassages int) *EchoLLM {
	if maxPassages <= 0 {
		maxPassages = 2
	}
	return &EchoLLM{maxPassages: maxPassages}
}

func (l *EchoLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	matches := contextLine.FindAllStringSubmatch(userPrompt, l.maxPassages)
	if len(matches) == 0 {
		return "The provided documents do not contain enough information to answer.", nil
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		passage := m[2]
		if len(passage) > 240 {
			passage = passage[:240] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s [%s]", passage, m[1]))
	}
	return "Based on the documents: " + strings.Join(parts, " "), nil
}

func (l *EchoLLM) ModelName() string {
	return "echo"
}

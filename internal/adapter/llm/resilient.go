package llm

import (
	"context"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
)

// ResilientLLM runs every generation through an Executor.
type ResilientLLM struct {
	inner port.LLM
	exec  *resilience.Executor
}

func NewResilientLLM(inner port.LLM, exec *resilience.Executor) *ResilientLLM {
	return &ResilientLLM{inner: inner, exec: exec}
}

func (l *ResilientLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var text string
	err := l.exec.Do(ctx, domain.KindGeneration, "generate", func(ctx context.Context) error {
		var err error
		text, err = l.inner.Generate(ctx, systemPrompt, userPrompt)
		return err
	})
	return text, err
}

func (l *ResilientLLM) ModelName() string {
	return l.inner.ModelName()
}

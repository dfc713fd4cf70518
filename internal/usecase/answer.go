package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

// NoContextAnswer is returned without calling the model when retrieval
// produced nothing to ground an answer on.
const NoContextAnswer = "I could not find any relevant passages in your documents to answer this question."

var citationMarker = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// Prompt is the rendered model input for one question.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// AnswerUseCase turns an assembled context into a cited answer.
type AnswerUseCase struct {
	llm    port.LLM
	system string
	user   *template.Template
	log    *slog.Logger
}

// NewAnswerUseCase creates a new answer use case. llm is expected to retry
// transient failures itself (see llm.ResilientLLM).
func NewAnswerUseCase(llm port.LLM, logger *slog.Logger) (*AnswerUseCase, error) {
	system, err := promptTemplates.ReadFile("templates/answer_system.txt")
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	userContent, err := promptTemplates.ReadFile("templates/answer_user.txt")
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	user, err := template.New("answer").Parse(string(userContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &AnswerUseCase{
		llm:    llm,
		system: strings.TrimSpace(string(system)),
		user:   user,
		log:    logging.OrDiscard(logger),
	}, nil
}

// RenderPrompt builds the system and user prompt for question.
func (u *AnswerUseCase) RenderPrompt(question string, assembled domain.AssembledContext) (Prompt, error) {
	var buf bytes.Buffer
	data := struct {
		Question string
		Context  string
	}{
		Question: strings.TrimSpace(question),
		Context:  assembled.Render(),
	}
	if err := u.user.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("failed to render template: %w", err)
	}
	return Prompt{System: u.system, User: buf.String()}, nil
}

// Generate asks the model and resolves the markers in its reply to
// citations. An empty context yields NoContextAnswer without a model call.
func (u *AnswerUseCase) Generate(ctx context.Context, question string, assembled domain.AssembledContext) (domain.Answer, error) {
	answer := domain.Answer{Question: question, Citations: []domain.Citation{}}
	if assembled.Empty() {
		answer.Text = NoContextAnswer
		return answer, nil
	}

	prompt, err := u.RenderPrompt(question, assembled)
	if err != nil {
		return domain.Answer{}, domain.NewError(domain.KindGeneration, "render prompt", err)
	}

	text, err := u.llm.Generate(ctx, prompt.System, prompt.User)
	if err != nil {
		if domain.IsKind(err, domain.KindGeneration) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, domain.NewError(domain.KindGeneration, "generate", err)
	}

	answer.Text = strings.TrimSpace(text)
	answer.Citations = ResolveCitations(answer.Text, assembled)
	u.log.Debug("generated answer",
		slog.String("model", u.llm.ModelName()),
		slog.Int("citations", len(answer.Citations)))
	return answer, nil
}

// ResolveCitations maps [n] and [n, m] markers in text to the chunks of the
// assembled context, in order of first appearance. Markers that name no
// accepted chunk are ignored.
func ResolveCitations(text string, assembled domain.AssembledContext) []domain.Citation {
	citations := []domain.Citation{}
	seen := make(map[int]bool)

	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || seen[n] {
				continue
			}
			entry, filename, ok := assembled.Entry(n)
			if !ok {
				continue
			}
			seen[n] = true
			citations = append(citations, domain.Citation{
				Marker:   n,
				ChunkID:  entry.Chunk.ID,
				DocID:    entry.Chunk.DocID,
				Filename: filename,
				Start:    entry.Chunk.Span.Start,
				End:      entry.Chunk.Span.End,
			})
		}
	}
	return citations
}

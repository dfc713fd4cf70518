package usecase

import (
	"sort"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

// AssembleUseCase packs ranked chunks into a token-bounded context.
type AssembleUseCase struct {
	docs      *DocumentService
	tokenizer port.Tokenizer
}

// NewAssembleUseCase creates a new assemble use case.
func NewAssembleUseCase(docs *DocumentService, tokenizer port.Tokenizer) *AssembleUseCase {
	return &AssembleUseCase{
		docs:      docs,
		tokenizer: tokenizer,
	}
}

// Assemble accepts chunks in rank order while they fit the budget; a chunk
// that does not fit is skipped and smaller later ones may still be taken.
// Markers follow acceptance order. Documents are ordered by their best
// ranked chunk and chunks inside a document by position.
func (u *AssembleUseCase) Assemble(results []domain.ScoredChunk, budget int) (domain.AssembledContext, error) {
	assembled := domain.AssembledContext{
		BudgetTokens: budget,
		Blocks:       []domain.ContextBlock{},
	}
	if budget <= 0 || len(results) == 0 {
		return assembled, nil
	}

	blockIndex := make(map[string]int)
	marker := 0
	for _, r := range results {
		tokens := u.tokenizer.CountTokens(r.Chunk.Text)
		if tokens == 0 {
			tokens = 1
		}
		if assembled.UsedTokens+tokens > budget {
			continue
		}

		i, ok := blockIndex[r.Chunk.DocID]
		if !ok {
			filename := r.Chunk.DocID
			if doc, err := u.docs.Get(r.Chunk.DocID); err == nil {
				filename = doc.Filename
			}
			i = len(assembled.Blocks)
			blockIndex[r.Chunk.DocID] = i
			assembled.Blocks = append(assembled.Blocks, domain.ContextBlock{
				DocID:    r.Chunk.DocID,
				Filename: filename,
			})
		}

		marker++
		assembled.Blocks[i].Entries = append(assembled.Blocks[i].Entries, domain.ContextEntry{
			Marker: marker,
			Chunk:  r.Chunk,
			Score:  r.Score,
			Tokens: tokens,
		})
		assembled.UsedTokens += tokens
	}

	for _, block := range assembled.Blocks {
		entries := block.Entries
		sort.Slice(entries, func(a, b int) bool {
			return entries[a].Chunk.Position < entries[b].Chunk.Position
		})
	}
	return assembled, nil
}

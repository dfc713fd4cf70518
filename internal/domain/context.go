package domain

import (
	"fmt"
	"strings"
)

// ContextEntry is one accepted chunk inside an assembled context.
type ContextEntry struct {
	Marker int     `json:"marker"`
	Chunk  Chunk   `json:"chunk"`
	Score  float64 `json:"score"`
	Tokens int     `json:"tokens"`
}

// ContextBlock groups the accepted chunks of a single document in position order.
type ContextBlock struct {
	DocID    string         `json:"doc_id"`
	Filename string         `json:"filename"`
	Entries  []ContextEntry `json:"entries"`
}

// AssembledContext is the token-bounded evidence handed to the generator.
type AssembledContext struct {
	BudgetTokens int            `json:"budget_tokens"`
	UsedTokens   int            `json:"used_tokens"`
	Blocks       []ContextBlock `json:"blocks"`
}

// Empty reports whether no chunk was accepted.
func (c AssembledContext) Empty() bool {
	for _, b := range c.Blocks {
		if len(b.Entries) > 0 {
			return false
		}
	}
	return true
}

// Entry looks up an accepted chunk by its citation marker.
func (c AssembledContext) Entry(marker int) (ContextEntry, string, bool) {
	for _, b := range c.Blocks {
		for _, e := range b.Entries {
			if e.Marker == marker {
				return e, b.Filename, true
			}
		}
	}
	return ContextEntry{}, "", false
}

// Render formats the context as prompt text with explicit document boundaries.
func (c AssembledContext) Render() string {
	var b strings.Builder
	for i, block := range c.Blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== BEGIN DOCUMENT %q (id %s) ===\n", block.Filename, block.DocID)
		for _, e := range block.Entries {
			fmt.Fprintf(&b, "[%d] %s\n", e.Marker, strings.TrimSpace(e.Chunk.Text))
		}
		fmt.Fprintf(&b, "=== END DOCUMENT %q ===\n", block.Filename)
	}
	return b.String()
}

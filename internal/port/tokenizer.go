package port

// Tokenizer estimates model token counts for budget accounting.
type Tokenizer interface {
	CountTokens(text string) int
}

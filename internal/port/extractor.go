package port

import "context"

// Extractor turns raw document bytes into normalized text.
type Extractor interface {
	Extract(ctx context.Context, raw []byte, filename string) (string, error)
}

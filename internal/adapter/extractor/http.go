package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// HTTPExtractor sends documents to a Tika-compatible server
// (PUT <url> with the raw bytes, plain text in the response).
type HTTPExtractor struct {
	url    string
	client *http.Client
}

func NewHTTPExtractor(url string) (*HTTPExtractor, error) {
	if url == "" {
		return nil, domain.NewError(domain.KindConfiguration, "new http extractor", fmt.Errorf("extraction.url is required"))
	}
	return &HTTPExtractor{url: url, client: &http.Client{Timeout: 2 * time.Minute}}, nil
}

func (e *HTTPExtractor) Extract(ctx context.Context, raw []byte, filename string) (string, error) {
	op := "extract " + filename

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.url, bytes.NewReader(raw))
	if err != nil {
		return "", domain.NewError(domain.KindExtraction, op, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	resp, err := e.client.Do(req)
	if err != nil {
		return "", domain.NewTransientError(domain.KindExtraction, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewTransientError(domain.KindExtraction, op, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", domain.NewTransientError(domain.KindExtraction, op, fmt.Errorf("extraction server returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", domain.NewError(domain.KindExtraction, op, fmt.Errorf("extraction server rejected document: %d %s", resp.StatusCode, preview(body)))
	}

	text := Normalize(string(body))
	if text == "" {
		return "", domain.NewError(domain.KindExtraction, op, domain.ErrEmptyDocument)
	}
	return text, nil
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}

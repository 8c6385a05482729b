package templates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSource fetches BaseURL/phaseN.md. Any non-2xx answer is an error, never
// an empty template.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) PhaseTemplate(ctx context.Context, phase int) (string, error) {
	url := s.BaseURL + "/" + FileName(phase)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", &RetrievalError{Phase: phase, Err: ErrTemplateNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RetrievalError{Phase: phase, Err: fmt.Errorf("GET %s: %s", url, resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RetrievalError{Phase: phase, Err: err}
	}
	return string(data), nil
}

package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docfields/internal/document"
	"docfields/internal/port"
)

// HTTPName is the registry name of the remote NLP recognizer.
const HTTPName = "http"

// HTTPRecognizer calls a remote NER service. The service receives
// {"text": ...} and answers {"entities": [{"label","start","end","text","score"}]}
// with start/end as character (rune) offsets.
type HTTPRecognizer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRecognizer creates a recognizer for endpoint.
func NewHTTPRecognizer(endpoint string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRecognizer{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPRecognizer) Name() string { return HTTPName }

type nerResponse struct {
	Entities []struct {
		Label string   `json:"label"`
		Start int      `json:"start"`
		End   int      `json:"end"`
		Text  string   `json:"text"`
		Score *float64 `json:"score"`
	} `json:"entities"`
}

func (h *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]port.Entity, error) {
	bodyBytes, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling NER service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NER service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed nerResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	doc := document.New(text, nil)
	out := make([]port.Entity, 0, len(parsed.Entities))
	for _, e := range parsed.Entities {
		span := document.Span{Start: doc.RuneToByte(e.Start), End: doc.RuneToByte(e.End)}
		if span.End <= span.Start {
			continue
		}
		ent := port.Entity{Type: e.Label, Span: span, Text: text[span.Start:span.End]}
		if e.Score != nil {
			// Services report either 0..1 or 0..100.
			s := *e.Score
			if s <= 1 {
				s *= 100
			}
			ent.Confidence = &s
		}
		out = append(out, ent)
	}
	return out, nil
}

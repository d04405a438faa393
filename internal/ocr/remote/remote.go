// Package remote is an OCR engine backed by an HTTP OCR service.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"docfields/internal/config"
	"docfields/internal/ocr"
	"docfields/internal/port"
)

// Name is the engine name used in config.
const Name = "remote"

func init() {
	ocr.RegisterBackend(Name, func(cfg *config.OCRConfig) (port.OCRBackend, error) {
		if cfg.RemoteURL == "" {
			return nil, errors.New("remote ocr: remote_url is not set")
		}
		return NewBackend(cfg), nil
	})
}

// Backend implements port.OCRBackend over JSON/HTTP.
type Backend struct {
	apiKey   string
	language string
	endpoint string
	client   *http.Client
}

// NewBackend creates a remote OCR engine.
func NewBackend(cfg *config.OCRConfig) *Backend {
	timeout := cfg.RemoteTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Backend{
		apiKey:   cfg.RemoteAPIKey,
		language: cfg.Language,
		endpoint: cfg.RemoteURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (b *Backend) Name() string { return Name }

type recognizeRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Language    string `json:"language,omitempty"`
	Content     string `json:"content"`
}

func (b *Backend) Recognize(ctx context.Context, in port.OCRInput) (*port.OCRResult, error) {
	bodyBytes, err := json.Marshal(recognizeRequest{
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Language:    b.language,
		Content:     base64.StdEncoding.EncodeToString(in.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ocr.NewUnavailableError(Name, fmt.Errorf("calling ocr service: %w", err), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, ocr.NewUnavailableError(Name,
			fmt.Errorf("ocr service status %d", resp.StatusCode),
			ocr.ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var out port.OCRResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if out.EngineName == "" {
		out.EngineName = Name
	}
	return &out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

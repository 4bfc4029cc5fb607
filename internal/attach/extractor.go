// Copyright (c) 2024-2025 ScolaIA
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"time"
)

// =============================================================================
// HTTP EXTRACTOR
// =============================================================================

// Sentinel errors for extraction failures.
var (
	ErrNoFiles        = errors.New("no files to extract")
	ErrExtractFailed  = errors.New("text extraction failed")
	ErrExtractTimeout = errors.New("text extraction timed out")
)

// ExtractorConfig holds configuration for the HTTP extraction client.
type ExtractorConfig struct {
	// URL is the extraction endpoint, e.g.
	// "http://127.0.0.1:8000/api/v1/chat/extract-text".
	URL string

	// Timeout bounds one extraction call (default: 60s; documents can be
	// slow to process server-side).
	Timeout time.Duration
}

// HTTPExtractor posts the queued files as a multipart form to the
// extraction endpoint and returns the concatenated text.
type HTTPExtractor struct {
	cfg        ExtractorConfig
	httpClient *http.Client
}

// extractResponse mirrors the extraction endpoint's success body.
type extractResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// NewHTTPExtractor creates an extraction client.
func NewHTTPExtractor(cfg ExtractorConfig) *HTTPExtractor {
	if cfg.URL == "" {
		cfg.URL = "http://127.0.0.1:8000/api/v1/chat/extract-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Extract sends every file as a "files[]" part, preserving order, and
// returns the server's concatenated text.
func (e *HTTPExtractor) Extract(ctx context.Context, files []File) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile("files[]", f.Name)
		if err != nil {
			return "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrExtractTimeout
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrExtractFailed
	}

	var result extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

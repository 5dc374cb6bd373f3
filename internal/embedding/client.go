// Package embedding generates semantic vectors through an external
// Ollama-compatible HTTP endpoint. The service is fallible, possibly slow,
// and optional; callers degrade gracefully when no client is configured.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the embeddings endpoint.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an embedding client. Empty arguments select the
// defaults (local Ollama, nomic-embed-text at 768 dims).
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: empty text")
	}

	body, err := json.Marshal(embeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: status %d: %s", resp.StatusCode, string(msg))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty vector returned")
	}
	return result.Embedding, nil
}

// EntryText builds the embedding input for an entry: title and tags carry
// disproportionate semantic weight, so they lead the content.
func EntryText(title string, tags []string, content string) string {
	return fmt.Sprintf("Title: %s\nTags: %s\nContent: %s",
		title, strings.Join(tags, ", "), content)
}

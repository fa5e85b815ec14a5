// Package ollama implements the chat backend against a local Ollama
// server's native chat API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"docchat/internal/domain"
)

// Client streams chat completions from POST {base_url}/api/chat and
// implements domain.ChatModel.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// Config configures the Ollama chat client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new Ollama chat client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 300 * time.Second // generation can be slow on local hardware
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
	}
}

// ModelID identifies the provider and model.
func (c *Client) ModelID() string { return "ollama:" + c.model }

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Stream sends the message list and returns a channel of response
// fragments. The channel is closed after the Done token; a mid-stream
// failure is delivered as a token with Err set.
func (c *Client) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamToken, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama: %v", domain.ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: ollama returned status %d", domain.ErrModelUnavailable, resp.StatusCode)
	}

	ch := make(chan domain.StreamToken, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var part chatResponse
			if err := json.Unmarshal(line, &part); err != nil {
				continue
			}
			if !send(ctx, ch, domain.StreamToken{Content: part.Message.Content, Done: part.Done}) {
				return
			}
			if part.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, domain.StreamToken{Done: true, Err: fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)})
			return
		}
		// stream ended without a done marker
		send(ctx, ch, domain.StreamToken{Done: true, Err: fmt.Errorf("%w: response stream truncated", domain.ErrGenerationFailed)})
	}()
	return ch, nil
}

// send delivers a token unless ctx is cancelled. A consumer that stops
// reading must cancel its context; blocking on a full channel forever
// would pin this goroutine and the open response body.
func send(ctx context.Context, ch chan<- domain.StreamToken, tok domain.StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}

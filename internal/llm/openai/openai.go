// Package openai implements the chat backend over any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"docchat/internal/domain"
)

// Client streams chat completions from POST {base_url}/chat/completions
// and implements domain.ChatModel.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Config configures the chat completions client. The API key is read
// from the environment variable named by APIKeyEnv.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewClient creates a new chat completions client.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrModelUnavailable, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
	}, nil
}

// ModelID identifies the provider and model.
func (c *Client) ModelID() string { return "openai:" + c.model }

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream sends the message list and returns a channel of response
// fragments parsed from the server-sent event stream. The channel is
// closed after the Done token; a mid-stream failure is delivered as a
// token with Err set.
func (c *Client) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamToken, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling chat completions: %v", domain.ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: chat completions returned status %d", domain.ErrModelUnavailable, resp.StatusCode)
	}

	ch := make(chan domain.StreamToken, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				send(ctx, ch, domain.StreamToken{Done: true})
				return
			}
			var part chatChunk
			if err := json.Unmarshal([]byte(payload), &part); err != nil {
				continue
			}
			if len(part.Choices) == 0 {
				continue
			}
			if !send(ctx, ch, domain.StreamToken{Content: part.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, domain.StreamToken{Done: true, Err: fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)})
			return
		}
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

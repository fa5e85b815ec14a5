// Package chat orchestrates one conversation turn: retrieve context,
// build a grounded prompt, stream the model's answer, commit the turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

// Engine runs grounded question answering over per-thread conversation
// state. Turns on the same thread are serialized: a turn runs to
// completion before the next one on that thread starts. Distinct threads
// are independent and may run concurrently.
type Engine struct {
	retriever domain.Retriever
	model     domain.ChatModel
	topK      int

	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	mu        sync.Mutex
	messages  []domain.Message
	lastQuery string
	lastRole  string
	answer    string
}

// Turn is one in-flight conversation turn. Consuming Tokens through the
// Done token is required to obtain a complete answer; once Done arrives,
// State(ThreadID) reflects the committed turn.
type Turn struct {
	ThreadID string
	Tokens   <-chan domain.StreamToken
}

// NewEngine creates a conversation engine. topK <= 0 means the default
// of 3 retrieved chunks per turn.
func NewEngine(retriever domain.Retriever, model domain.ChatModel, topK int) *Engine {
	if topK <= 0 {
		topK = 3
	}
	return &Engine{
		retriever: retriever,
		model:     model,
		topK:      topK,
		threads:   make(map[string]*thread),
	}
}

// Run executes one turn: retrieve context for query, prompt the model
// with the grounding instruction plus the thread's history, and stream
// the response. An empty threadID starts a fresh single-turn thread.
//
// The thread's messages are committed only after the stream completes:
// a failed or abandoned generation leaves the thread exactly as it was,
// so a later turn never sees a half-written exchange.
func (e *Engine) Run(ctx context.Context, query, role, threadID string) (*Turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	th := e.thread(threadID)
	th.mu.Lock()

	chunks, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		// Never fall back to ungrounded generation.
		th.mu.Unlock()
		return nil, err
	}

	system := domain.Message{Role: "system", Content: buildSystemPrompt(chunks, role)}
	human := domain.Message{Role: "user", Content: query}
	prompt := make([]domain.Message, 0, len(th.messages)+2)
	prompt = append(prompt, system)
	prompt = append(prompt, th.messages...)
	prompt = append(prompt, human)

	stream, err := e.model.Stream(ctx, prompt)
	if err != nil {
		th.mu.Unlock()
		return nil, err
	}

	out := make(chan domain.StreamToken, 64)
	go func() {
		defer close(out)
		defer th.mu.Unlock()
		defer drain(stream)

		var sb strings.Builder
		completed := false
		for tok := range stream {
			if tok.Err != nil {
				forward(ctx, out, domain.StreamToken{Done: true, Err: wrapGeneration(tok.Err)})
				return
			}
			sb.WriteString(tok.Content)
			if tok.Done {
				// A backend's final message may still carry text; the
				// consumer gets it before the Done marker.
				if tok.Content != "" && !forward(ctx, out, domain.StreamToken{Content: tok.Content}) {
					return
				}
				completed = true
				break
			}
			if !forward(ctx, out, tok) {
				return // consumer abandoned; thread stays uncommitted
			}
		}
		if !completed {
			forward(ctx, out, domain.StreamToken{Done: true, Err: fmt.Errorf("%w: stream ended early", domain.ErrGenerationFailed)})
			return
		}

		answer := sb.String()
		th.messages = append(th.messages, human, domain.Message{Role: "assistant", Content: answer})
		th.lastQuery = query
		th.lastRole = role
		th.answer = answer
		forward(ctx, out, domain.StreamToken{Done: true})
	}()

	return &Turn{ThreadID: threadID, Tokens: out}, nil
}

// State returns a snapshot of a thread's conversation state. The second
// return is false when the thread has never been seen.
func (e *Engine) State(threadID string) (domain.ConversationState, bool) {
	e.mu.Lock()
	th, ok := e.threads[threadID]
	e.mu.Unlock()
	if !ok {
		return domain.ConversationState{}, false
	}
	th.mu.Lock()
	defer th.mu.Unlock()
	msgs := make([]domain.Message, len(th.messages))
	copy(msgs, th.messages)
	return domain.ConversationState{
		Query:    th.lastQuery,
		Role:     th.lastRole,
		Messages: msgs,
		Answer:   th.answer,
	}, true
}

func (e *Engine) thread(id string) *thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.threads[id]
	if !ok {
		th = &thread{}
		e.threads[id] = th
	}
	return th
}

// drain consumes whatever the backend still has buffered after this
// side stops reading, so its producer goroutine can finish and release
// the response body.
func drain(ch <-chan domain.StreamToken) {
	go func() {
		for range ch {
		}
	}()
}

// forward delivers a token unless the consumer's context is gone.
func forward(ctx context.Context, out chan<- domain.StreamToken, tok domain.StreamToken) bool {
	select {
	case out <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}

func wrapGeneration(err error) error {
	if errors.Is(err, domain.ErrGenerationFailed) || errors.Is(err, domain.ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
}

// buildSystemPrompt assembles the grounding instruction: answer only
// from the retrieved context, cite file name and page number for chunks
// actually used, admit missing information instead of guessing, and skip
// citations for unrelated queries.
func buildSystemPrompt(chunks []domain.Chunk, role string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Answer the user's query based only on the following context:\n\n")
	if len(chunks) == 0 {
		sb.WriteString("(no context available)\n")
	}
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[source: %s, page %d]\n%s\n\n", c.SourceID, c.PageNumber, c.Text)
	}
	sb.WriteString("\nProvide a concise and accurate response. ")
	sb.WriteString("At the end of the response, include a citation for each document used to answer the query, giving only the file name and the page number. ")
	sb.WriteString("If you do not have enough information, say so instead of guessing. ")
	sb.WriteString("Use only the context provided, not any external knowledge. ")
	sb.WriteString("If the query is not related to the context, no citation is needed.")
	if role != "" {
		fmt.Fprintf(&sb, "\nThe user is asking in the role of a %s; address them accordingly.", role)
	}
	return sb.String()
}

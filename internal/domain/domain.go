package domain

import "context"

// Page is one page of text extracted from a source document.
// Page numbers are 1-indexed and are used verbatim in citations.
type Page struct {
	Number int
	Text   string
}

// Chunk is a retrievable unit of document text with provenance metadata.
type Chunk struct {
	Text       string `json:"text"`
	SourceID   string `json:"source_id"`
	PageNumber int    `json:"page_number"`
}

// SearchResult is a matching chunk with its L2 distance to the query
// vector. Smaller distance means closer.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ConversationState is the per-thread execution context threaded through
// the orchestrator. Messages grows monotonically within one thread.
type ConversationState struct {
	Query    string
	Role     string
	Messages []Message
	Answer   string
}

// StreamToken is one fragment of a streaming model response. The token
// with Done set is the last one on the stream; Err, when non-nil, ends
// the stream without a complete answer.
type StreamToken struct {
	Content string
	Done    bool
	Err     error
}

// Embedder converts text into a fixed-length vector. Implementations must
// be deterministic for the same text and model; the same model must be
// used at ingest and query time or distances are meaningless.
type Embedder interface {
	ModelID() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ChatModel generates a streaming completion for an ordered message list.
// Consuming the stream to the Done token is required to obtain a
// complete answer.
type ChatModel interface {
	ModelID() string
	Stream(ctx context.Context, messages []Message) (<-chan StreamToken, error)
}

// Extractor pulls text with page metadata out of a source document.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// Chunker turns extracted pages into retrievable chunks, preserving
// page provenance.
type Chunker interface {
	Chunk(sourceID string, pages []Page) ([]Chunk, error)
}

// Retriever returns the chunks most similar to a query string.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

// fakeRetriever returns canned chunks, or a canned error.
type fakeRetriever struct {
	chunks []domain.Chunk
	err    error
}

func (f *fakeRetriever) Retrieve(context.Context, string, int) ([]domain.Chunk, error) {
	return f.chunks, f.err
}

// fakeModel records every prompt it receives and streams a scripted
// answer split into fragments.
type fakeModel struct {
	mu          sync.Mutex
	prompts     [][]domain.Message
	answer      []string
	doneContent string
	failMid     bool
}

func (f *fakeModel) ModelID() string { return "fake:chat" }

func (f *fakeModel) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamToken, error) {
	f.mu.Lock()
	snapshot := make([]domain.Message, len(messages))
	copy(snapshot, messages)
	f.prompts = append(f.prompts, snapshot)
	f.mu.Unlock()

	ch := make(chan domain.StreamToken, len(f.answer)+1)
	go func() {
		defer close(ch)
		for i, frag := range f.answer {
			if f.failMid && i == 1 {
				ch <- domain.StreamToken{Done: true, Err: fmt.Errorf("%w: connection reset", domain.ErrGenerationFailed)}
				return
			}
			ch <- domain.StreamToken{Content: frag}
		}
		ch <- domain.StreamToken{Content: f.doneContent, Done: true}
	}()
	return ch, nil
}

func (f *fakeModel) lastPrompt(t *testing.T) []domain.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.prompts)
	return f.prompts[len(f.prompts)-1]
}

func collect(t *testing.T, turn *Turn) (string, error) {
	t.Helper()
	var sb strings.Builder
	for tok := range turn.Tokens {
		if tok.Err != nil {
			return sb.String(), tok.Err
		}
		sb.WriteString(tok.Content)
	}
	return sb.String(), nil
}

func TestRunStreamsAnswerAndCommitsTurn(t *testing.T) {
	model := &fakeModel{answer: []string{"Employees get ", "20 vacation days.", " (policy.pdf, page 1)"}}
	ret := &fakeRetriever{chunks: []domain.Chunk{
		{Text: "Employees get 20 vacation days per year.", SourceID: "policy.pdf", PageNumber: 1},
	}}
	e := NewEngine(ret, model, 3)

	turn, err := e.Run(context.Background(), "How many vacation days?", "", "t1")
	require.NoError(t, err)
	streamed, err := collect(t, turn)
	require.NoError(t, err)
	assert.Equal(t, "Employees get 20 vacation days. (policy.pdf, page 1)", streamed)

	state, ok := e.State("t1")
	require.True(t, ok)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "user", state.Messages[0].Role)
	assert.Equal(t, "How many vacation days?", state.Messages[0].Content)
	assert.Equal(t, "assistant", state.Messages[1].Role)
	assert.Equal(t, streamed, state.Answer)
}

func TestRunGroundsPromptInRetrievedContext(t *testing.T) {
	model := &fakeModel{answer: []string{"ok"}}
	ret := &fakeRetriever{chunks: []domain.Chunk{
		{Text: "Employees get 20 vacation days per year.", SourceID: "policy.pdf", PageNumber: 1},
	}}
	e := NewEngine(ret, model, 3)

	turn, err := e.Run(context.Background(), "vacation days?", "Manager", "t1")
	require.NoError(t, err)
	_, err = collect(t, turn)
	require.NoError(t, err)

	prompt := model.lastPrompt(t)
	require.NotEmpty(t, prompt)
	system := prompt[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "Employees get 20 vacation days per year.")
	assert.Contains(t, system.Content, "policy.pdf")
	assert.Contains(t, system.Content, "no citation is needed")
	assert.Contains(t, system.Content, "say so instead of guessing")
	assert.Contains(t, system.Content, "role of a Manager")
	assert.Equal(t, "user", prompt[len(prompt)-1].Role)
}

func TestRunConversationContinuity(t *testing.T) {
	model := &fakeModel{answer: []string{"answer"}}
	e := NewEngine(&fakeRetriever{}, model, 3)

	for _, q := range []string{"first question", "second question"} {
		turn, err := e.Run(context.Background(), q, "", "thread-a")
		require.NoError(t, err)
		_, err = collect(t, turn)
		require.NoError(t, err)
	}

	state, ok := e.State("thread-a")
	require.True(t, ok)
	require.Len(t, state.Messages, 4)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"}, roles(state.Messages))
	assert.Equal(t, "first question", state.Messages[0].Content)
	assert.Equal(t, "second question", state.Messages[2].Content)

	// The second prompt carried the first exchange.
	second := model.lastPrompt(t)
	require.Len(t, second, 4) // system + prior user/assistant + new user
}

func TestRunDistinctThreadsDoNotShareState(t *testing.T) {
	model := &fakeModel{answer: []string{"answer"}}
	e := NewEngine(&fakeRetriever{}, model, 3)

	for _, id := range []string{"thread-a", "thread-b"} {
		turn, err := e.Run(context.Background(), "hello", "", id)
		require.NoError(t, err)
		_, err = collect(t, turn)
		require.NoError(t, err)
	}

	a, _ := e.State("thread-a")
	b, _ := e.State("thread-b")
	assert.Len(t, a.Messages, 2)
	assert.Len(t, b.Messages, 2)
}

func TestRunEmptyThreadIDStartsFreshThread(t *testing.T) {
	model := &fakeModel{answer: []string{"answer"}}
	e := NewEngine(&fakeRetriever{}, model, 3)

	turn, err := e.Run(context.Background(), "hello", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, turn.ThreadID)
	_, err = collect(t, turn)
	require.NoError(t, err)

	state, ok := e.State(turn.ThreadID)
	require.True(t, ok)
	assert.Len(t, state.Messages, 2)
}

func TestRunSurfacesMissingIndex(t *testing.T) {
	ret := &fakeRetriever{err: fmt.Errorf("%w: no documents have been ingested", domain.ErrIndexNotFound)}
	e := NewEngine(ret, &fakeModel{}, 3)

	_, err := e.Run(context.Background(), "hello", "", "t1")
	require.ErrorIs(t, err, domain.ErrIndexNotFound, "ungrounded generation is disallowed")
}

func TestRunGenerationFailureLeavesThreadUntouched(t *testing.T) {
	model := &fakeModel{answer: []string{"partial ", "never sent"}, failMid: true}
	e := NewEngine(&fakeRetriever{}, model, 3)

	turn, err := e.Run(context.Background(), "hello", "", "t1")
	require.NoError(t, err)
	_, err = collect(t, turn)
	require.ErrorIs(t, err, domain.ErrGenerationFailed)

	state, ok := e.State("t1")
	require.True(t, ok)
	assert.Empty(t, state.Messages, "a failed turn must not leave a half-written exchange")
	assert.Empty(t, state.Answer)

	// The thread is still usable for a later turn.
	model.failMid = false
	turn, err = e.Run(context.Background(), "hello again", "", "t1")
	require.NoError(t, err)
	_, err = collect(t, turn)
	require.NoError(t, err)
	state, _ = e.State("t1")
	assert.Len(t, state.Messages, 2)
}

// blockingModel emits one fragment, then holds the stream open until
// the caller's context is cancelled.
type blockingModel struct{}

func (blockingModel) ModelID() string { return "fake:blocking" }

func (blockingModel) Stream(ctx context.Context, _ []domain.Message) (<-chan domain.StreamToken, error) {
	ch := make(chan domain.StreamToken, 2)
	go func() {
		defer close(ch)
		ch <- domain.StreamToken{Content: "partial "}
		<-ctx.Done()
		ch <- domain.StreamToken{Done: true, Err: fmt.Errorf("%w: %v", domain.ErrGenerationFailed, ctx.Err())}
	}()
	return ch, nil
}

func TestRunAbandonedStreamDoesNotCommit(t *testing.T) {
	e := NewEngine(&fakeRetriever{}, blockingModel{}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := e.Run(ctx, "hello", "", "t1")
	require.NoError(t, err)

	tok := <-turn.Tokens
	assert.Equal(t, "partial ", tok.Content)
	cancel()
	for range turn.Tokens {
		// drain until the engine gives up on the turn
	}

	state, ok := e.State("t1")
	require.True(t, ok)
	assert.Empty(t, state.Messages, "an abandoned stream must not finalize the turn")
	assert.Empty(t, state.Answer)
}

// floodModel streams far more fragments than any channel buffer holds,
// sending unconditionally the way a backend pushes undelivered tokens,
// and signals when its producer goroutine returns.
type floodModel struct {
	tokens int
	exited chan struct{}
}

func (f *floodModel) ModelID() string { return "fake:flood" }

func (f *floodModel) Stream(context.Context, []domain.Message) (<-chan domain.StreamToken, error) {
	ch := make(chan domain.StreamToken, 4)
	go func() {
		defer close(ch)
		defer close(f.exited)
		for i := 0; i < f.tokens; i++ {
			ch <- domain.StreamToken{Content: "x"}
		}
		ch <- domain.StreamToken{Done: true}
	}()
	return ch, nil
}

func TestRunAbandonedTurnReleasesBackendStream(t *testing.T) {
	model := &floodModel{tokens: 500, exited: make(chan struct{})}
	e := NewEngine(&fakeRetriever{}, model, 3)

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := e.Run(ctx, "hello", "", "t1")
	require.NoError(t, err)

	<-turn.Tokens // one token, then walk away
	cancel()

	select {
	case <-model.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("backend producer still blocked after the consumer abandoned the turn")
	}

	state, ok := e.State("t1")
	require.True(t, ok)
	assert.Empty(t, state.Messages)
}

func TestRunForwardsTextCarriedOnFinalToken(t *testing.T) {
	model := &fakeModel{answer: []string{"Employees get "}, doneContent: "20 vacation days."}
	e := NewEngine(&fakeRetriever{}, model, 3)

	turn, err := e.Run(context.Background(), "vacation days?", "", "t1")
	require.NoError(t, err)
	streamed, err := collect(t, turn)
	require.NoError(t, err)
	assert.Equal(t, "Employees get 20 vacation days.", streamed)

	state, ok := e.State("t1")
	require.True(t, ok)
	assert.Equal(t, streamed, state.Answer, "streamed fragments must sum to the committed answer")
}

func roles(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

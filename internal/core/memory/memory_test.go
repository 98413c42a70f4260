package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docqa/internal/core/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (c *Conversation) set(summary string) {
	_, gen := c.snapshot()
	c.setIf(gen, summary)
}

type scriptedLLM struct {
	prompts []string
	reply   string
	err     error
}

func (s *scriptedLLM) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
	s.prompts = append(s.prompts, msgs[len(msgs)-1].Content)
	return s.reply, s.err
}

func TestSummarizer_Record(t *testing.T) {
	t.Run("ShouldFoldTurnIntoSummary", func(t *testing.T) {
		fake := &scriptedLLM{reply: "  The user asked about exams.  "}
		s := &Summarizer{LLM: fake}
		conv := &Conversation{}

		err := s.Record(context.Background(), conv, "When are exams?", "In June.")
		require.NoError(t, err)
		assert.Equal(t, "The user asked about exams.", conv.Summary())
		assert.Equal(t, 1, conv.Turns())
		require.Len(t, fake.prompts, 1)
		assert.Contains(t, fake.prompts[0], "Human: When are exams?")
		assert.Contains(t, fake.prompts[0], "AI: In June.")
	})

	t.Run("ShouldIncludePreviousSummary", func(t *testing.T) {
		fake := &scriptedLLM{reply: "second"}
		s := &Summarizer{LLM: fake}
		conv := &Conversation{}
		conv.set("first")

		require.NoError(t, s.Record(context.Background(), conv, "q", "a"))
		assert.True(t, strings.Contains(fake.prompts[0], "Current summary:\nfirst"))
		assert.Equal(t, "second", conv.Summary())
	})

	t.Run("ShouldLeaveConversationOnFailure", func(t *testing.T) {
		boom := errors.New("llm down")
		s := &Summarizer{LLM: &scriptedLLM{err: boom}}
		conv := &Conversation{}
		conv.set("kept")

		err := s.Record(context.Background(), conv, "q", "a")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "kept", conv.Summary())
	})
}

// appendingLLM folds each turn by appending its question to the previous summary.
type appendingLLM struct {
	started chan struct{}
	release chan struct{}
}

func (a *appendingLLM) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (string, error) {
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	prompt := msgs[len(msgs)-1].Content
	prev := between(prompt, "Current summary:\n", "\n\nNew lines")
	q := between(prompt, "Human: ", "\nAI:")
	time.Sleep(time.Millisecond)
	return prev + q, nil
}

func between(s, from, to string) string {
	_, rest, _ := strings.Cut(s, from)
	out, _, _ := strings.Cut(rest, to)
	return out
}

func TestSummarizer_Concurrency(t *testing.T) {
	t.Run("ShouldKeepEveryConcurrentTurn", func(t *testing.T) {
		s := &Summarizer{LLM: &appendingLLM{}}
		conv := &Conversation{}
		questions := "abcdefghij"

		var wg sync.WaitGroup
		for _, q := range questions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Record(context.Background(), conv, string(q), "ok"))
			}()
		}
		wg.Wait()

		assert.Equal(t, len(questions), conv.Turns())
		summary := conv.Summary()
		assert.Len(t, summary, len(questions))
		for _, q := range questions {
			assert.Contains(t, summary, string(q))
		}
	})

	t.Run("ShouldDropTurnFinishingAfterReset", func(t *testing.T) {
		fake := &appendingLLM{started: make(chan struct{}), release: make(chan struct{})}
		s := &Summarizer{LLM: fake}
		conv := &Conversation{}
		conv.set("old")

		done := make(chan error, 1)
		go func() { done <- s.Record(context.Background(), conv, "q", "a") }()
		<-fake.started
		conv.Reset()
		close(fake.release)

		require.NoError(t, <-done)
		assert.Empty(t, conv.Summary())
		assert.Zero(t, conv.Turns())
	})
}

func TestStore(t *testing.T) {
	t.Run("ShouldReturnSameConversationPerSession", func(t *testing.T) {
		store, err := NewStore(4)
		require.NoError(t, err)
		a := store.Get("a")
		assert.Same(t, a, store.Get("a"))
		assert.NotSame(t, a, store.Get("b"))
	})

	t.Run("ShouldResetOneOrAll", func(t *testing.T) {
		store, err := NewStore(4)
		require.NoError(t, err)
		store.Get("a").set("alpha")
		store.Get("b").set("beta")

		store.Reset("a")
		assert.Empty(t, store.Get("a").Summary())
		assert.Equal(t, "beta", store.Get("b").Summary())

		store.ResetAll()
		assert.Empty(t, store.Get("b").Summary())
		assert.Zero(t, store.Get("b").Turns())
	})

	t.Run("ShouldEvictLeastRecentlyUsed", func(t *testing.T) {
		store, err := NewStore(2)
		require.NoError(t, err)
		store.Get("a").set("alpha")
		store.Get("b")
		store.Get("c")
		assert.Equal(t, 2, store.Len())
		assert.Empty(t, store.Get("a").Summary())
	})

	t.Run("ShouldRejectNonPositiveSize", func(t *testing.T) {
		_, err := NewStore(0)
		assert.Error(t, err)
	})
}

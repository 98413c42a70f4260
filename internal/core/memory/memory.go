// Package memory keeps a running summary of a conversation. State lives in
// Conversation values owned by the caller; nothing is held in package globals.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docqa/internal/core/llm"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Conversation is the summarized memory of one chat session. Turns recorded
// concurrently are applied one after another.
type Conversation struct {
	turn sync.Mutex

	mu      sync.Mutex
	summary string
	turns   int
	gen     uint64
}

func (c *Conversation) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

// Reset forgets everything said so far.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = ""
	c.turns = 0
	c.gen++
}

func (c *Conversation) snapshot() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary, c.gen
}

// setIf stores summary unless the conversation was reset after gen was read.
func (c *Conversation) setIf(gen uint64, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.summary = summary
	c.turns++
}

const summaryPrompt = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
Human: %s
AI: %s

New summary:`

// Summarizer folds question/answer turns into a conversation's summary with an LLM.
type Summarizer struct {
	LLM     llm.Completer
	Options llm.Options
}

// Record appends one turn to conv. On failure conv is left unchanged, and a turn
// that finishes after a Reset is dropped.
func (s *Summarizer) Record(ctx context.Context, conv *Conversation, question, answer string) error {
	conv.turn.Lock()
	defer conv.turn.Unlock()

	current, gen := conv.snapshot()
	prompt := fmt.Sprintf(summaryPrompt, current, question, answer)
	summary, err := s.LLM.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, s.Options)
	if err != nil {
		return err
	}
	conv.setIf(gen, strings.TrimSpace(summary))
	return nil
}

// Store hands out one Conversation per session ID, evicting the least recently used.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Conversation]
}

func NewStore(size int) (*Store, error) {
	cache, err := lru.New[string, *Conversation](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Get returns the session's conversation, creating an empty one on first use.
func (s *Store) Get(sessionID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.cache.Get(sessionID); ok {
		return conv
	}
	conv := &Conversation{}
	s.cache.Add(sessionID, conv)
	return conv
}

// Reset clears the session's conversation if it exists.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.cache.Peek(sessionID); ok {
		conv.Reset()
	}
}

// ResetAll clears every live conversation.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.cache.Values() {
		conv.Reset()
	}
}

func (s *Store) Len() int { return s.cache.Len() }

// Package chunker segments document text into overlapping, token-bounded chunks
// made of whole sentences.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is returned when the size policy cannot drive the chunker.
	ErrInvalidConfig = errors.New("chunker: invalid configuration")
	// ErrExtraction wraps failures raised by the tokenizer or the sentence splitter.
	ErrExtraction = errors.New("chunker: extraction failed")
)

// Tokenizer counts tokens the same way downstream prompt budgeting does.
type Tokenizer interface {
	CountTokens(text string) (int, error)
}

// SentenceSplitter segments text into ordered, non-overlapping sentences.
type SentenceSplitter interface {
	Split(text string) ([]string, error)
}

// TokenCountFunc adapts a plain function to Tokenizer.
type TokenCountFunc func(text string) (int, error)

func (f TokenCountFunc) CountTokens(text string) (int, error) { return f(text) }

// SplitFunc adapts a plain function to SentenceSplitter.
type SplitFunc func(text string) ([]string, error)

func (f SplitFunc) Split(text string) ([]string, error) { return f(text) }

// Config is the token-size policy.
//
// MaxChunkSize is the hard ceiling checked before a sentence joins a non-empty chunk.
// ChunkOverlap is the number of trailing tokens carried into the next chunk.
// MinChunkSize is informational only: undersized trailing chunks are never merged.
type Config struct {
	MinChunkSize int
	MaxChunkSize int
	ChunkOverlap int
}

func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("%w: min chunk size must not be negative, got %d", ErrInvalidConfig, c.MinChunkSize)
	}
	return nil
}

// Chunker holds no mutable state and is safe for concurrent use.
type Chunker struct {
	cfg       Config
	tokenizer Tokenizer
	splitter  SentenceSplitter
}

func New(cfg Config, tokenizer Tokenizer, splitter SentenceSplitter) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil || splitter == nil {
		return nil, fmt.Errorf("%w: tokenizer and sentence splitter are required", ErrInvalidConfig)
	}
	return &Chunker{cfg: cfg, tokenizer: tokenizer, splitter: splitter}, nil
}

func (c *Chunker) Config() Config { return c.cfg }

// Chunk groups sentences greedily under MaxChunkSize and seeds every chunk after the
// first with trailing sentences of its predecessor worth at least ChunkOverlap tokens.
// A sentence is never split, so a single oversized sentence forms its own chunk.
// Either the full sequence is returned or an error, never a partial result.
func (c *Chunker) Chunk(text string) ([]string, error) {
	sentences, err := c.splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("%w: split sentences: %w", ErrExtraction, err)
	}
	if len(sentences) == 0 {
		return []string{}, nil
	}

	var (
		chunks        []string
		current       []string
		currentTokens int
	)
	for _, s := range sentences {
		sTokens, err := c.count(s)
		if err != nil {
			return nil, err
		}
		if len(current) > 0 && currentTokens+sTokens > c.cfg.MaxChunkSize {
			chunks = append(chunks, join(current))
			current, currentTokens, err = c.overlapSeed(current)
			if err != nil {
				return nil, err
			}
		}
		current = append(current, s)
		currentTokens += sTokens
	}
	if len(current) > 0 {
		chunks = append(chunks, join(current))
	}
	return chunks, nil
}

// overlapSeed walks backwards through the closed chunk until the joined tail reaches
// ChunkOverlap tokens or the chunk is exhausted. The tail is re-counted as a whole at
// every step because token counts are not additive across a join.
func (c *Chunker) overlapSeed(closed []string) ([]string, int, error) {
	var (
		seed       []string
		seedTokens int
	)
	for i := len(closed) - 1; i >= 0; i-- {
		if seedTokens >= c.cfg.ChunkOverlap {
			break
		}
		seed = append([]string{closed[i]}, seed...)
		n, err := c.count(join(seed))
		if err != nil {
			return nil, 0, err
		}
		seedTokens = n
	}
	return seed, seedTokens, nil
}

func (c *Chunker) count(text string) (int, error) {
	n, err := c.tokenizer.CountTokens(text)
	if err != nil {
		return 0, fmt.Errorf("%w: count tokens: %w", ErrExtraction, err)
	}
	return n, nil
}

func join(sentences []string) string {
	return strings.Join(sentences, " ")
}

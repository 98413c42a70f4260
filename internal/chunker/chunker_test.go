package chunker

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentence builds a sentence of exactly n words so WordCounter reports n tokens.
func sentence(id, n int) string {
	words := make([]string, 0, n)
	words = append(words, fmt.Sprintf("S%d", id))
	for i := 1; i < n; i++ {
		words = append(words, "w")
	}
	return strings.Join(words, " ") + "."
}

func newWordChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg, WordCounter{}, UnicodeSentenceSplitter{})
	require.NoError(t, err)
	return c
}

func TestChunker_Chunk(t *testing.T) {
	t.Run("ShouldReturnEmptyForEmptyText", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 20, ChunkOverlap: 5})
		chunks, err := c.Chunk("")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		chunks, err = c.Chunk("   \n\t ")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("ShouldFollowGreedyAccumulationWithTailOverlap", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 20, ChunkOverlap: 5})
		s1, s2, s3, s4 := sentence(1, 8), sentence(2, 8), sentence(3, 8), sentence(4, 8)
		chunks, err := c.Chunk(strings.Join([]string{s1, s2, s3, s4}, " "))
		require.NoError(t, err)
		assert.Equal(t, []string{
			s1 + " " + s2,
			s2 + " " + s3,
			s3 + " " + s4,
		}, chunks)
	})

	t.Run("ShouldKeepOversizedSentenceWhole", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 5, ChunkOverlap: 2})
		big := sentence(1, 12)
		chunks, err := c.Chunk(big)
		require.NoError(t, err)
		assert.Equal(t, []string{big}, chunks)
	})

	t.Run("ShouldIsolateOversizedSentenceBetweenSmallOnes", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 5, ChunkOverlap: 0})
		s1, s2, s3 := sentence(1, 2), sentence(2, 10), sentence(3, 2)
		chunks, err := c.Chunk(strings.Join([]string{s1, s2, s3}, " "))
		require.NoError(t, err)
		assert.Equal(t, []string{s1, s2, s3}, chunks)
	})

	t.Run("ShouldStartColdWithZeroOverlap", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 10, ChunkOverlap: 0})
		s1, s2, s3, s4 := sentence(1, 4), sentence(2, 4), sentence(3, 4), sentence(4, 4)
		chunks, err := c.Chunk(strings.Join([]string{s1, s2, s3, s4}, " "))
		require.NoError(t, err)
		assert.Equal(t, []string{s1 + " " + s2, s3 + " " + s4}, chunks)
	})

	t.Run("ShouldCarryWholeChunkWhenSmallerThanOverlap", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 10, ChunkOverlap: 50})
		s1, s2 := sentence(1, 6), sentence(2, 6)
		chunks, err := c.Chunk(s1 + " " + s2)
		require.NoError(t, err)
		assert.Equal(t, []string{s1, s1 + " " + s2}, chunks)
	})

	t.Run("ShouldNotRecheckCeilingAfterSeed", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 10, ChunkOverlap: 3})
		s1, s2, s3 := sentence(1, 4), sentence(2, 4), sentence(3, 7)
		chunks, err := c.Chunk(strings.Join([]string{s1, s2, s3}, " "))
		require.NoError(t, err)
		require.Equal(t, []string{s1 + " " + s2, s2 + " " + s3}, chunks)

		n, err := WordCounter{}.CountTokens(chunks[1])
		require.NoError(t, err)
		assert.Equal(t, 11, n)
	})

	t.Run("ShouldJoinWithSingleSpaceAndKeepInnerWhitespace", func(t *testing.T) {
		splitter := SplitFunc(func(string) ([]string, error) {
			return []string{"One  two.", "Three\tfour."}, nil
		})
		c, err := New(Config{MaxChunkSize: 100}, WordCounter{}, splitter)
		require.NoError(t, err)
		chunks, err := c.Chunk("ignored")
		require.NoError(t, err)
		assert.Equal(t, []string{"One  two. Three\tfour."}, chunks)
	})

	t.Run("ShouldRecountJoinedOverlapCandidate", func(t *testing.T) {
		// Character counting is not additive across a join: "bb cc" is 5, not 2+2.
		chars := TokenCountFunc(func(text string) (int, error) { return len(text), nil })
		splitter := SplitFunc(func(string) ([]string, error) {
			return []string{"aa", "bb", "cc", "dd"}, nil
		})
		c, err := New(Config{MaxChunkSize: 6, ChunkOverlap: 5}, chars, splitter)
		require.NoError(t, err)
		chunks, err := c.Chunk("ignored")
		require.NoError(t, err)
		assert.Equal(t, []string{"aa bb cc", "bb cc dd"}, chunks)
	})

	t.Run("ShouldBeIdempotent", func(t *testing.T) {
		c := newWordChunker(t, Config{MaxChunkSize: 30, ChunkOverlap: 7})
		text := randomText(rand.New(rand.NewSource(7)), 60)
		first, err := c.Chunk(text)
		require.NoError(t, err)
		second, err := c.Chunk(text)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestChunker_Errors(t *testing.T) {
	t.Run("ShouldRejectInvalidConfig", func(t *testing.T) {
		cases := []Config{
			{MaxChunkSize: 0},
			{MaxChunkSize: -3},
			{MaxChunkSize: 10, ChunkOverlap: -1},
			{MaxChunkSize: 10, MinChunkSize: -1},
		}
		for _, cfg := range cases {
			_, err := New(cfg, WordCounter{}, UnicodeSentenceSplitter{})
			assert.ErrorIs(t, err, ErrInvalidConfig, "config %+v", cfg)
		}
	})

	t.Run("ShouldRequireCapabilities", func(t *testing.T) {
		_, err := New(Config{MaxChunkSize: 10}, nil, UnicodeSentenceSplitter{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		_, err = New(Config{MaxChunkSize: 10}, WordCounter{}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("ShouldWrapSplitterFailure", func(t *testing.T) {
		boom := errors.New("binary content")
		splitter := SplitFunc(func(string) ([]string, error) { return nil, boom })
		c, err := New(Config{MaxChunkSize: 10}, WordCounter{}, splitter)
		require.NoError(t, err)
		chunks, err := c.Chunk("\x00\x01")
		assert.Nil(t, chunks)
		assert.ErrorIs(t, err, ErrExtraction)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("ShouldReturnNoPartialResultOnTokenizerFailure", func(t *testing.T) {
		boom := errors.New("tokenizer down")
		calls := 0
		tok := TokenCountFunc(func(text string) (int, error) {
			calls++
			if calls > 3 {
				return 0, boom
			}
			return len(strings.Fields(text)), nil
		})
		c, err := New(Config{MaxChunkSize: 4, ChunkOverlap: 0}, tok, UnicodeSentenceSplitter{})
		require.NoError(t, err)
		chunks, err := c.Chunk("One two three. Four five six. Seven eight nine. Ten.")
		assert.Nil(t, chunks)
		assert.ErrorIs(t, err, ErrExtraction)
		assert.ErrorIs(t, err, boom)
	})
}

func randomText(r *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentence(i, 3+r.Intn(10))
	}
	return strings.Join(parts, " ")
}

func TestChunker_Properties(t *testing.T) {
	splitter := UnicodeSentenceSplitter{}
	counter := WordCounter{}
	configs := []Config{
		{MinChunkSize: 10, MaxChunkSize: 40, ChunkOverlap: 8},
		{MinChunkSize: 0, MaxChunkSize: 25, ChunkOverlap: 0},
		{MinChunkSize: 5, MaxChunkSize: 60, ChunkOverlap: 15},
	}
	for seed := int64(1); seed <= 5; seed++ {
		text := randomText(rand.New(rand.NewSource(seed)), 80)
		original, err := splitter.Split(text)
		require.NoError(t, err)

		for _, cfg := range configs {
			t.Run(fmt.Sprintf("seed=%d/max=%d/overlap=%d", seed, cfg.MaxChunkSize, cfg.ChunkOverlap), func(t *testing.T) {
				c, err := New(cfg, counter, splitter)
				require.NoError(t, err)
				chunks, err := c.Chunk(text)
				require.NoError(t, err)
				require.NotEmpty(t, chunks)

				grouped := make([][]string, len(chunks))
				for i, ch := range chunks {
					grouped[i], err = splitter.Split(ch)
					require.NoError(t, err)
				}

				// coverage: dropping the carried prefix of each chunk rebuilds the sentence order
				rebuilt := slices.Clone(grouped[0])
				for i := 1; i < len(grouped); i++ {
					carried := carriedPrefix(grouped[i-1], grouped[i])
					rebuilt = append(rebuilt, grouped[i][carried:]...)
				}
				assert.Equal(t, original, rebuilt)

				for i, g := range grouped {
					if len(g) > 1 {
						n, _ := counter.CountTokens(chunks[i])
						assert.LessOrEqual(t, n, cfg.MaxChunkSize, "chunk %d over ceiling", i)
					}
					if i == 0 {
						continue
					}
					carried := carriedPrefix(grouped[i-1], g)
					if cfg.ChunkOverlap == 0 {
						assert.Zero(t, carried, "chunk %d repeats a sentence", i)
						continue
					}
					n, _ := counter.CountTokens(strings.Join(g[:carried], " "))
					if n < cfg.ChunkOverlap {
						assert.Equal(t, grouped[i-1], g[:carried], "chunk %d undershoots overlap", i)
					}
				}
			})
		}
	}
}

// carriedPrefix returns how many leading sentences of next repeat the tail of prev.
func carriedPrefix(prev, next []string) int {
	for k := min(len(prev), len(next)); k > 0; k-- {
		if slices.Equal(prev[len(prev)-k:], next[:k]) {
			return k
		}
	}
	return 0
}

func TestChunker_ConcurrentUse(t *testing.T) {
	c := newWordChunker(t, Config{MaxChunkSize: 30, ChunkOverlap: 6})
	text := randomText(rand.New(rand.NewSource(42)), 50)
	want, err := c.Chunk(text)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Chunk(text)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

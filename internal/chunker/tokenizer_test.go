package chunker

import (
	"errors"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteLoader serves a vocabulary of the 256 single bytes, so every byte is one token.
type byteLoader struct{ err error }

func (l byteLoader) LoadTiktokenBpe(string) (map[string]int, error) {
	if l.err != nil {
		return nil, l.err
	}
	ranks := make(map[string]int, 256)
	for i := range 256 {
		ranks[string([]byte{byte(i)})] = i
	}
	return ranks, nil
}

// Loaded encodings are cached by tiktoken-go, so the failing loader runs first.
func TestNewTiktokenCounter(t *testing.T) {
	t.Run("ShouldFailWhenVocabularyCannotLoad", func(t *testing.T) {
		tiktoken.SetBpeLoader(byteLoader{err: errors.New("offline")})
		_, err := NewTiktokenCounter("gpt-3.5-turbo")
		assert.ErrorContains(t, err, defaultEncoding)
	})

	tiktoken.SetBpeLoader(byteLoader{})
	cases := []struct {
		name     string
		input    string
		encoding string
	}{
		{name: "ShouldDefaultWhenEmpty", input: "", encoding: "cl100k_base"},
		{name: "ShouldAcceptEncodingName", input: "p50k_base", encoding: "p50k_base"},
		{name: "ShouldResolveModelName", input: "gpt-3.5-turbo", encoding: "cl100k_base"},
		{name: "ShouldResolveModelPrefix", input: "gpt-4-0613", encoding: "cl100k_base"},
		{name: "ShouldFallBackForUnknownModel", input: "my-local-model", encoding: "cl100k_base"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			counter, err := NewTiktokenCounter(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.encoding, counter.Encoding())

			n, err := counter.CountTokens("hello world")
			require.NoError(t, err)
			assert.Equal(t, len("hello world"), n)
		})
	}
}

func TestWordCounter(t *testing.T) {
	n, err := WordCounter{}.CountTokens("  one\ttwo\nthree  ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

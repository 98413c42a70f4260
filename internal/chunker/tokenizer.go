package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TiktokenCounter counts BPE tokens with the encoding of the answering model.
type TiktokenCounter struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves modelOrEncoding first as an encoding name, then as a
// model name, and falls back to cl100k_base.
func NewTiktokenCounter(modelOrEncoding string) (*TiktokenCounter, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	if tke, err := tiktoken.GetEncoding(modelOrEncoding); err == nil {
		return &TiktokenCounter{encoding: modelOrEncoding, tke: tke}, nil
	}
	if name, ok := encodingForModel(modelOrEncoding); ok {
		if tke, err := tiktoken.GetEncoding(name); err == nil {
			return &TiktokenCounter{encoding: name, tke: tke}, nil
		}
	}
	tke, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", defaultEncoding, err)
	}
	return &TiktokenCounter{encoding: defaultEncoding, tke: tke}, nil
}

func encodingForModel(model string) (string, bool) {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name, true
	}
	for prefix, name := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return name, true
		}
	}
	return "", false
}

func (tc *TiktokenCounter) CountTokens(text string) (int, error) {
	if tc.tke == nil {
		return 0, fmt.Errorf("tiktoken encoder is not initialized for %s", tc.encoding)
	}
	return len(tc.tke.Encode(text, nil, nil)), nil
}

// Encoding is the resolved BPE encoding name, never the model name.
func (tc *TiktokenCounter) Encoding() string { return tc.encoding }

// WordCounter approximates tokens as whitespace-separated words. It needs no
// vocabulary download, which makes it the offline fallback.
type WordCounter struct{}

func (WordCounter) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

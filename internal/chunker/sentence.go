package chunker

import (
	"strings"

	"github.com/rivo/uniseg"
)

// UnicodeSentenceSplitter finds sentence boundaries per Unicode UAX #29.
// Surrounding whitespace is trimmed and blank segments are dropped; whitespace
// inside a sentence is left alone.
type UnicodeSentenceSplitter struct{}

func (UnicodeSentenceSplitter) Split(text string) ([]string, error) {
	var (
		out      []string
		sentence string
	)
	state := -1
	for len(text) > 0 {
		sentence, text, state = uniseg.FirstSentenceInString(text, state)
		if s := strings.TrimSpace(sentence); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

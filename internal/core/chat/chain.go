package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/config"
	"docqa/internal/core/llm"
	"docqa/internal/core/memory"
	"docqa/internal/core/retriever"
	"docqa/pkg/logger"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Retriever finds the chunks most relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, filters retriever.Filters) ([]retriever.Hit, error)
}

// Chain answers questions from retrieved chunks and a caller-owned conversation.
type Chain struct {
	Retriever  Retriever
	LLM        llm.Completer
	Summarizer *memory.Summarizer
	Options    llm.Options
}

// Ask runs one conversational retrieval turn and records it in conv.
// A failure to update the summary is logged and does not fail the answer.
func (c *Chain) Ask(ctx context.Context, conv *memory.Conversation, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Response{}, ErrEmptyQuestion
	}

	standalone := question
	if len(req.History) > 0 {
		condensed, err := c.LLM.Complete(ctx, []llm.Message{
			{Role: "user", Content: buildCondensePrompt(req.History, question)},
		}, llm.Options{Temperature: c.Options.Temperature, MaxTokens: c.Options.MaxTokens})
		if err != nil {
			return Response{}, fmt.Errorf("condense question: %w", err)
		}
		if condensed != "" {
			standalone = condensed
		}
	}

	hits, err := c.Retriever.Retrieve(ctx, standalone, req.Filters)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve: %w", err)
	}

	answer, err := c.LLM.Complete(ctx, []llm.Message{
		{Role: "user", Content: buildAnswerPrompt(hits, conv.Summary(), standalone)},
	}, c.Options)
	if err != nil {
		return Response{}, fmt.Errorf("answer: %w", err)
	}

	if c.Summarizer != nil {
		if err := c.Summarizer.Record(ctx, conv, question, answer); err != nil {
			logger.Error(err, "%v: update conversation summary failed", config.ModuleMemory)
		}
	}

	sources := make([]SourceDocument, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, SourceDocument{Source: h.Source, ChunkID: int(h.ChunkIndex)})
	}
	return Response{Answer: answer, SourceDocuments: sources}, nil
}

package retriever

import (
	"context"
	"errors"

	"docqa/config"
	"docqa/pkg/logger"
)

// Embedder turns texts into vectors; ingest.OpenAIEmbedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// EmbedQuestion embeds a single question string and returns its vector.
func EmbedQuestion(ctx context.Context, e Embedder, question string) ([]float32, error) {
	if question == "" {
		return nil, errors.New("question is empty")
	}
	vecs, err := e.Embed(ctx, []string{question})
	if err != nil {
		logger.Error(err, "%v: embed question failed: %s", config.ModuleRetriever, question)
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vecs[0], nil
}

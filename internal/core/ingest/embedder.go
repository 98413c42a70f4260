package ingest

import (
	"context"
	"errors"

	"docqa/config"
	"docqa/pkg/logger"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const embedBatchSize = 100

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("missing openai key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}, nil
}

// Embed returns one vector per input, in input order, batching 100 inputs per request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	all := make([][]float32, 0, len(inputs))
	for i := 0; i < len(inputs); i += embedBatchSize {
		j := min(i+embedBatchSize, len(inputs))
		batch := inputs[i:j]
		logger.WithFields(map[string]interface{}{
			"model":       e.model,
			"batch_start": i,
			"batch_end":   j,
			"batch_size":  len(batch),
		}).Debug("openai: embedding batch start")

		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"model":       e.model,
				"batch_start": i,
				"batch_end":   j,
				"error":       err,
			}).Errorf("%v: embedding batch failed", config.ModuleOpenAI)
			return nil, err
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := openAIEmbeddingRequest{Model: e.model, Input: batch}
	var out openAIEmbeddingResponse
	if err := e.client.Post(ctx, "/embeddings", reqBody, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, errors.New(out.Error.Message)
	}
	if len(out.Data) != len(batch) {
		return nil, errors.New("embedding count mismatch")
	}
	vectors := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, errors.New("embedding index out of range")
		}
		vec := make([]float32, len(d.Embedding))
		for k, v := range d.Embedding {
			vec[k] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

package retriever

import (
	"context"
	"fmt"
	"time"

	"docqa/config"
	"docqa/internal/core/ingest"
	"docqa/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var outputFields = []string{"doc_id", "chunk_index", "source", "content"}

// Searcher runs vector similarity searches over the chunk collection.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int, filters Filters) ([]Hit, error)
}

// MilvusSearcher searches the collection written by ingest.MilvusStore.
type MilvusSearcher struct {
	cli        milvusclient.Client
	collection string
	metric     milvusentity.MetricType
	ef         int
	timeout    time.Duration
}

func NewMilvusSearcher(cli milvusclient.Client) *MilvusSearcher {
	cfg := config.Cfg.Milvus
	return &MilvusSearcher{
		cli:        cli,
		collection: cfg.Collection,
		metric:     milvusentity.MetricType(cfg.IndexHNSWConfig.MetricType),
		ef:         cfg.IndexHNSWConfig.Ef,
		timeout:    2 * time.Second,
	}
}

// Search performs a vector similarity search and returns topK hits with metadata.
func (s *MilvusSearcher) Search(ctx context.Context, query []float32, topK int, filters Filters) ([]Hit, error) {
	if topK <= 0 {
		topK = config.Cfg.Retrieval.TopK
	}
	if len(query) == 0 {
		return []Hit{}, nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	exists, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %q not found", s.collection)
	}
	if err := s.cli.LoadCollection(ctx, s.collection, false); err != nil {
		return nil, err
	}

	searchParam, err := milvusentity.NewIndexHNSWSearchParam(max(s.ef, topK))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := s.cli.Search(
		ctx,
		s.collection,
		nil, // partitions
		ingest.DocIDExpr(filters.DocIDs),
		outputFields,
		[]milvusentity.Vector{milvusentity.FloatVector(query)},
		"embedding",
		s.metric,
		topK,
		searchParam,
	)
	if err != nil {
		logger.Error(err, "%v: milvus search failed", config.ModuleRetriever)
		return nil, err
	}
	logger.Debug("%v: milvus search done in %dms", config.ModuleRetriever, time.Since(start).Milliseconds())

	if len(results) == 0 {
		return []Hit{}, nil
	}
	return parseHits(results[0])
}

func parseHits(it milvusclient.SearchResult) ([]Hit, error) {
	if it.Err != nil {
		return nil, it.Err
	}
	ids, ok := it.IDs.(*milvusentity.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("unexpected id column %T", it.IDs)
	}
	hits := make([]Hit, 0, it.ResultCount)
	for i := 0; i < it.ResultCount; i++ {
		h := Hit{ID: ids.Data()[i], Score: it.Scores[i]}
		for _, field := range it.Fields {
			switch col := field.(type) {
			case *milvusentity.ColumnInt64:
				if col.Name() == "doc_id" {
					h.DocID = col.Data()[i]
				}
			case *milvusentity.ColumnInt32:
				if col.Name() == "chunk_index" {
					h.ChunkIndex = col.Data()[i]
				}
			case *milvusentity.ColumnVarChar:
				switch col.Name() {
				case "source":
					h.Source = col.Data()[i]
				case "content":
					h.Content = col.Data()[i]
				}
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Retriever embeds a question and searches for its nearest chunks.
type Retriever struct {
	Embedder Embedder
	Searcher Searcher
	TopK     int
}

func (r *Retriever) Retrieve(ctx context.Context, question string, filters Filters) ([]Hit, error) {
	vec, err := EmbedQuestion(ctx, r.Embedder, question)
	if err != nil {
		return nil, err
	}
	return r.Searcher.Search(ctx, vec, r.TopK, filters)
}

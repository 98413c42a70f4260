package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docqa/config"
	"docqa/pkg/logger"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	maxSourceLen  = 1024
	maxContentLen = 65535
)

// ConnectMilvusWithRetry dials Milvus, which may take tens of seconds to boot.
func ConnectMilvusWithRetry(ctx context.Context, address string, attempts int, perAttemptTimeout, delay time.Duration) (milvusclient.Client, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		cli, err := milvusclient.NewClient(attemptCtx, milvusclient.Config{Address: address})
		cancel()
		if err == nil {
			return cli, nil
		}
		lastErr = err
		logger.Warn("%v: connect attempt %d/%d failed: %v", config.ModuleMilvus, i+1, attempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// MilvusStore writes chunk vectors into a single collection.
type MilvusStore struct {
	cli        milvusclient.Client
	collection string
	dim        int
	index      milvusIndex
}

type milvusIndex struct {
	metric         milvusentity.MetricType
	m              int
	efConstruction int
}

func NewMilvusStore(cli milvusclient.Client) *MilvusStore {
	cfg := config.Cfg.Milvus
	return &MilvusStore{
		cli:        cli,
		collection: cfg.Collection,
		dim:        cfg.Dimension,
		index: milvusIndex{
			metric:         milvusentity.MetricType(cfg.IndexHNSWConfig.MetricType),
			m:              cfg.IndexHNSWConfig.M,
			efConstruction: cfg.IndexHNSWConfig.EfConstruction,
		},
	}
}

func (s *MilvusStore) Collection() string { return s.collection }

// VectorID derives a deterministic primary key from the document and chunk position.
func VectorID(docID int64, chunkID int) int64 {
	return (docID << 20) + int64(chunkID)
}

// EnsureCollection creates and indexes the collection on first use, then loads it.
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.createCollection(ctx); err != nil {
			return err
		}
	}
	return s.cli.LoadCollection(ctx, s.collection, false)
}

func (s *MilvusStore) createCollection(ctx context.Context) error {
	schema := milvusentity.NewSchema().WithName(s.collection).WithDescription("document chunks")
	schema.WithField(milvusentity.NewField().WithName("id").WithDataType(milvusentity.FieldTypeInt64).WithIsPrimaryKey(true))
	schema.WithField(milvusentity.NewField().WithName("doc_id").WithDataType(milvusentity.FieldTypeInt64))
	schema.WithField(milvusentity.NewField().WithName("chunk_index").WithDataType(milvusentity.FieldTypeInt32))
	schema.WithField(milvusentity.NewField().WithName("source").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(maxSourceLen))
	schema.WithField(milvusentity.NewField().WithName("content").WithDataType(milvusentity.FieldTypeVarChar).WithMaxLength(maxContentLen))
	schema.WithField(milvusentity.NewField().WithName("embedding").WithDataType(milvusentity.FieldTypeFloatVector).WithDim(int64(s.dim)))

	if err := s.cli.CreateCollection(ctx, schema, 2); err != nil {
		return err
	}
	idx, err := milvusentity.NewIndexHNSW(s.index.metric, s.index.m, s.index.efConstruction)
	if err != nil {
		return err
	}
	if err := s.cli.CreateIndex(ctx, s.collection, "embedding", idx, false); err != nil {
		return err
	}
	logger.Info("%v: created collection %s", config.ModuleMilvus, s.collection)
	return nil
}

// Upsert inserts one vector per record and returns the primary keys in record order.
func (s *MilvusStore) Upsert(ctx context.Context, docID int64, records []Record, vectors [][]float32) ([]int64, error) {
	if len(records) != len(vectors) {
		return nil, fmt.Errorf("%d records but %d vectors", len(records), len(vectors))
	}
	if len(records) == 0 {
		return []int64{}, nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]int64, len(records))
	docIDs := make([]int64, len(records))
	chunkIdxs := make([]int32, len(records))
	sources := make([]string, len(records))
	contents := make([]string, len(records))
	for i, r := range records {
		ids[i] = VectorID(docID, r.ChunkID)
		docIDs[i] = docID
		chunkIdxs[i] = int32(r.ChunkID)
		sources[i] = truncateBytes(r.Source(), maxSourceLen)
		contents[i] = truncateBytes(r.Text, maxContentLen)
	}

	_, err := s.cli.Insert(ctx, s.collection, "",
		milvusentity.NewColumnInt64("id", ids),
		milvusentity.NewColumnInt64("doc_id", docIDs),
		milvusentity.NewColumnInt32("chunk_index", chunkIdxs),
		milvusentity.NewColumnVarChar("source", sources),
		milvusentity.NewColumnVarChar("content", contents),
		milvusentity.NewColumnFloatVector("embedding", s.dim, vectors),
	)
	if err != nil {
		return nil, err
	}
	if err := s.cli.Flush(ctx, s.collection, false); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByDocIDs removes every vector belonging to the given documents.
func (s *MilvusStore) DeleteByDocIDs(ctx context.Context, docIDs []int64) error {
	if len(docIDs) == 0 {
		return nil
	}
	exists, err := s.cli.HasCollection(ctx, s.collection)
	if err != nil || !exists {
		return err
	}
	return s.cli.Delete(ctx, s.collection, "", DocIDExpr(docIDs))
}

// DocIDExpr renders a boolean filter such as "doc_id in [1,2,3]".
func DocIDExpr(docIDs []int64) string {
	if len(docIDs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("doc_id in [")
	for i, id := range docIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", id)
	}
	b.WriteByte(']')
	return b.String()
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

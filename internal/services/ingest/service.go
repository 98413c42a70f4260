package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"docqa/config"
	"docqa/internal/chunker"
	coreingest "docqa/internal/core/ingest"
	"docqa/internal/database/model"
	"docqa/pkg/logger"
	"docqa/pkg/metrics"
	s3client "docqa/pkg/s3"

	"golang.org/x/sync/errgroup"
)

var ErrDocumentNotFound = errors.New("document not found")

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// VectorIndex stores one vector per chunk record.
type VectorIndex interface {
	Upsert(ctx context.Context, docID int64, records []coreingest.Record, vectors [][]float32) ([]int64, error)
	DeleteByDocIDs(ctx context.Context, docIDs []int64) error
	Collection() string
}

// Service runs the extract, chunk, embed and index pipeline for documents.
type Service struct {
	Repo      Repository
	Chunker   coreingest.Chunker
	Tokenizer chunker.Tokenizer
	Embedder  Embedder
	Index     VectorIndex
	DataDir   string
	BaseFiles []string
	Workers   int
}

// Result describes one processed document.
type Result struct {
	Document *model.Document
	Chunks   int
	Skipped  bool
}

// Register records the file at path, deduplicating by content hash.
// storageKey is the optional s3:// mirror of the file.
func (s *Service) Register(ctx context.Context, path, originalName, storageKey string) (*model.Document, error) {
	sha, err := fileSHA256(path)
	if err != nil {
		return nil, err
	}
	existing, err := s.Repo.FindDocumentBySHA(ctx, sha)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	doc := &model.Document{
		OriginalFilename: &originalName,
		FilePath:         &abs,
		Sha256:           sha,
		Status:           model.StatusUploaded,
		Base:             s.isBaseFile(filepath.Base(abs)),
		UploadedAt:       &now,
	}
	if storageKey != "" {
		doc.StorageKey = &storageKey
	}
	if err := s.Repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Process ingests one registered document. A ready document that already has
// chunks is skipped unless force is set. Any other run first clears what an earlier
// attempt left in the index, and a failed run drops its chunk rows and vectors so
// the next call retries from scratch.
func (s *Service) Process(ctx context.Context, doc *model.Document, force bool) (Result, error) {
	start := time.Now()
	fields := map[string]interface{}{"doc_id": doc.ID}

	exists, err := s.Repo.HasChunks(ctx, doc.ID)
	if err != nil {
		return Result{}, err
	}
	if exists && doc.Status == model.StatusReady && !force {
		logger.WithFields(fields).Info("ingest: chunks already exist; skip (no force)")
		metrics.DocumentsIngested.WithLabelValues("skipped").Inc()
		return Result{Document: doc, Skipped: true}, nil
	}
	if exists || doc.Status != model.StatusUploaded {
		if err := s.Index.DeleteByDocIDs(ctx, []int64{doc.ID}); err != nil {
			return Result{}, fmt.Errorf("delete old vectors: %w", err)
		}
	}

	s.setStatus(ctx, doc, model.StatusProcessing)
	n, err := s.run(ctx, doc)
	if err != nil {
		logger.Error(err, "%v: document %d failed", config.ModuleIngest, doc.ID)
		s.discard(ctx, doc.ID)
		s.setStatus(ctx, doc, model.StatusFailed)
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return Result{}, err
	}
	if err := s.Repo.UpdateDocumentStatus(ctx, doc.ID, model.StatusReady); err != nil {
		logger.Error(err, "%v: document %d indexed but status not saved", config.ModuleIngest, doc.ID)
		return Result{}, fmt.Errorf("mark ready: %w", err)
	}
	doc.Status = model.StatusReady

	metrics.DocumentsIngested.WithLabelValues("ready").Inc()
	metrics.ChunksPerDocument.Observe(float64(n))
	metrics.IngestDurationSeconds.Observe(time.Since(start).Seconds())
	fields["chunks"] = n
	fields["elapsed"] = time.Since(start).String()
	logger.WithFields(fields).Info("ingest: done")
	return Result{Document: doc, Chunks: n}, nil
}

func (s *Service) setStatus(ctx context.Context, doc *model.Document, status string) {
	if err := s.Repo.UpdateDocumentStatus(ctx, doc.ID, status); err != nil {
		logger.Error(err, "%v: document %d status %s not saved", config.ModuleIngest, doc.ID, status)
	}
	doc.Status = status
}

// discard removes the partial output of a failed run.
func (s *Service) discard(ctx context.Context, docID int64) {
	if err := s.Repo.ReplaceChunks(ctx, docID, nil); err != nil {
		logger.Error(err, "%v: document %d chunk rows not cleared", config.ModuleIngest, docID)
	}
	if err := s.Index.DeleteByDocIDs(ctx, []int64{docID}); err != nil {
		logger.Error(err, "%v: document %d vectors not cleared", config.ModuleIngest, docID)
	}
}

// ProcessByID loads a registered document and processes it.
func (s *Service) ProcessByID(ctx context.Context, docID int64, force bool) (Result, error) {
	doc, err := s.Repo.GetDocument(ctx, docID)
	if err != nil {
		return Result{}, err
	}
	if doc == nil {
		return Result{}, fmt.Errorf("%w: %d", ErrDocumentNotFound, docID)
	}
	return s.Process(ctx, doc, force)
}

func (s *Service) run(ctx context.Context, doc *model.Document) (int, error) {
	path, cleanup, err := s.localPath(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("fetch file: %w", err)
	}
	defer cleanup()

	docs, err := coreingest.Extract(path)
	if err != nil {
		return 0, err
	}
	if doc.FilePath != nil {
		for _, d := range docs {
			d.Metadata["source"] = *doc.FilePath
		}
	}
	records, err := coreingest.BuildRecords(docs, s.Chunker)
	if err != nil {
		return 0, err
	}
	logger.WithFields(map[string]interface{}{
		"doc_id": doc.ID,
		"chunks": len(records),
	}).Info("ingest: chunks built")

	if len(records) == 0 {
		return 0, s.Repo.ReplaceChunks(ctx, doc.ID, nil)
	}

	inputs := make([]string, len(records))
	for i, r := range records {
		inputs[i] = r.Text
	}
	vectors, err := s.Embedder.Embed(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(records) {
		return 0, errors.New("embedding count mismatch")
	}
	ids, err := s.Index.Upsert(ctx, doc.ID, records, vectors)
	if err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}
	if err := s.Repo.ReplaceChunks(ctx, doc.ID, s.chunkRows(doc.ID, records, ids)); err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}
	return len(records), nil
}

// localPath prefers the local copy and falls back to the S3 mirror.
func (s *Service) localPath(ctx context.Context, doc *model.Document) (string, func(), error) {
	if doc.FilePath != nil {
		if _, err := os.Stat(*doc.FilePath); err == nil {
			return *doc.FilePath, func() {}, nil
		}
	}
	if doc.StorageKey != nil {
		return coreingest.FetchToLocalTemp(ctx, *doc.StorageKey)
	}
	return "", func() {}, fmt.Errorf("document %d has no readable file", doc.ID)
}

func (s *Service) chunkRows(docID int64, records []coreingest.Record, ids []int64) []model.Chunk {
	rows := make([]model.Chunk, 0, len(records))
	for i, r := range records {
		preview := buildContentPreview(r.Text, 512)
		row := model.Chunk{
			DocumentID:       docID,
			ChunkIndex:       int32(r.ChunkID),
			Source:           r.Source(),
			Content:          r.Text,
			ContentPreview:   &preview,
			MilvusCollection: s.Index.Collection(),
			ContentHash:      hashContent(r.Text),
		}
		if i < len(ids) {
			row.MilvusID = ids[i]
		}
		if s.Tokenizer != nil {
			if n, err := s.Tokenizer.CountTokens(r.Text); err == nil {
				tc := int32(n)
				row.TokenCount = &tc
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// LoadAll registers and ingests every supported file in DataDir in parallel.
// A failing file is logged and skipped; the count of ready documents is returned.
func (s *Service) LoadAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		return 0, err
	}

	var ready atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for _, e := range entries {
		if e.IsDir() || !coreingest.Supported(filepath.Ext(e.Name())) {
			continue
		}
		path := filepath.Join(s.DataDir, e.Name())
		g.Go(func() error {
			logger.Info("%v: loading document %s", config.ModuleIngest, path)
			doc, err := s.Register(gctx, path, filepath.Base(path), "")
			if err != nil {
				logger.Error(err, "%v: register %s failed", config.ModuleIngest, path)
				return nil
			}
			if _, err := s.Process(gctx, doc, false); err != nil {
				return nil
			}
			ready.Add(1)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return int(ready.Load()), err
	}
	return int(ready.Load()), nil
}

// RemoveUploaded deletes every non-base document with its vectors, rows and files,
// then removes any other non-base file left in DataDir.
func (s *Service) RemoveUploaded(ctx context.Context) (int, error) {
	docs, err := s.Repo.ListRemovableDocuments(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if err := s.Index.DeleteByDocIDs(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	for _, d := range docs {
		if d.StorageKey != nil && s3client.Enabled() {
			if err := s3client.DeleteObject(ctx, *d.StorageKey); err != nil {
				logger.Warn("%v: delete %s failed: %v", config.ModuleClear, *d.StorageKey, err)
			}
		}
		if err := s.Repo.DeleteDocument(ctx, d.ID); err != nil {
			return 0, err
		}
	}

	entries, err := os.ReadDir(s.DataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return len(docs), err
	}
	for _, e := range entries {
		if e.IsDir() || s.isBaseFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.DataDir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("%v: could not delete %s: %v", config.ModuleClear, e.Name(), err)
			continue
		}
		logger.Info("%v: deleted %s", config.ModuleClear, e.Name())
	}
	return len(docs), nil
}

// HasIndexedDocuments reports whether at least one document is ready for retrieval.
func (s *Service) HasIndexedDocuments(ctx context.Context) (bool, error) {
	n, err := s.Repo.CountReadyDocuments(ctx)
	return n > 0, err
}

func (s *Service) isBaseFile(name string) bool {
	return slices.Contains(s.BaseFiles, name)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

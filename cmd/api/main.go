package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docqa/config"
	chatapi "docqa/internal/api/chat"
	"docqa/internal/api/healthcheck"
	ingestapi "docqa/internal/api/ingest"
	"docqa/internal/api/reset"
	retrieverapi "docqa/internal/api/retriever"
	"docqa/internal/api/upload"
	"docqa/internal/chunker"
	"docqa/internal/core/chat"
	coreingest "docqa/internal/core/ingest"
	"docqa/internal/core/llm"
	"docqa/internal/core/memory"
	"docqa/internal/core/retriever"
	"docqa/internal/database"
	"docqa/internal/middleware"
	"docqa/internal/services/ingest"
	"docqa/pkg/logger"
	s3client "docqa/pkg/s3"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yml"
	}
	if err := config.Init(path); err != nil {
		logger.Fatal(err, "config error")
	}
	if err := logger.SetLevel(string(config.Cfg.LogLevel)); err != nil {
		logger.Warn("%v: %v", config.ModuleSetting, err)
	}

	if err := database.Init(); err != nil {
		logger.Fatal(err, "%v: init failed", config.ModuleDatabase)
	}

	// Milvus may take tens of seconds to boot
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cli, err := coreingest.ConnectMilvusWithRetry(ctx, config.Cfg.Milvus.Address, 20, 5*time.Second, 2*time.Second)
	if err != nil {
		logger.Fatal(err, "%v: connect error", config.ModuleMilvus)
	}
	defer cli.Close()
	logger.Info("%v: connected to %s", config.ModuleMilvus, config.Cfg.Milvus.Address)

	tokenizer := newTokenizer(config.Cfg.Chunking.TokenizerModel)
	ck, err := chunker.New(chunker.Config{
		MinChunkSize: config.Cfg.Chunking.MinChunkSize,
		MaxChunkSize: config.Cfg.Chunking.MaxChunkSize,
		ChunkOverlap: config.Cfg.Chunking.ChunkOverlap,
	}, tokenizer, chunker.UnicodeSentenceSplitter{})
	if err != nil {
		logger.Fatal(err, "%v: invalid chunking config", config.ModuleChunker)
	}

	oa := config.Cfg.OpenAI
	embedder, err := coreingest.NewOpenAIEmbedder(oa.Key, oa.BaseURL, oa.EmbeddingModel)
	if err != nil {
		logger.Fatal(err, "%v: embedder", config.ModuleOpenAI)
	}
	completer, err := llm.NewOpenAI(oa.Key, oa.BaseURL, oa.Model)
	if err != nil {
		logger.Fatal(err, "%v: completion client", config.ModuleOpenAI)
	}

	store := coreingest.NewMilvusStore(cli)
	if err := store.EnsureCollection(ctx); err != nil {
		logger.Fatal(err, "%v: ensure collection %s", config.ModuleMilvus, store.Collection())
	}
	searcher := retriever.NewMilvusSearcher(cli)

	svc := &ingest.Service{
		Repo:      ingest.GormRepository{},
		Chunker:   ck,
		Tokenizer: tokenizer,
		Embedder:  embedder,
		Index:     store,
		DataDir:   config.Cfg.Ingest.DataDir,
		BaseFiles: config.Cfg.Ingest.BaseFiles,
		Workers:   config.Cfg.Ingest.Workers,
	}
	if err := os.MkdirAll(svc.DataDir, 0o755); err != nil {
		logger.Fatal(err, "%v: data dir", config.ModuleIngest)
	}
	if n, err := svc.LoadAll(ctx); err != nil {
		logger.Error(err, "%v: startup load interrupted", config.ModuleIngest)
	} else if n == 0 {
		logger.Warn("%v: no documents found in %s", config.ModuleIngest, svc.DataDir)
	} else {
		logger.Info("%v: %d documents ready", config.ModuleIngest, n)
	}

	sessions, err := memory.NewStore(config.Cfg.Memory.MaxSessions)
	if err != nil {
		logger.Fatal(err, "%v: session store", config.ModuleMemory)
	}
	chain := &chat.Chain{
		Retriever: &retriever.Retriever{Embedder: embedder, Searcher: searcher, TopK: config.Cfg.Retrieval.TopK},
		LLM:       completer,
		Summarizer: &memory.Summarizer{
			LLM:     completer,
			Options: llm.Options{Temperature: config.Cfg.Memory.Temperature, MaxTokens: config.Cfg.Memory.MaxTokens},
		},
		Options: llm.Options{Temperature: config.Cfg.Retrieval.Temperature, MaxTokens: config.Cfg.Retrieval.MaxTokens},
	}

	var mirror upload.MirrorFunc
	if s3client.Enabled() {
		mirror = s3client.PutFile
	}

	app := fiber.New(fiber.Config{
		AppName:     config.Cfg.Server.AppName,
		BodyLimit:   config.Cfg.Server.BodyLimit,
		Concurrency: config.Cfg.Server.Concurrency,
	})
	middleware.Register(app)

	// routes
	healthcheck.RegisterRoutes(app, &healthcheck.Handler{
		PingDB:     database.Ping,
		Milvus:     cli,
		Collection: store.Collection(),
	})
	upload.RegisterRoutes(app, &upload.Handler{
		Ingestor:     svc,
		Chain:        chain,
		Sessions:     sessions,
		DataDir:      svc.DataDir,
		AutoQuestion: config.Cfg.Retrieval.AutoQuestion,
		Mirror:       mirror,
	})
	chatapi.RegisterRoutes(app, &chatapi.Handler{
		Chain:    chain,
		Sessions: sessions,
		Index:    svc,
		Log:      chatapi.GormMessageLog{},
	})
	reset.RegisterRoutes(app, &reset.Handler{Sessions: sessions, Remover: svc})
	ingestapi.RegisterRoutes(app, &ingestapi.Handler{Service: svc})
	retrieverapi.RegisterRoutes(app, &retrieverapi.Handler{Embedder: embedder, Searcher: searcher})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		<-ctx.Done()
		logger.Info("%v: shutting down", config.ModuleServer)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error(err, "%v: shutdown", config.ModuleServer)
		}
	}()

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	if err := app.Listen(addr); err != nil {
		logger.Error(err, "server error")
	}
}

// newTokenizer prefers the model's BPE vocabulary and falls back to word counts
// when the vocabulary cannot be loaded (tiktoken-go downloads it on first use).
func newTokenizer(model string) chunker.Tokenizer {
	tc, err := chunker.NewTiktokenCounter(model)
	if err != nil {
		logger.Warn("%v: tiktoken unavailable (%v); counting words instead", config.ModuleChunker, err)
		return chunker.WordCounter{}
	}
	logger.Info("%v: counting tokens with %s", config.ModuleChunker, tc.Encoding())
	return tc
}

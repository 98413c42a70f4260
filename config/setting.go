package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serverConfig struct {
	Port        int    `koanf:"port" validate:"required"`
	Mode        string `koanf:"mode" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"required"`
	BodyLimit   int    `koanf:"body_limit" validate:"required"`
	AppName     string `koanf:"app_name" validate:"required"`
	MaxConns    int    `koanf:"max_conns" validate:"gte=0"`
}

type logLevel string

const (
	Debug logLevel = "debug"
	Info  logLevel = "info"
	Warn  logLevel = "warn"
	Error logLevel = "error"
	Fatal logLevel = "fatal"
	Panic logLevel = "panic"
)

type Module string

const (
	ModuleMilvus    Module = "milvus"
	ModuleIngest    Module = "ingest"
	ModuleDatabase  Module = "database"
	ModuleOpenAI    Module = "openai"
	ModuleS3        Module = "s3"
	ModuleCors      Module = "cors"
	ModuleServer    Module = "server"
	ModuleSetting   Module = "setting"
	ModuleUpload    Module = "upload"
	ModuleRetriever Module = "retriever"
	ModuleChat      Module = "chat"
	ModuleClear     Module = "clear"
	ModuleChunker   Module = "chunker"
	ModuleMemory    Module = "memory"
)

type databaseConfig struct {
	Host         string   `koanf:"host" validate:"required"`
	Port         int      `koanf:"port" validate:"required"`
	User         string   `koanf:"user" validate:"required"`
	Password     string   `koanf:"password"`
	Name         string   `koanf:"name" validate:"required"`
	MaxIdleConns int      `koanf:"max_idle_conns" validate:"required"`
	MaxOpenConns int      `koanf:"max_open_conns" validate:"required"`
	MaxLifetime  int      `koanf:"max_lifetime" validate:"required"`
	Replicas     []string `koanf:"replicas"`
}

type openaiConfig struct {
	Key            string `koanf:"key"`
	BaseURL        string `koanf:"base_url"`
	Model          string `koanf:"model" validate:"required"`
	EmbeddingModel string `koanf:"embedding_model" validate:"required"`
}

type corsConfig struct {
	AllowOrigins []string `koanf:"allow_origins" validate:"required"`
	AllowMethods []string `koanf:"allow_methods" validate:"required"`
	AllowHeaders []string `koanf:"allow_headers" validate:"required"`
}

type milvusConfig struct {
	Address         string          `koanf:"address" validate:"required"`
	Collection      string          `koanf:"collection" validate:"required"`
	Dimension       int             `koanf:"dimension" validate:"required"`
	IndexHNSWConfig indexHNSWConfig `koanf:"index_hnsw_config"`
}

type indexHNSWConfig struct {
	MetricType     string `koanf:"metric_type" validate:"required"`
	M              int    `koanf:"m" validate:"required"`
	EfConstruction int    `koanf:"ef_construction" validate:"required"`
	Ef             int    `koanf:"ef" validate:"required"`
}

type s3Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
	Bucket    string `koanf:"bucket"`
}

// ChunkingConfig holds the token-size policy applied to every extracted document.
// MinChunkSize is carried through but not enforced by the chunker.
type ChunkingConfig struct {
	MinChunkSize   int    `koanf:"min_chunk_size" validate:"gte=0"`
	MaxChunkSize   int    `koanf:"max_chunk_size" validate:"gt=0"`
	ChunkOverlap   int    `koanf:"chunk_overlap" validate:"gte=0"`
	TokenizerModel string `koanf:"tokenizer_model" validate:"required"`
}

type ingestConfig struct {
	DataDir   string   `koanf:"data_dir" validate:"required"`
	BaseFiles []string `koanf:"base_files"`
	Workers   int      `koanf:"workers" validate:"gt=0"`
}

type retrievalConfig struct {
	TopK         int     `koanf:"top_k" validate:"gt=0,lte=64"`
	Temperature  float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `koanf:"max_tokens" validate:"gt=0"`
	AutoQuestion string  `koanf:"auto_question" validate:"required"`
}

type memoryConfig struct {
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gt=0"`
	MaxSessions int     `koanf:"max_sessions" validate:"gt=0"`
}

type config struct {
	Server    serverConfig    `koanf:"server"`
	Database  databaseConfig  `koanf:"database"`
	OpenAI    openaiConfig    `koanf:"openai"`
	LogLevel  logLevel        `koanf:"log_level"`
	Dns       string          `koanf:"dns"`
	S3        s3Config        `koanf:"s3"`
	Cors      corsConfig      `koanf:"cors"`
	Milvus    milvusConfig    `koanf:"milvus"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Ingest    ingestConfig    `koanf:"ingest"`
	Retrieval retrievalConfig `koanf:"retrieval"`
	Memory    memoryConfig    `koanf:"memory"`
}

func buildMySQLDSN(cfg databaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)
}

var defaultConfig = config{
	Server: serverConfig{
		Port:        8000,
		Mode:        "release",
		Concurrency: 256 * 1024,
		BodyLimit:   50 * 1024 * 1024,
		AppName:     "docqa",
		MaxConns:    512,
	},
	Database: databaseConfig{
		Host:         "127.0.0.1",
		Port:         3306,
		User:         "root",
		Password:     "",
		Name:         "docqa",
		MaxIdleConns: 10,
		MaxOpenConns: 50,
		MaxLifetime:  30,
	},
	OpenAI: openaiConfig{
		Key:            "",
		Model:          "gpt-3.5-turbo",
		EmbeddingModel: "text-embedding-ada-002",
	},
	LogLevel: Info,
	S3: s3Config{
		Region: "us-east-1",
	},
	Cors: corsConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Session-ID"},
	},
	Milvus: milvusConfig{
		Address:    "localhost:19530",
		Collection: "chunks",
		Dimension:  1536,
		IndexHNSWConfig: indexHNSWConfig{
			MetricType:     "COSINE",
			M:              16,
			EfConstruction: 200,
			Ef:             64,
		},
	},
	Chunking: ChunkingConfig{
		MinChunkSize:   256,
		MaxChunkSize:   512,
		ChunkOverlap:   50,
		TokenizerModel: "gpt-3.5-turbo",
	},
	Ingest: ingestConfig{
		DataDir:   "data",
		BaseFiles: []string{"doc.docx"},
		Workers:   4,
	},
	Retrieval: retrievalConfig{
		TopK:         3,
		Temperature:  0.2,
		MaxTokens:    1024,
		AutoQuestion: "What is this document about?",
	},
	Memory: memoryConfig{
		Temperature: 0,
		MaxTokens:   1500,
		MaxSessions: 1024,
	},
}

var Cfg = defaultConfig

// Init loads defaults, then the yaml file at path, then APP_* environment variables.
// A .env file in the working directory is loaded into the environment first when present.
func Init(path string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%v: load .env: %w", ModuleSetting, err)
	}

	k := koanf.New(".")
	cfg := defaultConfig

	// file
	if e := k.Load(file.Provider(path), yaml.Parser()); e != nil && !errors.Is(e, os.ErrNotExist) {
		return fmt.Errorf("%v: load %s: %w", ModuleSetting, path, e)
	}

	// env APP_SERVER__PORT -> server.port
	if e := k.Load(env.Provider("APP_", ".", envKey), nil); e != nil {
		return fmt.Errorf("%v: load env: %w", ModuleSetting, e)
	}

	// bind
	if e := k.Unmarshal("", &cfg); e != nil {
		return fmt.Errorf("%v: unmarshal: %w", ModuleSetting, e)
	}

	if cfg.Dns == "" {
		cfg.Dns = buildMySQLDSN(cfg.Database)
	}
	if cfg.OpenAI.Key == "" {
		cfg.OpenAI.Key = os.Getenv("OPENAI_API_KEY")
	}

	if err := validate(cfg); err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

// envKey maps APP_CHUNKING__MAX_CHUNK_SIZE to chunking.max_chunk_size.
// A double underscore separates sections so single underscores survive inside keys.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))
	return strings.ReplaceAll(key, "__", ".")
}

func validate(cfg config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%v: config validation failed: %w", ModuleSetting, err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%v: config validation failed:\n", ModuleSetting))
	for _, e := range errs {
		sb.WriteString(
			fmt.Sprintf("  - %s: failed '%s' (value: %v)\n", e.Namespace(), e.Tag(), e.Value()),
		)
	}
	return errors.New(sb.String())
}

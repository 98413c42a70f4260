package model

import "time"

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is one uploaded or discovered source file.
type Document struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	OriginalFilename *string    `gorm:"column:original_filename;type:varchar(512)" json:"original_filename"`
	FilePath         *string    `gorm:"column:file_path;type:varchar(1024)" json:"file_path"`
	StorageKey       *string    `gorm:"column:storage_key;type:varchar(1024)" json:"storage_key"`
	Sha256           string     `gorm:"column:sha256;type:char(64);uniqueIndex" json:"sha256"`
	Status           string     `gorm:"column:status;type:varchar(32);not null;default:uploaded" json:"status"`
	Base             bool       `gorm:"column:base;not null;default:false" json:"base"`
	UploadedAt       *time.Time `gorm:"column:uploaded_at" json:"uploaded_at"`
}

func (*Document) TableName() string { return "documents" }

// Chunk mirrors one vector stored in Milvus.
type Chunk struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	DocumentID       int64   `gorm:"column:document_id;not null;index" json:"document_id"`
	ChunkIndex       int32   `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Source           string  `gorm:"column:source;type:varchar(1024);not null" json:"source"`
	Content          string  `gorm:"column:content;type:mediumtext;not null" json:"content"`
	ContentPreview   *string `gorm:"column:content_preview;type:text" json:"content_preview"`
	TokenCount       *int32  `gorm:"column:token_count" json:"token_count"`
	MilvusCollection string  `gorm:"column:milvus_collection;type:varchar(255);not null" json:"milvus_collection"`
	MilvusID         int64   `gorm:"column:milvus_id;not null" json:"milvus_id"`
	ContentHash      string  `gorm:"column:content_hash;type:char(64);not null" json:"content_hash"`
}

func (*Chunk) TableName() string { return "chunks" }

// Message is one persisted conversation turn, keyed by session.
type Message struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	SessionID  string     `gorm:"column:session_id;type:varchar(64);not null;index" json:"session_id"`
	Role       string     `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Content    string     `gorm:"column:content;type:mediumtext;not null" json:"content"`
	DocumentID *int64     `gorm:"column:document_id" json:"document_id"`
	CreatedAt  *time.Time `gorm:"column:created_at" json:"created_at"`
}

func (*Message) TableName() string { return "messages" }

package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"docqa/internal/database"
	"docqa/internal/database/model"

	"gorm.io/gorm"
)

// Repository persists documents and their chunk rows.
type Repository interface {
	FindDocumentBySHA(ctx context.Context, sha string) (*model.Document, error)
	GetDocument(ctx context.Context, docID int64) (*model.Document, error)
	CreateDocument(ctx context.Context, doc *model.Document) error
	UpdateDocumentStatus(ctx context.Context, docID int64, status string) error
	HasChunks(ctx context.Context, docID int64) (bool, error)
	ReplaceChunks(ctx context.Context, docID int64, rows []model.Chunk) error
	ListRemovableDocuments(ctx context.Context) ([]model.Document, error)
	DeleteDocument(ctx context.Context, docID int64) error
	CountReadyDocuments(ctx context.Context) (int64, error)
}

// GormRepository is the MySQL-backed Repository.
type GormRepository struct{}

func (GormRepository) FindDocumentBySHA(ctx context.Context, sha string) (*model.Document, error) {
	return database.FindFirst[model.Document](ctx, "sha256 = ?", sha)
}

func (GormRepository) GetDocument(ctx context.Context, docID int64) (*model.Document, error) {
	return database.FindFirst[model.Document](ctx, "id = ?", docID)
}

func (GormRepository) CreateDocument(ctx context.Context, doc *model.Document) error {
	return database.CreateEntity(ctx, doc)
}

func (GormRepository) UpdateDocumentStatus(ctx context.Context, docID int64, status string) error {
	return database.UpdateEntityByID[model.Document](ctx, docID, map[string]interface{}{"status": status})
}

func (GormRepository) HasChunks(ctx context.Context, docID int64) (bool, error) {
	n, err := database.Count[model.Chunk](ctx, "document_id = ?", docID)
	return n > 0, err
}

func (GormRepository) ReplaceChunks(ctx context.Context, docID int64, rows []model.Chunk) error {
	return database.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 200).Error
	})
}

func (GormRepository) ListRemovableDocuments(ctx context.Context) ([]model.Document, error) {
	return database.FindAll[model.Document](ctx, "base = ?", false)
}

func (GormRepository) DeleteDocument(ctx context.Context, docID int64) error {
	return database.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", docID).Delete(&model.Document{}).Error
	})
}

func (GormRepository) CountReadyDocuments(ctx context.Context) (int64, error) {
	return database.Count[model.Document](ctx, "status = ?", model.StatusReady)
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// buildContentPreview sanitizes the preview to valid UTF-8 printable characters
// and truncates by runes to avoid splitting multi-byte sequences.
func buildContentPreview(s string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if r == '\uFEFF' {
			continue
		}
		if r != '\n' && r != '\t' && r != '\r' && !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		count++
		if count >= maxRunes {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

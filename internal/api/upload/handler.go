package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/api/session"
	"docqa/internal/core/chat"
	coreingest "docqa/internal/core/ingest"
	"docqa/internal/core/memory"
	"docqa/internal/core/retriever"
	"docqa/internal/database/model"
	"docqa/internal/services/ingest"
	"docqa/pkg/apperror"
	"docqa/pkg/apperror/status"
	"docqa/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Ingestor registers and indexes a stored file; *ingest.Service satisfies it.
type Ingestor interface {
	Register(ctx context.Context, path, originalName, storageKey string) (*model.Document, error)
	Process(ctx context.Context, doc *model.Document, force bool) (ingest.Result, error)
}

// Asker answers one question against the index; *chat.Chain satisfies it.
type Asker interface {
	Ask(ctx context.Context, conv *memory.Conversation, req chat.Request) (chat.Response, error)
}

// MirrorFunc copies a stored upload to object storage and returns its location.
type MirrorFunc func(ctx context.Context, key, path, contentType string) (string, error)

type Handler struct {
	Ingestor     Ingestor
	Chain        Asker
	Sessions     session.Store
	DataDir      string
	AutoQuestion string
	Mirror       MirrorFunc
	Timeout      time.Duration
}

type uploadResponse struct {
	Message         string                `json:"message"`
	DocID           int64                 `json:"doc_id"`
	AutoQuestion    string                `json:"auto_question"`
	AutoAnswer      string                `json:"auto_answer"`
	SourceDocuments []chat.SourceDocument `json:"source_documents"`
}

// allowedTypes lists the sniffed MIME types accepted per extension. Office files
// that carry no detectable marker part are reported as plain zip archives.
var allowedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", "application/zip"},
	".txt":  {"text/plain"},
}

func (h *Handler) HandleUpload(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		return apperror.BadRequest(config.ModuleUpload, c, status.MissingParams, "file is required")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !coreingest.Supported(ext) {
		return apperror.BadRequest(config.ModuleUpload, c, status.UnsupportedFileType,
			fmt.Sprintf("unsupported file type %q: expected .pdf, .docx, .pptx or .txt", ext))
	}
	if fh.Size == 0 {
		return apperror.BadRequest(config.ModuleUpload, c, status.EmptyFile, "empty file")
	}

	if err := os.MkdirAll(h.DataDir, 0o755); err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadStoreFailed, err))
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	path := filepath.Join(h.DataDir, name)
	if err := c.SaveFile(fh, path); err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadStoreFailed, err))
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadStoreFailed, err))
	}
	if !matchesExtension(mt, ext) {
		_ = os.Remove(path)
		return apperror.BadRequest(config.ModuleUpload, c, status.UnsupportedFileType,
			fmt.Sprintf("content of %s looks like %s", fh.Filename, mt.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout())
	defer cancel()

	var storageKey string
	if h.Mirror != nil {
		storageKey, err = h.Mirror(ctx, "documents/"+name, path, mt.String())
		if err != nil {
			logger.Warn("%v: mirror %s to object storage failed: %v", config.ModuleUpload, name, err)
			storageKey = ""
		}
	}

	doc, err := h.Ingestor.Register(ctx, path, fh.Filename, storageKey)
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadIngestFailed, err))
	}
	if _, err := h.Ingestor.Process(ctx, doc, false); err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadIngestFailed, err))
	}

	h.Sessions.Reset(session.ID(c))

	// The auto question runs on a throwaway conversation so it never leaks into the session memory.
	resp, err := h.Chain.Ask(ctx, &memory.Conversation{}, chat.Request{
		Question: h.AutoQuestion,
		Filters:  retriever.Filters{DocIDs: []int64{doc.ID}},
	})
	if err != nil {
		return apperror.InternalError(config.ModuleUpload, c, status.New(status.UploadAutoAskFailed, err))
	}

	logger.Info("%v: %s stored as %s (doc %d)", config.ModuleUpload, fh.Filename, name, doc.ID)
	return c.JSON(uploadResponse{
		Message:         fmt.Sprintf("File '%s' added.", fh.Filename),
		DocID:           doc.ID,
		AutoQuestion:    h.AutoQuestion,
		AutoAnswer:      resp.Answer,
		SourceDocuments: resp.SourceDocuments,
	})
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 5 * time.Minute
}

func matchesExtension(mt *mimetype.MIME, ext string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, allowed := range allowedTypes[ext] {
			if m.Is(allowed) {
				return true
			}
		}
	}
	return false
}

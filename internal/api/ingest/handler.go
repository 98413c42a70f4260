package ingest

import (
	"context"
	"strconv"
	"time"

	"docqa/config"
	"docqa/internal/services/ingest"
	"docqa/pkg/apperror"
	"docqa/pkg/apperror/status"
	"docqa/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// Processor re-runs ingestion for a stored document; *ingest.Service satisfies it.
type Processor interface {
	ProcessByID(ctx context.Context, docID int64, force bool) (ingest.Result, error)
}

type Handler struct {
	Service Processor
	Timeout time.Duration
}

type ingestResponse struct {
	DocID int64 `json:"doc_id"`
	Force bool  `json:"force"`
}

func (h *Handler) HandleIngest(c fiber.Ctx) error {
	trackingID := c.Get(fiber.HeaderXRequestID)

	docIDStr := c.Params("docID")
	if docIDStr == "" {
		return apperror.BadRequest(config.ModuleIngest, c, status.MissingParams, "docID is required")
	}
	docID, err := strconv.ParseInt(docIDStr, 10, 64)
	if err != nil || docID <= 0 {
		return apperror.BadRequest(config.ModuleIngest, c, status.MissingParams, "invalid docID")
	}

	q := c.Query("force")
	force := q == "1" || q == "true" || q == "yes"

	// Fire and forget
	go h.run(docID, force)

	return apperror.Success(config.ModuleIngest, c, apperror.FiberSuccessMessage{
		Code:       status.Accepted,
		Message:    "ingest started",
		TrackingID: trackingID,
		Data:       ingestResponse{DocID: docID, Force: force},
	})
}

func (h *Handler) run(docID int64, force bool) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := h.Service.ProcessByID(ctx, docID, force); err != nil {
		logger.Error(err, "%v: background ingest of document %d failed", config.ModuleIngest, docID)
	}
}

package reset

import (
	"context"
	"time"

	"docqa/config"
	"docqa/internal/api/session"
	"docqa/pkg/apperror"
	"docqa/pkg/apperror/status"
	"docqa/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// Remover drops every uploaded document and keeps the base set; *ingest.Service satisfies it.
type Remover interface {
	RemoveUploaded(ctx context.Context) (int, error)
}

type Handler struct {
	Sessions session.Store
	Remover  Remover
}

type clearResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

func (h *Handler) HandleClear(c fiber.Ctx) error {
	sid := session.ID(c)
	h.Sessions.Reset(sid)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := h.Remover.RemoveUploaded(ctx)
	if err != nil {
		return apperror.InternalError(config.ModuleClear, c, status.New(status.ClearInternal, err))
	}

	logger.Info("%v: session %s cleared, %d uploaded documents removed", config.ModuleClear, sid, n)
	return c.JSON(clearResponse{
		Message: "Chat cleared. Base files kept.",
		Removed: n,
	})
}

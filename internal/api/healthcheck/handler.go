package healthcheck

import (
	"docqa/config"
	"docqa/pkg/apperror"

	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// VectorStore is the slice of the Milvus client the probe needs.
type VectorStore interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
}

type Handler struct {
	PingDB     func(ctx context.Context) error
	Milvus     VectorStore
	Collection string
}

func ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

func (h *Handler) DatabaseHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.PingDB(ctx); err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	return c.SendString("ok")
}

func (h *Handler) MilvusHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := h.Milvus.HasCollection(ctx, h.Collection); err != nil {
		return apperror.InternalError(config.ModuleMilvus, c, err)
	}
	return c.SendString("ok")
}

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/api/session"
	corechat "docqa/internal/core/chat"
	"docqa/internal/core/memory"
	"docqa/pkg/apperror"
	"docqa/pkg/apperror/status"
	"docqa/pkg/logger"
	"docqa/pkg/metrics"

	"github.com/gofiber/fiber/v3"
)

// Asker answers one question against the index; *corechat.Chain satisfies it.
type Asker interface {
	Ask(ctx context.Context, conv *memory.Conversation, req corechat.Request) (corechat.Response, error)
}

// IndexState reports whether anything can be retrieved yet.
type IndexState interface {
	HasIndexedDocuments(ctx context.Context) (bool, error)
}

type Handler struct {
	Chain    Asker
	Sessions session.Store
	Index    IndexState
	Log      MessageLog
	Timeout  time.Duration
}

func (h *Handler) HandleChat(c fiber.Ctx) error {
	start := time.Now()
	result := "error"
	defer func() {
		metrics.ChatRequests.WithLabelValues(result).Inc()
		metrics.ChatDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var req corechat.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		result = "bad_request"
		return apperror.BadRequest(config.ModuleChat, c, status.InvalidRequestBody, err.Error())
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		result = "bad_request"
		return apperror.BadRequest(config.ModuleChat, c, status.EmptyQuestion, "question is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout())
	defer cancel()

	ready, err := h.Index.HasIndexedDocuments(ctx)
	if err != nil {
		return apperror.InternalError(config.ModuleChat, c, status.New(status.ChatInternal, err))
	}
	if !ready {
		result = "unavailable"
		return apperror.ServiceUnavailable(config.ModuleChat, c, status.NoDocumentsIndexed,
			"no documents are indexed yet; upload a document first")
	}

	sid := session.ID(c)
	resp, err := h.Chain.Ask(ctx, h.Sessions.Get(sid), req)
	if err != nil {
		if errors.Is(err, corechat.ErrEmptyQuestion) {
			result = "bad_request"
			return apperror.BadRequest(config.ModuleChat, c, status.EmptyQuestion, err.Error())
		}
		return apperror.InternalError(config.ModuleChat, c, status.New(status.ChatAnswerFailed, err))
	}
	resp.Answer = strings.TrimSpace(resp.Answer)

	if h.Log != nil {
		if err := h.Log.SaveTurn(ctx, sid, req.Question, resp.Answer); err != nil {
			logger.Error(err, "%v: save transcript for session %s failed", config.ModuleChat, sid)
		}
	}

	result = "ok"
	return c.JSON(resp)
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 2 * time.Minute
}

package retriever

import (
	"context"
	"strconv"
	"strings"
	"time"

	"docqa/config"
	"docqa/internal/core/retriever"
	"docqa/pkg/apperror"
	"docqa/pkg/apperror/status"

	"github.com/gofiber/fiber/v3"
)

type Handler struct {
	Embedder retriever.Embedder
	Searcher retriever.Searcher
}

type searchResponse struct {
	Hits []retriever.Hit `json:"hits"`
}

func (h *Handler) HandleSearch(c fiber.Ctx) error {
	trackingID := c.Get(fiber.HeaderXRequestID)

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return apperror.BadRequest(config.ModuleRetriever, c, status.MissingParams, "q is required")
	}
	topK := config.Cfg.Retrieval.TopK
	if topKStr := c.Query("top_k"); topKStr != "" {
		if v, err := strconv.Atoi(topKStr); err == nil && v > 0 && v <= 64 {
			topK = v
		}
	}
	var docIDs []int64
	if ids := strings.TrimSpace(c.Query("doc_ids")); ids != "" {
		parts := strings.Split(ids, ",")
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if id, err := strconv.ParseInt(p, 10, 64); err == nil {
				docIDs = append(docIDs, id)
			}
		}
	}

	// Embedding is a network call; give it a longer budget than the search.
	embedCtx, cancelEmbed := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelEmbed()
	vec, err := retriever.EmbedQuestion(embedCtx, h.Embedder, q)
	if err != nil {
		return apperror.InternalError(config.ModuleRetriever, c, err)
	}
	searchCtx, cancelSearch := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelSearch()
	hits, err := h.Searcher.Search(searchCtx, vec, topK, retriever.Filters{DocIDs: docIDs})
	if err != nil {
		return apperror.InternalError(config.ModuleRetriever, c, status.New(status.ChatRetrieveFailed, err))
	}

	return apperror.Success(config.ModuleRetriever, c, apperror.FiberSuccessMessage{
		Code:       status.OK,
		Message:    "search ok",
		TrackingID: trackingID,
		Data:       searchResponse{Hits: hits},
	})
}

package chat

import "docqa/internal/core/retriever"

// HistoryPair is one earlier exchange supplied by the client.
type HistoryPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Request struct {
	Question string            `json:"question"`
	History  []HistoryPair     `json:"history"`
	Filters  retriever.Filters `json:"-"`
}

type SourceDocument struct {
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

type Response struct {
	Answer          string           `json:"answer"`
	SourceDocuments []SourceDocument `json:"source_documents"`
}

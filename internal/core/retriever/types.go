package retriever

// Filters represents optional constraints applied during search.
type Filters struct {
	DocIDs []int64
}

// Hit represents a single search result from Milvus with associated metadata.
type Hit struct {
	ID         int64   `json:"id"`
	Score      float32 `json:"score"`
	DocID      int64   `json:"doc_id"`
	ChunkIndex int32   `json:"chunk_id"`
	Source     string  `json:"source"`
	Content    string  `json:"content"`
}

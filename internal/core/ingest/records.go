package ingest

import (
	"maps"
)

// Record is one embeddable chunk. Metadata is the source document's metadata plus chunk_id.
type Record struct {
	Text     string
	ChunkID  int
	Metadata map[string]any
}

// Source returns the source path recorded by Extract, or "" when absent.
func (r Record) Source() string {
	s, _ := r.Metadata["source"].(string)
	return s
}

// Chunker is the capability BuildRecords needs; *chunker.Chunker satisfies it.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// BuildRecords chunks each document once and zips the chunks with a copy of the
// document's metadata. chunk_id restarts at 0 for every document.
func BuildRecords(docs []Document, c Chunker) ([]Record, error) {
	var out []Record
	for _, doc := range docs {
		chunks, err := c.Chunk(doc.Text)
		if err != nil {
			return nil, err
		}
		for i, text := range chunks {
			md := maps.Clone(doc.Metadata)
			if md == nil {
				md = map[string]any{}
			}
			md["chunk_id"] = i
			out = append(out, Record{Text: text, ChunkID: i, Metadata: md})
		}
	}
	return out, nil
}

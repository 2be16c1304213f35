package domain

import "context"

// Document is a block of user-submitted text. It only exists as its chunks in the vector store.
type Document struct {
	ID      string
	Content string
}

// Chunk is a contiguous, non-overlapping part of a document used for indexing.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
}

// Metadata is the payload stored next to each vector.
type Metadata struct {
	Text       string `json:"text"`
	DocID      string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// Record is a single (id, vector, payload) triple written to a namespace.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a query hit ranked by cosine similarity.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// NamespaceSpec describes the backing storage created for a namespace.
type NamespaceSpec struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a fixed-length vector.
// The same instance must be used for stored chunks and for queries.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vectors in per-user namespaces and supports similarity search.
type VectorStore interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	CreateNamespace(ctx context.Context, spec NamespaceSpec) error
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}

// Generator sends an ordered prompt to a text-generation model and returns the trimmed completion.
type Generator interface {
	Name() string
	Generate(ctx context.Context, parts ...string) (string, error)
}

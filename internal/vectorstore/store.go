// Package vectorstore implements the semantic linker stage's chunk
// index: a thin interface over Chroma's HTTP API
// (original_source/rag/vector_store.py's get_chroma_client), with an
// in-memory cosine-similarity fallback when no Chroma endpoint is
// configured or reachable — mirroring the original's own
// HttpClient-then-in-memory fallback.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
	"github.com/sherlock-intel/engine/internal/logging"
)

// Chunk is one indexed unit of document text.
type Chunk struct {
	ID       string
	DocID    string
	Text     string
	Vector   []float32
	Position int
}

// Match is a similarity search result: a chunk plus its distance from
// the query vector.
type Match struct {
	Chunk    Chunk
	Distance float64
}

// Store is the capability interface the semantic linker depends on.
type Store interface {
	Upsert(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, docID string, vector []float32, topN int) ([]Match, error)
}

// NewStore returns an HTTP-backed Chroma store when host/port are
// configured and reachable, otherwise an in-memory fallback — the same
// degrade path get_chroma_client() takes in the original.
func NewStore(host string, port int, collection string) Store {
	if host == "" {
		return NewMemoryStore()
	}
	c := &ChromaStore{baseURL: fmt.Sprintf("http://%s:%d", host, port), collection: collection, client: &http.Client{Timeout: 10 * time.Second}}
	if err := c.ping(); err != nil {
		logging.Warn("chroma endpoint unreachable, falling back to in-memory vector store", "host", host, "port", port, "error", err)
		return NewMemoryStore()
	}
	return c
}

// ChromaStore talks to a running Chroma server's REST API.
type ChromaStore struct {
	baseURL    string
	collection string
	client     *http.Client
}

func (c *ChromaStore) ping() error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("chroma heartbeat returned status %d", resp.StatusCode)
	}
	return nil
}

type chromaAddRequest struct {
	IDs       []string    `json:"ids"`
	Documents []string    `json:"documents"`
	Embeddings [][]float32 `json:"embeddings"`
	Metadatas []map[string]any `json:"metadatas"`
}

// Upsert implements Store by POSTing to the collection's /add endpoint.
func (c *ChromaStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	body := chromaAddRequest{}
	for _, ch := range chunks {
		body.IDs = append(body.IDs, ch.ID)
		body.Documents = append(body.Documents, ch.Text)
		body.Embeddings = append(body.Embeddings, ch.Vector)
		body.Metadatas = append(body.Metadatas, map[string]any{"doc_id": ch.DocID, "position": ch.Position})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return internalerrors.InternalError("failed to marshal chroma add request")
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return internalerrors.NetworkError(err, "failed to build chroma add request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return internalerrors.NetworkError(err, "chroma add request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return internalerrors.ExternalErrorf(nil, "chroma add returned status %d", resp.StatusCode)
	}
	return nil
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
}

type chromaQueryResponse struct {
	IDs       [][]string    `json:"ids"`
	Documents [][]string    `json:"documents"`
	Distances [][]float64   `json:"distances"`
}

// Query implements Store by POSTing to the collection's /query endpoint,
// restricted to chunks not belonging to docID.
func (c *ChromaStore) Query(ctx context.Context, docID string, vector []float32, topN int) ([]Match, error) {
	body := chromaQueryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        topN,
		Where:           map[string]any{"doc_id": map[string]any{"$ne": docID}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, internalerrors.InternalError("failed to marshal chroma query request")
	}
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, internalerrors.NetworkError(err, "failed to build chroma query request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, internalerrors.NetworkError(err, "chroma query request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, internalerrors.ExternalErrorf(nil, "chroma query returned status %d", resp.StatusCode)
	}
	var out chromaQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, internalerrors.InternalError("failed to decode chroma query response")
	}
	if len(out.IDs) == 0 {
		return nil, nil
	}
	var matches []Match
	for i, id := range out.IDs[0] {
		matches = append(matches, Match{
			Chunk:    Chunk{ID: id, Text: safeIndex(out.Documents, 0, i)},
			Distance: safeDistance(out.Distances, 0, i),
		})
	}
	return matches, nil
}

func safeIndex(docs [][]string, i, j int) string {
	if i < len(docs) && j < len(docs[i]) {
		return docs[i][j]
	}
	return ""
}

func safeDistance(dists [][]float64, i, j int) float64 {
	if i < len(dists) && j < len(dists[i]) {
		return dists[i][j]
	}
	return 1
}

// MemoryStore is a linear-scan, cosine-distance in-memory fallback.
type MemoryStore struct {
	chunks []Chunk
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert appends chunks, replacing any with a matching ID.
func (m *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) error {
	byID := map[string]int{}
	for i, c := range m.chunks {
		byID[c.ID] = i
	}
	for _, c := range chunks {
		if idx, ok := byID[c.ID]; ok {
			m.chunks[idx] = c
			continue
		}
		m.chunks = append(m.chunks, c)
	}
	return nil
}

// Query performs a brute-force cosine-distance scan over every chunk not
// belonging to docID, returning the topN closest.
func (m *MemoryStore) Query(ctx context.Context, docID string, vector []float32, topN int) ([]Match, error) {
	var candidates []Match
	for _, c := range m.chunks {
		if c.DocID == docID {
			continue
		}
		candidates = append(candidates, Match{Chunk: c, Distance: cosineDistance(vector, c.Vector)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if topN > 0 && topN < len(candidates) {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

// cosineDistance returns 1 - cosine_similarity, 1 (maximal distance) if
// either vector is zero-length or zero-norm.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

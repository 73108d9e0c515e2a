package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oylhq/oyl/apperr"
)

// ChromaIndex speaks to a Chroma server over its REST API. Collection names
// are resolved to collection ids once and cached.
type ChromaIndex struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	collections map[string]string // name -> id
}

func NewChromaIndex(baseURL string, timeoutSecs int) *ChromaIndex {
	host := strings.TrimRight(baseURL, "/")
	if host == "" {
		host = "http://localhost:8000"
	}
	timeout := time.Duration(timeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ChromaIndex{
		baseURL:     host,
		client:      &http.Client{Timeout: timeout},
		collections: make(map[string]string),
	}
}

type chromaCollectionRequest struct {
	Name        string         `json:"name"`
	GetOrCreate bool           `json:"get_or_create"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type chromaCollectionResponse struct {
	ID string `json:"id"`
}

type chromaUpsertRequest struct {
	IDs        []string    `json:"ids"`
	Embeddings [][]float32 `json:"embeddings"`
	Documents  []string    `json:"documents"`
	Metadatas  []Metadata  `json:"metadatas"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type chromaQueryResponse struct {
	Documents [][]string   `json:"documents"`
	Metadatas [][]Metadata `json:"metadatas"`
	Distances [][]float64  `json:"distances"`
}

func (s *ChromaIndex) collectionID(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	id, ok := s.collections[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	var resp chromaCollectionResponse
	err := s.post(ctx, "/api/v1/collections", chromaCollectionRequest{
		Name:        name,
		GetOrCreate: true,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", apperr.Capability("vector-index", fmt.Errorf("chroma returned empty collection id for %s", name))
	}

	s.mu.Lock()
	s.collections[name] = resp.ID
	s.mu.Unlock()
	return resp.ID, nil
}

func (s *ChromaIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	id, err := s.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]Metadata, len(records)),
	}
	for i, rec := range records {
		req.IDs[i] = rec.ID
		req.Embeddings[i] = rec.Vector
		req.Documents[i] = rec.Text
		req.Metadatas[i] = rec.Metadata
	}

	return s.post(ctx, "/api/v1/collections/"+id+"/upsert", req, nil)
}

func (s *ChromaIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}

	id, err := s.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	var resp chromaQueryResponse
	err = s.post(ctx, "/api/v1/collections/"+id+"/query", chromaQueryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Documents) == 0 {
		return nil, nil
	}

	docs := resp.Documents[0]
	matches := make([]Match, 0, len(docs))
	for i := range docs {
		m := Match{Text: docs[i]}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			m.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			m.Distance = resp.Distances[0][i]
		}
		matches = append(matches, m)
	}

	return matches, nil
}

func (s *ChromaIndex) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal chroma request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create chroma request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Capability("vector-index", fmt.Errorf("call chroma API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			return apperr.Capability("vector-index", fmt.Errorf("chroma API error: %s", string(data)))
		}
		return apperr.Capability("vector-index", fmt.Errorf("chroma API returned status %s", resp.Status))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Capability("vector-index", fmt.Errorf("decode chroma response: %w", err))
	}
	return nil
}

var _ Index = (*ChromaIndex)(nil)

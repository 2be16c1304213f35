package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"neurodoc/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// Every namespace is a collection. Qdrant only accepts integer or UUID point ids, so chunk ids
// are mapped to name-based UUIDs and the original id travels in the payload.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Storage) ListNamespaces(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *Storage) CreateNamespace(ctx context.Context, spec domain.NamespaceSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrStoreUnavailable, spec.Dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": formatDistance(spec.Metric),
		},
	}
	return s.do(ctx, http.MethodPut, "/collections/"+spec.Name, body, nil)
}

func (s *Storage) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":     PointID(r.ID),
			"vector": r.Vector,
			"payload": map[string]any{
				"id":          r.ID,
				"doc_id":      r.Metadata.DocID,
				"chunk_index": r.Metadata.ChunkIndex,
				"text":        r.Metadata.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", namespace), body, nil)
}

func (s *Storage) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", namespace), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := domain.Match{Score: r.Score}
		if v, ok := r.Payload["id"].(string); ok {
			m.ID = v
		}
		if v, ok := r.Payload["doc_id"].(string); ok {
			m.Metadata.DocID = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			m.Metadata.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			m.Metadata.Text = v
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// PointID maps a chunk id to the deterministic UUID used as the Qdrant point id.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func formatDistance(metric string) string {
	switch strings.ToLower(metric) {
	case "dot", "dotproduct":
		return "Dot"
	case "euclid", "euclidean", "l2":
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %v", domain.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(method, path, resp.StatusCode, resp.Status, string(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func statusError(method, path string, code int, status, body string) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: qdrant %s %s: %s", domain.ErrNamespaceNotFound, method, path, status)
	case code == http.StatusConflict,
		code == http.StatusBadRequest && strings.Contains(body, "already exists"):
		return fmt.Errorf("%w: qdrant %s %s: %s", domain.ErrAlreadyExists, method, path, status)
	default:
		return fmt.Errorf("%w: qdrant %s %s failed: %s", domain.ErrStoreUnavailable, method, path, status)
	}
}

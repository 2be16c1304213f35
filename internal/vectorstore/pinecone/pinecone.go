// Package pinecone implements the vector store on Pinecone serverless indexes.
// Each namespace is one index; the control plane lists and creates indexes and the data plane,
// reached through the host reported by the control plane, handles upserts and queries.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"neurodoc/internal/domain"
)

const (
	DefaultControllerURL = "https://api.pinecone.io"
	// MaxUpsertBatch is the number of vectors sent per upsert request.
	MaxUpsertBatch = 100
)

type Config struct {
	APIKey        string
	ControllerURL string
	Timeout       time.Duration
	PollInterval  time.Duration
}

// dataPlane is the part of an index connection the store relies on.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

type Storage struct {
	client       *pinecone.Client
	pollInterval time.Duration
	log          *zap.Logger

	// connect opens a data plane connection to an index host.
	connect func(host string) (dataPlane, error)

	mu    sync.Mutex
	conns map[string]dataPlane
}

func NewStorage(cfg Config, log *zap.Logger) (*Storage, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing pinecone API key", domain.ErrConfiguration)
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = DefaultControllerURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControllerURL,
		RestClient: &http.Client{Timeout: cfg.Timeout},
		SourceTag:  "neurodoc",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone client: %v", domain.ErrConfiguration, err)
	}
	s := &Storage{
		client:       client,
		pollInterval: cfg.PollInterval,
		log:          log,
		conns:        map[string]dataPlane{},
	}
	s.connect = func(host string) (dataPlane, error) {
		return client.Index(pinecone.NewIndexConnParams{Host: host})
	}
	return s, nil
}

func (s *Storage) ListNamespaces(ctx context.Context) ([]string, error) {
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		return nil, classify("list indexes", err)
	}
	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

// CreateNamespace creates a serverless index and waits until it accepts traffic.
func (s *Storage) CreateNamespace(ctx context.Context, spec domain.NamespaceSpec) error {
	cloud, region := spec.Cloud, spec.Region
	if cloud == "" {
		cloud = string(pinecone.Aws)
	}
	if region == "" {
		region = "us-east-1"
	}
	metric := pinecone.IndexMetric(spec.Metric)
	if metric == "" {
		metric = pinecone.Cosine
	}
	_, err := s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      spec.Name,
		Dimension: int32(spec.Dimension),
		Metric:    metric,
		Cloud:     pinecone.Cloud(cloud),
		Region:    region,
	})
	if err != nil {
		return classify("create index "+spec.Name, err)
	}
	_, err = s.waitReady(ctx, spec.Name)
	return err
}

func (s *Storage) waitReady(ctx context.Context, name string) (*pinecone.Index, error) {
	for {
		idx, err := s.client.DescribeIndex(ctx, name)
		if err != nil {
			return nil, classify("describe index "+name, err)
		}
		if idx.Status != nil && idx.Status.Ready {
			return idx, nil
		}
		state := ""
		if idx.Status != nil {
			state = string(idx.Status.State)
		}
		s.log.Debug("waiting for index", zap.String("index", name), zap.String("state", state))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: index %s not ready: %v", domain.ErrStoreUnavailable, name, ctx.Err())
		case <-time.After(s.pollInterval):
		}
	}
}

// index returns a cached data plane connection for the named index.
func (s *Storage) index(ctx context.Context, name string) (dataPlane, error) {
	s.mu.Lock()
	conn, ok := s.conns[name]
	s.mu.Unlock()
	if ok {
		return conn, nil
	}

	desc, err := s.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, classify("describe index "+name, err)
	}
	if desc.Host == "" {
		return nil, fmt.Errorf("%w: index %s has no host", domain.ErrStoreUnavailable, name)
	}
	conn, err = s.connect(desc.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to index %s: %v", domain.ErrStoreUnavailable, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conns[name]; ok {
		_ = conn.Close()
		return existing, nil
	}
	s.conns[name] = conn
	return conn, nil
}

func (s *Storage) Upsert(ctx context.Context, namespace string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := s.index(ctx, namespace)
	if err != nil {
		return err
	}
	for start := 0; start < len(records); start += MaxUpsertBatch {
		end := min(start+MaxUpsertBatch, len(records))
		batch := make([]*pinecone.Vector, 0, end-start)
		for _, r := range records[start:end] {
			md, err := structpb.NewStruct(map[string]any{
				"text":        r.Metadata.Text,
				"doc_id":      r.Metadata.DocID,
				"chunk_index": r.Metadata.ChunkIndex,
			})
			if err != nil {
				return fmt.Errorf("%w: metadata for %s: %v", domain.ErrStoreUnavailable, r.ID, err)
			}
			batch = append(batch, &pinecone.Vector{Id: r.ID, Values: r.Vector, Metadata: md})
		}
		n, err := conn.UpsertVectors(ctx, batch)
		if err != nil {
			return fmt.Errorf("%w: pinecone upsert into %s: %v", domain.ErrStoreUnavailable, namespace, err)
		}
		s.log.Debug("upserted vectors", zap.String("index", namespace), zap.Uint32("count", n))
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	conn, err := s.index(ctx, namespace)
	if err != nil {
		return nil, err
	}
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone query %s: %v", domain.ErrStoreUnavailable, namespace, err)
	}
	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := domain.Match{ID: m.Vector.Id, Score: float64(m.Score)}
		if md := m.Vector.Metadata; md != nil {
			fields := md.GetFields()
			match.Metadata.Text = fields["text"].GetStringValue()
			match.Metadata.DocID = fields["doc_id"].GetStringValue()
			match.Metadata.ChunkIndex = int(fields["chunk_index"].GetNumberValue())
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close releases every data plane connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, conn := range s.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
		delete(s.conns, name)
	}
	return errors.Join(errs...)
}

func classify(op string, err error) error {
	kind := domain.ErrStoreUnavailable
	var pe *pinecone.PineconeError
	if errors.As(err, &pe) {
		switch pe.Code {
		case http.StatusNotFound:
			kind = domain.ErrNamespaceNotFound
		case http.StatusConflict:
			kind = domain.ErrAlreadyExists
		}
	}
	return fmt.Errorf("%w: pinecone %s: %v", kind, op, err)
}

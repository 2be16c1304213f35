// Package bootstrap assembles the configured components into a ready-to-use service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"neurodoc/internal/chunker"
	"neurodoc/internal/config"
	"neurodoc/internal/domain"
	"neurodoc/internal/embedding"
	"neurodoc/internal/embedding/hashing"
	embopenai "neurodoc/internal/embedding/openai"
	"neurodoc/internal/generation/gemini"
	genopenai "neurodoc/internal/generation/openai"
	"neurodoc/internal/namespace"
	"neurodoc/internal/service"
	"neurodoc/internal/vectorstore/memory"
	"neurodoc/internal/vectorstore/pinecone"
	"neurodoc/internal/vectorstore/postgres"
	"neurodoc/internal/vectorstore/qdrant"
)

// Runtime holds the assembled service and the resources that must be released on shutdown.
type Runtime struct {
	Config  *config.AppConfig
	Log     *zap.Logger
	Service *service.RAGService
	Ops     service.Operations

	closers []func() error
}

// New validates cfg and builds every component it selects.
func New(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Log: log}

	emb, err := newEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := rt.newVectorStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	gen, err := newGenerator(ctx, cfg, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "fixed", "":
		ch = chunker.NewFixedChunker(cfg.Chunker.MaxChars)
	default:
		_ = rt.Close()
		return nil, fmt.Errorf("%w: unknown chunker: %s", domain.ErrConfiguration, cfg.Chunker.Type)
	}

	resolver := namespace.NewResolver(store, namespace.Options{
		Prefix:    cfg.Namespace.Prefix,
		Dimension: emb.Dimension(),
		Metric:    cfg.Namespace.Metric,
		Cloud:     cfg.Namespace.Cloud,
		Region:    cfg.Namespace.Region,
	}, log.Named("namespace"))

	rt.Service = service.NewRAGService(ch, emb, store, resolver, gen, service.Options{
		AnswerTopK:        cfg.Search.AnswerTopK,
		SummaryTopK:       cfg.Search.SummaryTopK,
		OrderByChunkIndex: cfg.Search.OrderByChunkIndex,
		UpsertBatch:       cfg.Search.UpsertBatch,
	}, log.Named("service"))
	rt.Ops = service.NewFacade(rt.Service, log.Named("facade"))

	log.Info("runtime ready",
		zap.String("embedder", emb.Name()),
		zap.Int("dimension", emb.Dimension()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("generator", gen.Name()))
	return rt, nil
}

// Close releases database connections and flushes the logger.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(cfg *config.AppConfig, log *zap.Logger) (domain.Embedder, error) {
	dim := cfg.Embedder.Dimension
	var inner domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		inner = hashing.NewEmbedder(dim)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		o := cfg.Embedder.OpenAI
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:       o.BaseURL,
			APIKeyEnv:     o.APIKeyEnv,
			Model:         o.Model,
			Dimension:     dim,
			Timeout:       time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries:    o.MaxRetries,
			AllowEmptyKey: o.AllowEmptyKey,
		}, log.Named("embedder"))
		if err != nil {
			return nil, err
		}
		inner = client
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfiguration, cfg.Embedder.Type)
	}
	return embedding.NewChecked(inner, dim), nil
}

func (r *Runtime) newVectorStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (domain.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "pinecone", "":
		if cfg.VectorStore.Pinecone == nil {
			return nil, fmt.Errorf("%w: pinecone config missing", domain.ErrConfiguration)
		}
		p := cfg.VectorStore.Pinecone
		pc, err := pinecone.NewStorage(pinecone.Config{
			APIKey:        os.Getenv(p.APIKeyEnv),
			ControllerURL: p.ControllerURL,
			Timeout:       time.Duration(p.TimeoutSecs) * time.Second,
			PollInterval:  time.Duration(p.PollIntervalMs) * time.Millisecond,
		}, log.Named("pinecone"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pc.Close)
		return pc, nil
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", domain.ErrConfiguration)
		}
		q := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:     q.URL,
			APIKey:  q.APIKey,
			Timeout: time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	case "postgres":
		if cfg.VectorStore.Postgres == nil {
			return nil, fmt.Errorf("%w: postgres config missing", domain.ErrConfiguration)
		}
		pg, err := postgres.Open(ctx, cfg.VectorStore.Postgres.ResolveDSN())
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pg.Close)
		if !cfg.VectorStore.Postgres.SkipMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = r.Close()
				return nil, err
			}
			log.Info("postgres schema migrated")
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store: %s", domain.ErrConfiguration, cfg.VectorStore.Type)
	}
}

func newGenerator(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "gemini", "":
		if cfg.Generator.Gemini == nil {
			return nil, fmt.Errorf("%w: gemini config missing", domain.ErrConfiguration)
		}
		g := cfg.Generator.Gemini
		return gemini.NewClient(ctx, gemini.Config{
			BaseURL:    g.BaseURL,
			APIVersion: g.APIVersion,
			APIKeyEnv:  g.APIKeyEnv,
			Model:      g.Model,
			Timeout:    time.Duration(g.TimeoutSecs) * time.Second,
		}, log.Named("gemini"))
	case "openai":
		if cfg.Generator.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai generator config missing", domain.ErrConfiguration)
		}
		o := cfg.Generator.OpenAI
		return genopenai.NewClient(genopenai.Config{
			BaseURL:       o.BaseURL,
			APIKeyEnv:     o.APIKeyEnv,
			Model:         o.Model,
			Temperature:   o.Temperature,
			Timeout:       time.Duration(o.TimeoutSecs) * time.Second,
			AllowEmptyKey: o.AllowEmptyKey,
		}, log.Named("openai"))
	default:
		return nil, fmt.Errorf("%w: unknown generator: %s", domain.ErrConfiguration, cfg.Generator.Type)
	}
}

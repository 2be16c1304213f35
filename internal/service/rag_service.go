package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neurodoc/internal/domain"
)

// Operation names used in error messages.
const (
	OpStore     = "storing document"
	OpSearch    = "searching document"
	OpSummarize = "generating summary"
	OpTitle     = "extracting title"
)

// Fixed replies returned when retrieval finds nothing.
const (
	NoMatchAnswer   = "No matching document found"
	NoMatchSummary  = "No relevant documents found for the keyword."
	NotAvailableMsg = "Information not available in the given files"
)

const summaryPrefix = "summary of"

// OpError records which operation failed. Its message is the user-facing display string.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return "Error " + e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// NamespaceResolver maps a user to an existing namespace, creating it on first use.
type NamespaceResolver interface {
	ResolveAndEnsure(ctx context.Context, userID string) (string, error)
}

// Options tunes retrieval.
type Options struct {
	AnswerTopK        int
	SummaryTopK       int
	OrderByChunkIndex bool
	UpsertBatch       int
	// NewID generates document ids. Defaults to random UUIDs.
	NewID func() string
}

type RAGService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	namespaces NamespaceResolver
	generator  domain.Generator
	opts       Options
	log        *zap.Logger
}

func NewRAGService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, namespaces NamespaceResolver, generator domain.Generator, opts Options, log *zap.Logger) *RAGService {
	if opts.AnswerTopK <= 0 {
		opts.AnswerTopK = 1
	}
	if opts.SummaryTopK <= 0 {
		opts.SummaryTopK = 10
	}
	if opts.UpsertBatch <= 0 {
		opts.UpsertBatch = 100
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RAGService{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		namespaces: namespaces,
		generator:  generator,
		opts:       opts,
		log:        log,
	}
}

// Store chunks text, embeds every chunk and upserts the chunks into the user's namespace.
// It returns the new document id.
func (s *RAGService) Store(ctx context.Context, userID, text string) (string, error) {
	docID, err := s.storeDocument(ctx, userID, text)
	if err != nil {
		return "", &OpError{Op: OpStore, Err: err}
	}
	return docID, nil
}

func (s *RAGService) storeDocument(ctx context.Context, userID, text string) (string, error) {
	start := time.Now()
	ns, err := s.namespaces.ResolveAndEnsure(ctx, userID)
	if err != nil {
		return "", err
	}

	doc := domain.Document{ID: s.opts.NewID(), Content: text}
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return "", err
	}

	records := make([]domain.Record, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := s.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return "", err
		}
		records = append(records, domain.Record{
			ID:     ch.ID,
			Vector: vec,
			Metadata: domain.Metadata{
				Text:       ch.Text,
				DocID:      doc.ID,
				ChunkIndex: ch.Index,
			},
		})
	}

	for i := 0; i < len(records); i += s.opts.UpsertBatch {
		end := min(i+s.opts.UpsertBatch, len(records))
		if err := s.store.Upsert(ctx, ns, records[i:end]); err != nil {
			return "", domain.Classify(domain.ErrStoreUnavailable, err)
		}
	}

	s.log.Info("document stored",
		zap.String("namespace", ns),
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", len(records)),
		zap.Duration("took", time.Since(start)))
	return doc.ID, nil
}

// Search answers query from the best matching chunk. Queries starting with "summary of"
// are answered by Summarize with the rest of the query as keyword.
func (s *RAGService) Search(ctx context.Context, userID, query string) (string, error) {
	ns, err := s.namespaces.ResolveAndEnsure(ctx, userID)
	if err != nil {
		return "", &OpError{Op: OpSearch, Err: err}
	}

	if keyword, ok := summaryKeyword(query); ok {
		s.log.Debug("routing search to summary", zap.String("keyword", keyword))
		return s.Summarize(ctx, userID, keyword)
	}

	answer, err := s.answer(ctx, ns, query)
	if err != nil {
		return "", &OpError{Op: OpSearch, Err: err}
	}
	return answer, nil
}

func (s *RAGService) answer(ctx context.Context, ns, query string) (string, error) {
	matches, err := s.retrieve(ctx, ns, query, s.opts.AnswerTopK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return NoMatchAnswer, nil
	}
	return s.generate(ctx, AnswerPrompt(matches[0].Metadata.Text, query))
}

// Summarize retrieves chunks related to keyword, groups them by document and asks the model for a summary.
func (s *RAGService) Summarize(ctx context.Context, userID, keyword string) (string, error) {
	summary, err := s.summarize(ctx, userID, keyword)
	if err != nil {
		return "", &OpError{Op: OpSummarize, Err: err}
	}
	return summary, nil
}

func (s *RAGService) summarize(ctx context.Context, userID, keyword string) (string, error) {
	ns, err := s.namespaces.ResolveAndEnsure(ctx, userID)
	if err != nil {
		return "", err
	}
	matches, err := s.retrieve(ctx, ns, keyword, s.opts.SummaryTopK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return NoMatchSummary, nil
	}
	return s.generate(ctx, SummaryPrompt(keyword, CombineByDocument(matches, s.opts.OrderByChunkIndex)))
}

// ExtractTitle asks the model for a single title for text.
func (s *RAGService) ExtractTitle(ctx context.Context, text string) (string, error) {
	title, err := s.generate(ctx, TitlePrompt(text))
	if err != nil {
		return "", &OpError{Op: OpTitle, Err: err}
	}
	return title, nil
}

// retrieve embeds text and queries the namespace. A namespace without storage yields no matches.
func (s *RAGService) retrieve(ctx context.Context, ns, text string, topK int) ([]domain.Match, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Query(ctx, ns, vec, topK)
	if errors.Is(err, domain.ErrNamespaceNotFound) {
		s.log.Warn("namespace has no storage yet", zap.String("namespace", ns))
		return nil, nil
	}
	if err != nil {
		return nil, domain.Classify(domain.ErrStoreUnavailable, err)
	}
	s.log.Debug("retrieved matches", zap.String("namespace", ns), zap.Int("top_k", topK), zap.Int("matches", len(matches)))
	return matches, nil
}

func (s *RAGService) generate(ctx context.Context, prompt string) (string, error) {
	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", domain.Classify(domain.ErrGeneration, err)
	}
	return out, nil
}

// summaryKeyword reports whether query starts with "summary of", ignoring case,
// and returns the trimmed remainder.
func summaryKeyword(query string) (string, bool) {
	if len(query) < len(summaryPrefix) || !strings.EqualFold(query[:len(summaryPrefix)], summaryPrefix) {
		return "", false
	}
	return strings.TrimSpace(query[len(summaryPrefix):]), true
}

// CombineByDocument groups match texts by document in first-seen order. Texts within a group
// are joined with newlines in retrieval order, or chunk order when byChunkIndex is set, and
// groups are joined with newlines.
func CombineByDocument(matches []domain.Match, byChunkIndex bool) string {
	var order []string
	groups := make(map[string][]domain.Metadata)
	for _, m := range matches {
		id := m.Metadata.DocID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], m.Metadata)
	}

	parts := make([]string, 0, len(order))
	for _, id := range order {
		group := groups[id]
		if byChunkIndex {
			sort.SliceStable(group, func(i, j int) bool { return group[i].ChunkIndex < group[j].ChunkIndex })
		}
		texts := make([]string, len(group))
		for i, md := range group {
			texts[i] = md.Text
		}
		parts = append(parts, strings.Join(texts, "\n"))
	}
	return strings.Join(parts, "\n")
}

func AnswerPrompt(passage, question string) string {
	return fmt.Sprintf("Context: %s\n\nQuestion: %s\n\nPlease provide a detailed and complete response. If not available, say: '%s'\n\nAnswer:",
		passage, question, NotAvailableMsg)
}

func SummaryPrompt(keyword, combined string) string {
	return fmt.Sprintf("Summarize the following content related to '%s':\n\n%s", keyword, combined)
}

func TitlePrompt(text string) string {
	return fmt.Sprintf("Extract the single most suitable title for the following text:\n\n%s\n\nTitle:", text)
}

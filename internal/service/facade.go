package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"neurodoc/internal/domain"
)

// Messages shown when a front end submits incomplete input.
const (
	MsgStoreInputs   = "User ID and document text are required."
	MsgSearchInputs  = "User ID and query are required."
	MsgSummaryInputs = "User ID and keyword are required."
	MsgTitleInputs   = "Text is required."
)

// Result is what every front end renders. Text holds the answer on success and the
// display string on failure.
type Result struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text"`
	DocID string `json:"doc_id,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Operations is the surface shared by the HTTP, terminal and command-line front ends.
type Operations interface {
	Store(ctx context.Context, userID, text string) Result
	Search(ctx context.Context, userID, query string) Result
	Summarize(ctx context.Context, userID, keyword string) Result
	ExtractTitle(ctx context.Context, text string) Result
}

// Facade adapts RAGService to Operations. It never returns an error.
type Facade struct {
	svc *RAGService
	log *zap.Logger
}

var _ Operations = (*Facade)(nil)

func NewFacade(svc *RAGService, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{svc: svc, log: log}
}

func (f *Facade) Store(ctx context.Context, userID, text string) Result {
	if err := RequireInputs(MsgStoreInputs, userID, text); err != nil {
		return f.fail(OpStore, err)
	}
	id, err := f.svc.Store(ctx, userID, text)
	if err != nil {
		return f.fail(OpStore, err)
	}
	return Result{OK: true, Text: id, DocID: id}
}

func (f *Facade) Search(ctx context.Context, userID, query string) Result {
	if err := RequireInputs(MsgSearchInputs, userID, query); err != nil {
		return f.fail(OpSearch, err)
	}
	answer, err := f.svc.Search(ctx, userID, query)
	if err != nil {
		return f.fail(OpSearch, err)
	}
	return Result{OK: true, Text: answer}
}

func (f *Facade) Summarize(ctx context.Context, userID, keyword string) Result {
	if err := RequireInputs(MsgSummaryInputs, userID, keyword); err != nil {
		return f.fail(OpSummarize, err)
	}
	summary, err := f.svc.Summarize(ctx, userID, keyword)
	if err != nil {
		return f.fail(OpSummarize, err)
	}
	return Result{OK: true, Text: summary}
}

func (f *Facade) ExtractTitle(ctx context.Context, text string) Result {
	if err := RequireInputs(MsgTitleInputs, text); err != nil {
		return f.fail(OpTitle, err)
	}
	title, err := f.svc.ExtractTitle(ctx, text)
	if err != nil {
		return f.fail(OpTitle, err)
	}
	return Result{OK: true, Text: title}
}

// fail renders err for display. Input validation errors are shown as is,
// everything else as "Error <op>: <message>".
func (f *Facade) fail(op string, err error) Result {
	kind := domain.KindName(err)
	var opErr *OpError
	if !errors.As(err, &opErr) {
		if errors.Is(err, domain.ErrValidation) {
			return Result{Text: err.Error(), Kind: kind}
		}
		err = &OpError{Op: op, Err: err}
	}
	f.log.Error("operation failed", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	return Result{Text: err.Error(), Kind: kind}
}

// RequireInputs returns a validation error carrying msg when any value is empty.
// Whitespace counts as input.
func RequireInputs(msg string, values ...string) error {
	for _, v := range values {
		if v == "" {
			return domain.Classify(domain.ErrValidation, errors.New(msg))
		}
	}
	return nil
}

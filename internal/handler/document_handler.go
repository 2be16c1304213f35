package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"neurodoc/internal/service"
)

// DocumentHandler exposes the document operations over HTTP.
type DocumentHandler struct {
	ops     service.Operations
	timeout time.Duration
}

// NewDocumentHandler creates a handler. A zero timeout leaves requests unbounded.
func NewDocumentHandler(ops service.Operations, timeout time.Duration) *DocumentHandler {
	return &DocumentHandler{ops: ops, timeout: timeout}
}

// Register sets up document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Post("/documents", h.Store)
	router.Post("/search", h.Search)
	router.Post("/summary", h.Summarize)
	router.Post("/title", h.ExtractTitle)
}

type storeRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type searchRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

type summaryRequest struct {
	UserID  string `json:"user_id"`
	Keyword string `json:"keyword"`
}

type titleRequest struct {
	Text string `json:"text"`
}

// Store chunks and indexes a document for a user.
func (h *DocumentHandler) Store(c fiber.Ctx) error {
	var body storeRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	return respond(c, h.ops.Store(ctx, body.UserID, body.Text))
}

// Search answers a question from the user's documents.
func (h *DocumentHandler) Search(c fiber.Ctx) error {
	var body searchRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	return respond(c, h.ops.Search(ctx, body.UserID, body.Query))
}

// Summarize summarizes the user's documents related to a keyword.
func (h *DocumentHandler) Summarize(c fiber.Ctx) error {
	var body summaryRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	return respond(c, h.ops.Summarize(ctx, body.UserID, body.Keyword))
}

// ExtractTitle suggests a title for arbitrary text.
func (h *DocumentHandler) ExtractTitle(c fiber.Ctx) error {
	var body titleRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.context(c)
	defer cancel()
	return respond(c, h.ops.ExtractTitle(ctx, body.Text))
}

func (h *DocumentHandler) context(c fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Context())
	}
	return context.WithTimeout(c.Context(), h.timeout)
}

func respond(c fiber.Ctx, res service.Result) error {
	switch {
	case res.OK:
		return c.JSON(res)
	case res.Kind == "validation":
		return c.Status(fiber.StatusBadRequest).JSON(res)
	default:
		return c.Status(fiber.StatusBadGateway).JSON(res)
	}
}

func badBody(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(service.Result{Text: "invalid request body", Kind: "validation"})
}

// Package handler serves the document operations as a JSON HTTP API.
package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"neurodoc/internal/config"
	"neurodoc/internal/service"
)

const appName = "neurodoc"

// NewApp builds the fiber application with all routes registered.
func NewApp(ops service.Operations, cfg config.ServerConfig, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second

	app := fiber.New(fiber.Config{
		AppName:      appName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: timeout + 10*time.Second,
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))

	api := app.Group("/api/v1")
	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"app":    appName,
		})
	})
	NewDocumentHandler(ops, timeout).Register(api)

	return app
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return err
	}
}

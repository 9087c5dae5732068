// Package httpapi serves retrieval, answering, highlighting and corpus
// structure over HTTP with fiber.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

const (
	defaultTopK  = 10
	defaultScale = 1.0
)

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("httpapi: retrieval service is required")

// Ports aggregates the driving ports the API calls. Routes for nil
// optional ports answer 503.
type Ports struct {
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
	Highlight driving.HighlightService
	Structure driving.StructureService
	Indexing  driving.IndexingService

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server is the plancite HTTP API.
type Server struct {
	app   *fiber.App
	ports Ports
}

// NewServer builds the fiber app and its routes.
func NewServer(ports Ports) (*Server, error) {
	if ports.Retrieval == nil {
		return nil, ErrMissingRetrievalService
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
		AppName:               "plancite",
	})
	app.Use(recover.New())

	s := &Server{app: app, ports: ports}

	app.Get("/healthz", s.handleHealthz)
	if ports.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(ports.Metrics))
	}

	v1 := app.Group("/v1")
	v1.Post("/search", s.handleSearch)
	v1.Post("/ask", s.handleAsk)
	v1.Post("/structure", s.handleStructure)
	v1.Get("/chunks/:id/highlight", s.handleHighlight)
	v1.Get("/documents", s.handleListDocuments)
	v1.Delete("/documents/:id", s.handleDeleteDocument)

	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return <-errCh
	}
}

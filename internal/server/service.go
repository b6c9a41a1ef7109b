package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/export"
	"github.com/joseph-ayodele/brd-breakdown/internal/services/generation"
)

// multipartOverhead is allowed on top of the file limit for boundaries and headers.
const multipartOverhead int64 = 1 << 20

type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	Version        string
}

// Server is the HTTP surface of the generation service.
type Server struct {
	cfg         Config
	generations *generation.Service
	exports     *export.Service
	ping        func(ctx context.Context) error
	logger      *slog.Logger
	echo        *echo.Echo
}

// New builds the echo instance and registers every route. ping may be nil.
func New(cfg Config, gens *generation.Service, exports *export.Service, ping func(ctx context.Context) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytesDefault
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		cfg:         cfg,
		generations: gens,
		exports:     exports,
		ping:        ping,
		logger:      logger,
		echo:        echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.errorHandler
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestContext)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	bodyLimit := middleware.BodyLimit(strconv.FormatInt((s.cfg.MaxUploadBytes+multipartOverhead+1023)/1024, 10) + "K")
	api.POST("/documents/upload", s.handleUpload, bodyLimit)
	api.GET("/documents/:id", s.handleGetDocument)
	api.GET("/documents/:id/generations", s.handleListGenerations)
	api.POST("/documents/:id/generations", s.handleRegenerate)
	api.GET("/generations/:id", s.handleGetGeneration)
	api.GET("/generations/:id/export", s.handleExport)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http.listen", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
	}
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
		}
	}
	return c.JSON(status, body)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, resource string) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, NewBadRequestError("INVALID_ID", fmt.Sprintf("Invalid %s id", resource))
	}
	return id, nil
}

func (s *Server) handleGetDocument(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	doc, err := s.generations.GetDocument(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleListGenerations(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	list, err := s.generations.ListGenerations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleRegenerate(c echo.Context) error {
	id, err := pathID(c, "document")
	if err != nil {
		return err
	}
	res, err := s.generations.Regenerate(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetGeneration(c echo.Context) error {
	id, err := pathID(c, "generation")
	if err != nil {
		return err
	}
	g, err := s.generations.GetGeneration(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

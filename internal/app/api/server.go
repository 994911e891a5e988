package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/generation"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/infra/pdf"
)

// Options はHTTPサーバーの構成
type Options struct {
	Address        string
	APIToken       string // 空の場合は認証なし
	Orchestrator   *generation.Orchestrator
	Catalog        *catalog.Catalog
	Notes          notes.Repository
	Artifacts      *pdf.FileStore
	Logger         *slog.Logger
	DisableReqLogs bool
}

// Server はノート生成APIを提供するHTTPサーバー
type Server struct {
	opts      Options
	e         *echo.Echo
	logger    *slog.Logger
	validator *catalog.Validator
}

// NewServer は新しいServerを作成する
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:      opts,
		e:         echo.New(),
		logger:    logger,
		validator: catalog.NewValidator(opts.Catalog),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	if !s.opts.DisableReqLogs {
		e.Use(requestLogger(s.logger))
	}
	if s.opts.APIToken != "" {
		e.Use(bearerAuth(s.opts.APIToken))
	}

	e.GET("/healthz", s.healthz)

	g := e.Group("/api")

	cg := g.Group("/catalog")
	cg.GET("/boards", s.listBoards)
	cg.GET("/subjects", s.listSubjects)
	cg.GET("/chapters", s.listChapters)

	jg := g.Group("/jobs")
	jg.POST("", s.createJob)
	jg.GET("", s.listJobs)
	jg.GET("/:id", s.getJob)
	jg.GET("/:id/events", s.jobEvents)
	jg.POST("/:id/cancel", s.cancelJob)
	jg.GET("/:id/notes", s.getNotes)
	jg.GET("/:id/notes.md", s.getNotesMarkdown)
	jg.GET("/:id/pdf", s.getPDF)
}

// Start はサーバーを起動し、Stop されるまでブロックする
func (s *Server) Start() error {
	s.logger.Info("HTTPサーバーを起動します", "address", s.opts.Address)
	if err := s.e.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop はリクエストの完了を待ってサーバーを停止する
func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// ServeHTTP は http.Handler を実装する
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"running": s.opts.Orchestrator.Running(),
	})
}

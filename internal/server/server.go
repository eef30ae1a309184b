// Package server exposes the pipeline through two thin trigger adapters:
// an HTTP endpoint and a storage-event endpoint. Both translate the
// inbound request into one orchestrator call; no trigger-specific logic
// lives in the pipeline itself.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fmworker/internal/archive"
	"fmworker/internal/config"
	"fmworker/internal/logger"
	"fmworker/internal/pipeline"
	"fmworker/internal/storage"
)

// Runner executes one pipeline run. Implemented by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, inputPath, outputPath string) *pipeline.Result
}

// RunnerFactory builds a runner (and its cleanup) for one invocation.
// Each request gets its own storage client; nothing is shared.
type RunnerFactory func(ctx context.Context, inputPath string) (Runner, func() error, error)

// Server holds the trigger adapters.
type Server struct {
	cfg       *config.Config
	logger    *logger.Logger
	newRunner RunnerFactory
}

// New creates a server whose runners talk to real storage.
func New(cfg *config.Config, log *logger.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: log,
		newRunner: func(ctx context.Context, inputPath string) (Runner, func() error, error) {
			gw, err := storage.ForPath(ctx, inputPath)
			if err != nil {
				return nil, nil, err
			}

			return pipeline.New(gw, cfg, log), gw.Close, nil
		},
	}
}

// NewWithRunner creates a server with an injected runner factory (tests).
func NewWithRunner(cfg *config.Config, log *logger.Logger, factory RunnerFactory) *Server {
	return &Server{cfg: cfg, logger: log, newRunner: factory}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/normalize", s.handleNormalize)
	r.POST("/events", s.handleEvent)

	return r
}

// normalizeRequest enumerates the recognized trigger fields.
type normalizeRequest struct {
	InputPath  string `json:"input_path" form:"input_path"`
	OutputPath string `json:"output_path" form:"output_path"`
}

// handleNormalize runs the pipeline synchronously and returns the result
// as the response body: 200 on success, an error-class status otherwise.
func (s *Server) handleNormalize(c *gin.Context) {
	var req normalizeRequest

	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid query parameters"})
		return
	}

	if req.InputPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "input_path is required"})
		return
	}

	res, err := s.run(c.Request.Context(), req.InputPath, req.OutputPath)
	if err != nil {
		s.logger.Error("failed to set up pipeline run", "input", req.InputPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})

		return
	}

	c.JSON(statusFor(res), res)
}

// storageEvent is the object-finalize notification shape: a newly created
// object described by bucket and name.
type storageEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// handleEvent processes an object-finalize notification. Events for
// objects already inside a normalized location are ignored to avoid
// reprocessing loops; failures are logged and the event dropped.
func (s *Server) handleEvent(c *gin.Context) {
	var ev storageEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.Bucket == "" || ev.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid storage event"})
		return
	}

	suffix := s.cfg.Worker.Storage.NormalizedSuffix

	if !strings.HasSuffix(ev.Name, ".npz") || pipeline.IsNormalizedPath(ev.Name, suffix) {
		s.logger.Debug("ignoring storage event", "bucket", ev.Bucket, "object", ev.Name)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})

		return
	}

	inputPath := "gs://" + ev.Bucket + "/" + ev.Name

	res, err := s.run(c.Request.Context(), inputPath, "")
	if err != nil {
		s.logger.Error("failed to set up pipeline run", "input", inputPath, "error", err)
		c.JSON(http.StatusAccepted, gin.H{"status": "error", "error": err.Error()})

		return
	}

	if res.Status != pipeline.StatusDone {
		// Logged by the orchestrator; the event is dropped, not retried.
		c.JSON(http.StatusAccepted, res)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) run(ctx context.Context, inputPath, outputPath string) (*pipeline.Result, error) {
	runner, closeRunner, err := s.newRunner(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	defer closeRunner()

	return runner.Run(ctx, inputPath, outputPath), nil
}

// statusFor maps a result onto an HTTP status by error class.
func statusFor(res *pipeline.Result) int {
	if res.Status == pipeline.StatusDone {
		return http.StatusOK
	}

	cause := res.Cause()

	switch {
	case storage.IsNotFound(cause):
		return http.StatusNotFound
	case errors.Is(cause, storage.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(cause, archive.ErrCorrupt):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

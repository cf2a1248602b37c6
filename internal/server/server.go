package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/logger"
	"github.com/spigell/rfp-intake/internal/proposal"
)

const (
	defaultMaxBodyBytes = 10 << 20
	shutdownTimeout     = 10 * time.Second
)

// Pipeline is the intake work the HTTP layer exposes.
type Pipeline interface {
	ProcessEmail(ctx context.Context, requestID string, email intake.Email) (*intake.Result, error)
	ProcessManual(ctx context.Context, requestID string, sub intake.Submission) (*intake.Result, error)
	Parse(ctx context.Context, text string) (*proposal.Extraction, error)
	Compare(ctx context.Context, rfpID int64) (*intake.Comparison, error)
}

type Options struct {
	// CORSOrigins lists allowed browser origins. Empty or "*" allows any.
	CORSOrigins     []string
	SignatureHeader string
	TimestampHeader string
	MaxBodyBytes    int64
	Debug           bool
	// HealthCheck, when set, is consulted by GET /health.
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	pipeline Pipeline
	verifier *intake.SignatureVerifier
	logger   *zap.Logger
	opts     Options
	engine   *gin.Engine
}

func New(pipeline Pipeline, verifier *intake.SignatureVerifier, log *zap.Logger, opts Options) *Server {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = intake.DefaultSignatureHeader
	}
	if opts.TimestampHeader == "" {
		opts.TimestampHeader = intake.DefaultTimestampHeader
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		pipeline: pipeline,
		verifier: verifier,
		logger:   logger.WithFields(log),
		opts:     opts,
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(requestID(), requestLogger(s.logger), recovery(s.logger), cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/health", s.handleHealth)

	webhooks := r.Group("/api/webhooks")
	webhooks.POST("/email", s.handleEmail)
	webhooks.GET("/email/test", s.handleEmailTest)
	webhooks.POST("/manual-response", s.handleManual)

	proposals := r.Group("/api/proposals")
	proposals.POST("/parse", s.handleParse)
	proposals.GET("/compare/:rfpId", s.handleCompare)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
	cfg.ExposeHeaders = []string{"Content-Length", requestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/soul-spirits/internal/captcha"
	"github.com/jonathan/soul-spirits/internal/inventory"
	"github.com/jonathan/soul-spirits/internal/metrics"
	"github.com/jonathan/soul-spirits/internal/orchestrator"
	"github.com/jonathan/soul-spirits/internal/server/ratelimit"
)

const (
	defaultGenerationTimeout = 2 * time.Minute
	defaultMaxGenerations    = 4
	shutdownTimeout          = 30 * time.Second
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	cfg        Config

	recipes   orchestrator.RecipeGenerator
	images    orchestrator.ImageGenerator
	captcha   *captcha.Issuer
	inventory inventory.Store
	history   History
	metrics   *metrics.Collector
	logger    *zap.Logger

	sessions    *sessionStore
	rateLimiter *ratelimit.Limiter
	slots       *semaphore.Weighted
	validate    *validator.Validate

	janitorStop chan struct{}
	closeOnce   sync.Once
}

// Config holds server configuration
type Config struct {
	Port                     int
	AllowedOrigins           []string
	GenerationTimeout        time.Duration
	SessionIdleTimeout       time.Duration // zero keeps sessions forever
	MaxConcurrentGenerations int
	RateLimit                *ratelimit.Config // nil uses the limiter defaults
}

// Deps are the collaborators the server is built from. Recipes, Images and
// Captcha are required; the rest have defaults.
type Deps struct {
	Recipes   orchestrator.RecipeGenerator
	Images    orchestrator.ImageGenerator
	Captcha   *captcha.Issuer
	Inventory inventory.Store // defaults to an in-memory store
	History   History         // nil disables the history endpoints
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Recipes == nil || deps.Images == nil {
		return nil, errors.New("recipe and image generators are required")
	}
	if deps.Captcha == nil {
		return nil, errors.New("captcha issuer is required")
	}
	if deps.Inventory == nil {
		deps.Inventory = inventory.NewMemoryStore()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = defaultMaxGenerations
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		cfg:         cfg,
		recipes:     deps.Recipes,
		images:      deps.Images,
		captcha:     deps.Captcha,
		inventory:   deps.Inventory,
		history:     deps.History,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		sessions:    newSessionStore(),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		slots:       semaphore.NewWeighted(int64(cfg.MaxConcurrentGenerations)),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Session lifecycle
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/captcha", s.handleRefreshCaptcha)
	mux.HandleFunc("POST /sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /sessions/{id}/submit/stream", s.handleSubmitStream)
	mux.HandleFunc("POST /sessions/{id}/redo", s.handleRedo)
	mux.HandleFunc("POST /sessions/{id}/redo/stream", s.handleRedoStream)
	mux.HandleFunc("POST /sessions/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /sessions/{id}/start-over", s.handleStartOver)

	// Inventory endpoints
	mux.HandleFunc("GET /sessions/{id}/inventory", s.handleGetInventory)
	mux.HandleFunc("PUT /sessions/{id}/inventory", s.handlePutInventory)
	mux.HandleFunc("DELETE /sessions/{id}/inventory", s.handleDeleteInventory)
	mux.HandleFunc("POST /sessions/{id}/inventory/toggle", s.handleToggleInventoryItem)
	mux.HandleFunc("POST /sessions/{id}/inventory/items", s.handleAddInventoryItem)
	mux.HandleFunc("GET /inventory/presets", s.handleInventoryPresets)

	// History endpoints
	mux.HandleFunc("GET /cocktails", s.handleListCocktails)
	mux.HandleFunc("GET /cocktails/{id}", s.handleGetCocktail)
	mux.HandleFunc("GET /sessions/{id}/failures", s.handleListFailures)

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second, // Generations hold the response open
		IdleTimeout:  60 * time.Second,
	}

	if cfg.SessionIdleTimeout > 0 {
		s.janitorStop = make(chan struct{})
		go s.janitor(cfg.SessionIdleTimeout)
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until ctx is cancelled or
// the process receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Close()
	s.logger.Info("server stopped")
	return err
}

// Close stops the background goroutines. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.rateLimiter.Stop()
		if s.janitorStop != nil {
			close(s.janitorStop)
		}
	})
}

// janitor drops idle sessions
func (s *Server) janitor(idle time.Duration) {
	ticker := time.NewTicker(max(idle/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.sessions.sweep(s.sessions.now().Add(-idle)); n > 0 {
				s.logger.Debug("expired idle sessions", zap.Int("count", n))
			}
		case <-s.janitorStop:
			return
		}
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.cfg.AllowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging and request metrics
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequest(r.Method, route, status, elapsed)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("remote", r.RemoteAddr))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError writes err with its mapped status and code. Internal errors are
// logged and replaced with a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error, challenge *ChallengeView) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		message = "Internal server error"
	}
	s.jsonResponse(w, status, errorBody{
		Error:   message,
		Code:    ErrorCode(err),
		Captcha: challenge,
	})
}

// requestValidationError turns validator output into a bad request naming the first field
func requestValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ErrBadRequest{
			Field:   strings.ToLower(fe.Field()),
			Message: fmt.Sprintf("failed %s validation", fe.Tag()),
		}
	}
	return &ErrBadRequest{Message: err.Error()}
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		retryAfter := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = retryAfter
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Time("reset_at", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

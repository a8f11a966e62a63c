// Package server exposes the normalizer as an HTTP service: upload a
// table and a rule document, get the transformed table back as CSV.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tablewash/tablewash/internal/audit"
	"github.com/tablewash/tablewash/internal/cache"
	"github.com/tablewash/tablewash/internal/config"
	"github.com/tablewash/tablewash/internal/engine"
	"github.com/tablewash/tablewash/internal/logger"
	"github.com/tablewash/tablewash/internal/rules"
	"github.com/tablewash/tablewash/internal/ws"
)

// Server represents the normalization HTTP service.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	engine  *engine.Engine
	router  *mux.Router
	server  *http.Server
	hub     *ws.Hub
	cache   *cache.ResultCache
	audit   *audit.Store
	limiter *clientLimiter

	mu        sync.RWMutex
	ruleSet   rules.RuleSet
	ruleBytes []byte
}

// New creates a new server instance. When the configuration names a
// default rule document it is loaded eagerly; a document that fails
// validation fails startup rather than silently serving without rules.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: log.WithComponent("server"),
		engine: engine.New(cfg.Normalize, log.WithComponent("engine")),
		router: mux.NewRouter(),
		hub:    ws.NewHub(log.WithComponent("ws").Logger),
	}

	if cfg.Server.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.Server.RateLimit)
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		s.cache = resultCache
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		s.audit = store
	}

	if cfg.Server.RulesPath != "" {
		if err := s.loadRules(cfg.Server.RulesPath); err != nil {
			return nil, fmt.Errorf("failed to load rule document: %w", err)
		}
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.hub.ServeWS).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/normalize", s.handleNormalize).Methods("POST")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
}

// Start starts the HTTP server, the event hub, and the rule document
// watcher. It blocks until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("Starting tablewash server",
		zap.Int("port", s.config.Server.Port),
		zap.String("rules_path", s.config.Server.RulesPath),
		zap.Bool("cache", s.cache != nil),
		zap.Bool("audit", s.audit != nil))

	go s.hub.Run()

	if s.config.Server.RulesPath != "" {
		if err := s.watchRules(s.config.Server.RulesPath); err != nil {
			s.logger.Warn("Rule document watching disabled", zap.Error(err))
		}
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and closes collaborators.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping tablewash server")

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("Failed to close result cache", zap.Error(err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			s.logger.Warn("Failed to close audit store", zap.Error(err))
		}
	}

	return s.server.Shutdown(ctx)
}

// loadRules reads and validates the default rule document and swaps it
// in atomically.
func (s *Server) loadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rs, err := rules.LoadBytes(data, s.logger.WithComponent("rules"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ruleSet = rs
	s.ruleBytes = data
	s.mu.Unlock()

	s.logger.Info("Rule document loaded",
		zap.String("path", path),
		zap.Int("rules", len(rs)))

	return nil
}

// currentRules returns the active default rule set and its raw bytes.
func (s *Server) currentRules() (rules.RuleSet, []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ruleSet, s.ruleBytes
}

// watchRules reloads the default rule document when it changes on disk.
// A new document that fails validation keeps the previous rules active.
func (s *Server) watchRules(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors often replace the file, which drops
	// a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				reload := ws.RulesReloadedEvent{Path: path}
				if err := s.loadRules(path); err != nil {
					s.logger.Warn("Keeping previous rules after failed reload",
						zap.String("path", path), zap.Error(err))
					reload.Message = err.Error()
				} else {
					rs, _ := s.currentRules()
					reload.Valid = true
					reload.Rules = len(rs)
				}

				s.hub.BroadcastEvent(ws.Event{
					Type:      ws.EventTypeRulesReloaded,
					Timestamp: time.Now(),
					Data:      reload,
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Rule document watcher error", zap.Error(err))
			}
		}
	}()

	s.logger.Info("Watching rule document for changes", zap.String("path", path))
	return nil
}

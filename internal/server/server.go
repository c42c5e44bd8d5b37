package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/attention-is-key/internal/api"
	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/content"
	"github.com/kartoza/attention-is-key/internal/view"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	analyzer   attention.Analyzer
	sessions   *view.Store
	posts      *content.Store
	packMu     sync.Mutex
}

// New creates a new Server with all components initialized
func New(cfg config.Config, analyzer attention.Analyzer) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		analyzer: analyzer,
		sessions: view.NewStore(analyzer, cfg.AnalysisTimeout, cfg.SessionTTL),
	}

	// Content index lives in the data dir when one is configured
	dbPath := ""
	if cfg.DataDir != "" {
		dbPath = filepath.Join(cfg.DataDir, "content.db")
	}
	posts, err := content.NewStore(dbPath)
	if err != nil {
		log.Printf("Warning: content store not available: %v", err)
	} else {
		s.posts = posts
		s.loadSavedContentPack()
	}

	if err := s.sessions.Start(); err != nil {
		return nil, fmt.Errorf("failed to start session reaper: %w", err)
	}

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return api.LogRequests(s.router)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.analyzer, s.sessions, s.posts, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Content pack management routes
	apiRouter.HandleFunc("/contentpack/status", s.handleContentPackStatus).Methods("GET")
	apiRouter.HandleFunc("/contentpack/install", s.handleContentPackInstall).Methods("POST")

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("Warning: Could not load embedded static files: %v", err)
		return
	}

	// SPA fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server listening on http://localhost:%d", s.cfg.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Cancel in-flight analyses and close stores
	s.sessions.Stop()
	if s.posts != nil {
		if err := s.posts.Close(); err != nil {
			log.Printf("Error closing content store: %v", err)
		}
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Try to open the file
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	_, err := fs.Stat(h.staticContent, cleanPath)
	if err != nil {
		// File not found, serve index.html for SPA routing
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}

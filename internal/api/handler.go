package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/content"
	"github.com/kartoza/attention-is-key/internal/evolution"
	"github.com/kartoza/attention-is-key/internal/heatmap"
	"github.com/kartoza/attention-is-key/internal/httputil"
	"github.com/kartoza/attention-is-key/internal/models"
	"github.com/kartoza/attention-is-key/internal/render"
	"github.com/kartoza/attention-is-key/internal/view"
)

// Handler provides HTTP API endpoints
type Handler struct {
	analyzer attention.Analyzer
	sessions *view.Store
	posts    *content.Store
	cfg      config.Config
}

// NewHandler creates a new API handler. sessions and posts may be nil, in
// which case their routes report the feature as unavailable.
func NewHandler(
	analyzer attention.Analyzer,
	sessions *view.Store,
	posts *content.Store,
	cfg config.Config,
) *Handler {
	return &Handler{
		analyzer: analyzer,
		sessions: sessions,
		posts:    posts,
		cfg:      cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/models", h.handleListModels).Methods("GET")

	// Stateless analysis and rendering
	r.HandleFunc("/analyze", h.handleAnalyze).Methods("POST")
	r.HandleFunc("/render/heatmap", h.handleRenderHeatmap).Methods("POST")
	r.HandleFunc("/render/evolution", h.handleRenderEvolution).Methods("POST")

	// View sessions
	r.HandleFunc("/sessions", h.handleCreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.handleGetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/analyze", h.handleSessionAnalyze).Methods("POST")
	r.HandleFunc("/sessions/{id}/layer", h.handleSessionLayer).Methods("PUT")
	r.HandleFunc("/sessions/{id}/hover", h.handleSessionHover).Methods("POST")
	r.HandleFunc("/sessions/{id}/heatmap.svg", h.handleSessionHeatmap).Methods("GET")
	r.HandleFunc("/sessions/{id}/evolution.svg", h.handleSessionEvolution).Methods("GET")
	r.HandleFunc("/sessions/{id}/export", h.handleSessionExport).Methods("GET")

	// Blog content
	r.HandleFunc("/posts", h.handleListPosts).Methods("GET")
	r.HandleFunc("/posts/{id}", h.handleGetPost).Methods("GET")
	r.HandleFunc("/categories", h.handleListCategories).Methods("GET")

	// User settings
	r.HandleFunc("/settings", h.handleGetSettings).Methods("GET")
	r.HandleFunc("/settings", h.handleUpdateSettings).Methods("PUT")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.RespondJSON(w, status, data)
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	httputil.RespondError(w, status, message)
}

// respondAnalysisError reports a failed analysis. Analysis failures are
// always 500 with a machine-readable code.
func respondAnalysisError(w http.ResponseWriter, err error) {
	log.Printf("Analysis error: %v", err)
	respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Error: err.Error(),
		Code:  attention.Code(err),
	})
}

// respondSVG writes an SVG document, as an attachment when download is set
func respondSVG(w http.ResponseWriter, data []byte, filename string, download bool) {
	w.Header().Set("Content-Type", "image/svg+xml")
	if download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":       h.cfg.Version,
		"engine":        h.cfg.Engine,
		"max_tokens":    attention.MaxTokens,
		"layer_count":   attention.LayerCount,
		"posts_loaded":  h.posts != nil,
		"sessions_live": 0,
	}
	if h.sessions != nil {
		info["sessions_live"] = h.sessions.Len()
	}
	respondJSON(w, http.StatusOK, info)
}

// handleListModels returns the model catalog
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, attention.Models())
}

// analysisContext bounds a request by the configured analysis timeout
func (h *Handler) analysisContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.cfg.AnalysisTimeout > 0 {
		return context.WithTimeout(r.Context(), h.cfg.AnalysisTimeout)
	}
	return context.WithCancel(r.Context())
}

// decodeAnalyzeRequest reads the body, filling the model from saved settings when absent
func decodeAnalyzeRequest(r *http.Request) (models.AnalyzeRequest, error) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Model == "" {
		settings, err := config.LoadSettings()
		if err != nil {
			log.Printf("Warning: could not load settings: %v", err)
		}
		req.Model = settings.DefaultModel
	}
	return req, nil
}

// handleAnalyze runs a one-off analysis
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAnalyzeRequest(r)
	if err != nil {
		respondAnalysisError(w, err)
		return
	}

	ctx, cancel := h.analysisContext(r)
	defer cancel()

	res, err := h.analyzer.Analyze(ctx, req.ToRequest())
	if err != nil {
		respondAnalysisError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.FromResult(res))
}

// decodeResult reads an analysis response body and validates it
func decodeResult(r *http.Request) (*attention.Result, error) {
	var body models.AnalyzeResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return body.ToResult()
}

// handleRenderHeatmap renders one layer of a posted analysis as SVG
func (h *Handler) handleRenderHeatmap(w http.ResponseWriter, r *http.Request) {
	res, err := decodeResult(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	index := 0
	if v := r.URL.Query().Get("layer"); v != "" {
		index, err = strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "layer must be an integer")
			return
		}
	}
	layer := res.Layer(index)
	if layer == nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("layer %d out of range", index))
		return
	}

	scene, err := heatmap.Build(layer, res.ModelName)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeScene(w, r, scene, heatmap.ExportFilename(index))
}

// handleRenderEvolution renders the phrase chart of a posted analysis as SVG
func (h *Handler) handleRenderEvolution(w http.ResponseWriter, r *http.Request) {
	res, err := decodeResult(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.Phrase == nil {
		respondError(w, http.StatusBadRequest, "analysis has no phrase evolution")
		return
	}

	scene, err := evolution.Build(res.Phrase)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeScene(w, r, scene, evolution.ExportFilename)
}

func (h *Handler) writeScene(w http.ResponseWriter, r *http.Request, scene render.Scene, filename string) {
	surface := render.NewSurface()
	if err := surface.Mount(scene); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := surface.Export()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondSVG(w, data, filename, r.URL.Query().Get("download") == "1")
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/evolution"
	"github.com/kartoza/attention-is-key/internal/models"
	"github.com/kartoza/attention-is-key/internal/render"
	"github.com/kartoza/attention-is-key/internal/view"
)

// hoverRequest moves the pointer over an element of one chart. An empty
// target means the pointer left the chart.
type hoverRequest struct {
	Chart  string `json:"chart"`
	Target string `json:"target"`
}

func sessionState(sess *view.Session) models.SessionState {
	st := sess.State()
	return models.SessionState{
		ID:       st.ID,
		Pending:  st.Pending,
		Layer:    st.Layer,
		Error:    st.Error,
		Code:     st.Code,
		Analysis: models.FromResult(st.Result),
	}
}

// session resolves the {id} route variable, writing the error response itself
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*view.Session, bool) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "sessions not available")
		return nil, false
	}
	sess, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// handleCreateSession opens a new view session
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "sessions not available")
		return
	}
	respondJSON(w, http.StatusCreated, sessionState(h.sessions.Create()))
}

// handleGetSession returns the session state including its current result
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sessionState(sess))
}

// handleDeleteSession tears a session down, cancelling any pending request
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusServiceUnavailable, "sessions not available")
		return
	}
	if err := h.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionAnalyze submits an analysis for a session
func (h *Handler) handleSessionAnalyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	req, err := decodeAnalyzeRequest(r)
	if err != nil {
		respondAnalysisError(w, err)
		return
	}

	_, err = sess.Submit(r.Context(), req.ToRequest())
	switch {
	case errors.Is(err, view.ErrAnalysisPending):
		respondJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: "analysis_pending"})
	case errors.Is(err, view.ErrSessionClosed):
		respondError(w, http.StatusGone, err.Error())
	case err != nil:
		respondAnalysisError(w, err)
	default:
		respondJSON(w, http.StatusOK, sessionState(sess))
	}
}

// handleSessionLayer selects the displayed layer
func (h *Handler) handleSessionLayer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.LayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := sess.SelectLayer(req.Layer); err != nil {
		if errors.Is(err, attention.ErrRenderTargetMissing) {
			respondError(w, http.StatusConflict, "no analysis to display")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sessionState(sess))
}

// handleSessionHover mirrors pointer movement over a chart and returns the
// tooltips now visible
func (h *Handler) handleSessionHover(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req hoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var surface *render.Surface
	switch req.Chart {
	case "heatmap":
		surface = sess.Heatmap()
	case "evolution":
		surface = sess.Evolution()
	default:
		respondError(w, http.StatusBadRequest, "chart must be heatmap or evolution")
		return
	}

	if req.Target == "" {
		surface.HoverExit()
	} else {
		surface.HoverEnter(req.Target)
	}
	tips := surface.Tooltips()
	if tips == nil {
		tips = []render.Tooltip{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tooltips": tips})
}

// handleSessionHeatmap returns the mounted heatmap as SVG
func (h *Handler) handleSessionHeatmap(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	name, data, err := sess.ExportHeatmap()
	if err != nil {
		respondError(w, http.StatusNotFound, "no heatmap rendered")
		return
	}
	respondSVG(w, data, name, r.URL.Query().Get("download") == "1")
}

// handleSessionEvolution returns the mounted phrase chart as SVG
func (h *Handler) handleSessionEvolution(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := sess.Evolution().Export()
	if err != nil {
		respondError(w, http.StatusNotFound, "no phrase evolution rendered")
		return
	}
	respondSVG(w, data, evolution.ExportFilename, r.URL.Query().Get("download") == "1")
}

// handleSessionExport downloads the current layer's heatmap
func (h *Handler) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	name, data, err := sess.ExportHeatmap()
	if err != nil {
		respondError(w, http.StatusNotFound, "no heatmap rendered")
		return
	}
	respondSVG(w, data, name, true)
}

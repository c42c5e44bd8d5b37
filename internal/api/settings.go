package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/config"
)

// handleGetSettings returns the saved user settings
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Warning: could not load settings: %v", err)
	}
	respondJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings saves user settings
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Warning: could not load settings: %v", err)
	}
	var req struct {
		DefaultModel    *string `json:"default_model"`
		CaseInsensitive *bool   `json:"case_insensitive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DefaultModel != nil {
		settings.DefaultModel = *req.DefaultModel
	}
	if req.CaseInsensitive != nil {
		settings.CaseInsensitive = *req.CaseInsensitive
	}

	if err := config.SaveSettings(settings); err != nil {
		if errors.Is(err, attention.ErrInvalidModel) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

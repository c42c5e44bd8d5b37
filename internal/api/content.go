package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kartoza/attention-is-key/internal/content"
)

// handleListPosts returns posts filtered by ?q= and ?category=
func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if h.posts == nil {
		respondJSON(w, http.StatusOK, []*content.Post{})
		return
	}
	q := r.URL.Query()
	posts, err := h.posts.Search(q.Get("q"), q.Get("category"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, posts)
}

// handleGetPost returns a single post with its content
func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	if h.posts == nil {
		respondError(w, http.StatusNotFound, "no posts loaded")
		return
	}
	post, err := h.posts.Get(mux.Vars(r)["id"])
	if errors.Is(err, content.ErrPostNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// handleListCategories returns the category filter options
func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, append([]string{"all"}, content.Categories...))
}

// Package web serves the run status endpoints.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/summonlabs/summon/internal/runstore"
)

// Handler serves run records as JSON.
type Handler struct {
	store *runstore.Store
}

func NewHandler(store *runstore.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers the run status routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/runs", h.handleRunList).Methods("GET")
	r.HandleFunc("/runs/{id}", h.handleRunDetail).Methods("GET")
}

func (h *Handler) handleRunList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

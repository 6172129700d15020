package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/madshubh27/Crotex/document"
	"github.com/madshubh27/Crotex/store"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// API is the REST surface next to the websocket relay: drawing CRUD for the
// client's save/load flows, plus a health endpoint.
type API struct {
	store  store.Store
	hub    *Hub
	secret []byte
}

// NewRouter wires the REST routes and the /ws endpoint onto one router.
func NewRouter(st store.Store, hub *Hub, secret []byte) *mux.Router {
	api := &API{store: st, hub: hub, secret: secret}

	r := mux.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ServeWS(hub, w, req)
	})
	r.HandleFunc("/api/health", api.health).Methods(http.MethodGet)
	r.HandleFunc("/api/drawings", authRequired(secret, api.listDrawings)).Methods(http.MethodGet)
	r.HandleFunc("/api/drawings/{sessionID}", authRequired(secret, api.getDrawing)).Methods(http.MethodGet)
	r.HandleFunc("/api/drawings/{sessionID}", authRequired(secret, api.saveDrawing)).Methods(http.MethodPost)
	r.HandleFunc("/api/drawings/{sessionID}", authRequired(secret, api.deleteDrawing)).Methods(http.MethodDelete)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Server is running",
	})
}

func (a *API) saveDrawing(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	var body struct {
		Data document.Snapshot `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "Invalid request body"})
		return
	}
	if err := a.store.Upsert(r.Context(), sessionID, body.Data, principal(r.Context())); err != nil {
		log.Printf("[api] save drawing %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error while saving drawing"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Drawing saved successfully",
		Data:    map[string]any{"sessionId": sessionID, "elementCount": len(body.Data)},
	})
}

func (a *API) getDrawing(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	d, err := a.store.FindBySessionID(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiResponse{Message: "Drawing not found for this session"})
		return
	}
	if err != nil {
		log.Printf("[api] get drawing %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error while retrieving drawing"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{"drawing": d}})
}

func (a *API) listDrawings(w http.ResponseWriter, r *http.Request) {
	drawings, err := a.store.ListByOwner(r.Context(), principal(r.Context()))
	if err != nil {
		log.Printf("[api] list drawings: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error while retrieving drawings"})
		return
	}
	if drawings == nil {
		drawings = []store.Drawing{}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{"drawings": drawings}})
}

func (a *API) deleteDrawing(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	d, err := a.store.FindBySessionID(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiResponse{Message: "Drawing not found"})
		return
	}
	if err != nil {
		log.Printf("[api] delete drawing %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error while deleting drawing"})
		return
	}
	if d.Owner != principal(r.Context()) {
		writeJSON(w, http.StatusForbidden, apiResponse{Message: "Only the owner can delete this drawing"})
		return
	}
	if err := a.store.Delete(r.Context(), sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[api] delete drawing %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error while deleting drawing"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Drawing deleted successfully"})
}

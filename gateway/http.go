package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brensch/snekarena/room"
)

type RoomsResponse struct {
	Rooms []room.Info `json:"rooms"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Rooms    int    `json:"rooms"`
	Sessions int    `json:"sessions"`
}

// RegisterRoutes sets up the websocket endpoint and the HTTP API on mux.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("/api/rooms", g.handleRooms)
	mux.HandleFunc("/healthz", g.handleHealth)
}

// Handler returns a mux with every route registered.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.RegisterRoutes(mux)
	return mux
}

// handleRooms lists public rooms; ?all=1 includes private and empty ones.
func (g *Gateway) handleRooms(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := RoomsResponse{Rooms: []room.Info{}}
	if parseBoolQuery(r, "all") {
		for _, rm := range g.reg.Rooms() {
			resp.Rooms = append(resp.Rooms, rm.Info())
		}
	} else {
		resp.Rooms = append(resp.Rooms, g.reg.ListPublicRooms()...)
	}
	writeJSON(w, resp)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		Status:   "ok",
		Rooms:    len(g.reg.Rooms()),
		Sessions: g.sessions.Len(),
	})
}

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func parseBoolQuery(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

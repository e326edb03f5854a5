package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxCommandBody = 4096

type commandRequest struct {
	Command string `json:"command"`
}

func (h *routerHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.game.Info())
}

func (h *routerHandlers) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players := h.game.Players()
	writeJSON(w, map[string]any{
		"count":   len(players),
		"players": players,
	})
}

// handleCommand queues a server command. The result is delivered on the
// console stream, so the response only says whether it was accepted.
func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	line := strings.TrimSpace(req.Command)
	if line == "" {
		writeError(w, "command is required", http.StatusBadRequest)
		return
	}
	if !h.game.Submit(line) {
		writeError(w, "command queue is full", http.StatusServiceUnavailable)
		return
	}
	h.log.Info().Str("command", line).Str("ip", ClientIP(r)).Msg("admin command")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"queued": true})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

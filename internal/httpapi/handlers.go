package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaceRockman/rulette-server/internal/hub"
	"github.com/JaceRockman/rulette-server/internal/lobby"
)

// CreateLobby makes a lobby out-of-band. The returned player id is the
// seated host; the client attaches its websocket afterward.
func CreateLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerName string `json:"playerName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerName == "" {
			http.Error(w, "playerName required", http.StatusBadRequest)
			return
		}

		playerID := uuid.NewString()
		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.CreateLobby{HostID: playerID, HostName: req.PlayerName, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			PlayerID string `json:"playerId"`
			Code     string `json:"code"`
		}{PlayerID: playerID, Code: lb.Code()})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

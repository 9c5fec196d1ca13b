package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/server"
)

const queryTimeout = 2 * time.Second

// Status queries the loop for a snapshot and renders it as JSON.
func Status(srv *server.Server, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan server.Status, 1)
		select {
		case srv.Inbox() <- server.StatusQuery{Reply: reply}:
		case <-time.After(queryTimeout):
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}

		select {
		case status := <-reply:
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(status); err != nil {
				logger.Warn("status encode failed", zap.Error(err))
			}
		case <-time.After(queryTimeout):
			http.Error(w, "server busy", http.StatusServiceUnavailable)
		}
	}
}

// ABOUTME: WebSocket status feed for the control surface
// ABOUTME: Pushes the status snapshot to each subscriber once a second
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The control surface serves trusted local networks only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades the connection and streams status snapshots
// until the client goes away or the server stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// An immediate first snapshot, then one per tick.
	if err := conn.WriteJSON(s.statusSnapshot()); err != nil {
		return
	}

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
		}

		if err := conn.WriteJSON(s.statusSnapshot()); err != nil {
			return
		}
	}
}

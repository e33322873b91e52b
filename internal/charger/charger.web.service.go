// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package charger

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"chargerd/pkg/logger"

	"github.com/gorilla/websocket"
)

// StartRequest is the optional body for POST /api/start.
type StartRequest struct {
	TargetMA float64 `json:"target_ma,omitempty"`
}

type ClientSync struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
}

var clients = ClientSync{clients: make(map[*websocket.Conn]bool)}

func (c *ClientSync) broadcast(pm *websocket.PreparedMessage, log *logger.Logger) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		if err := ws.WritePreparedMessage(pm); err != nil {
			log.Error("failed to write message: %v", err)
			ws.Close()
			delete(c.clients, ws)
		}
	}
}

func (c *ClientSync) add(ws *websocket.Conn) {
	c.mutex.Lock()
	c.clients[ws] = true
	c.mutex.Unlock()
}

func (c *ClientSync) remove(ws *websocket.Conn) {
	c.mutex.Lock()
	delete(c.clients, ws)
	c.mutex.Unlock()
}

func (s *Service) buildHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleAPIStatus)
	mux.HandleFunc("/api/start", s.handleAPIStart)
	mux.HandleFunc("/api/stop", s.handleAPIStop)
	mux.HandleFunc("/ws", s.serveWebSockets())
	return mux
}

func (s *Service) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.log.Error("failed to encode status: %v", err)
	}
}

func (s *Service) handleAPIStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRequest
	if r.Body != nil {
		// an empty body selects the configured charge current
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	s.Start(req.TargetMA)
	s.handleAPIStatus(w, r)
}

func (s *Service) handleAPIStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Stop()
	s.handleAPIStatus(w, r)
}

func (s *Service) serveWebSockets() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			s.log.Debug("checking origin: %s", origin)
			if origin == "" {
				return false
			}
			if strings.Contains(origin, "localhost") {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("failed to upgrade websocket: %v", err)
			return
		}
		clients.add(ws)
		defer func() {
			clients.remove(ws)
			ws.Close()
		}()

		// push the current state so a new panel isn't blank until
		// the next tick
		if data, err := json.Marshal(s.Status()); err == nil {
			_ = ws.WriteMessage(websocket.TextMessage, data)
		}

		// the panel is read-only over the socket; control goes
		// through the REST endpoints. Drain until the client leaves.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					break
				}
				s.log.Debug("ws read ended: %v", err)
				break
			}
		}
	}
}

func webAppBroadcast(status Status) {
	log := logger.New("ChargerWeb")
	data, err := json.Marshal(status)
	if err != nil {
		log.Error("failed to marshal broadcast: %v", err)
		return
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		log.Error("failed to prepare message: %v", err)
		return
	}
	clients.broadcast(pm, log)
}

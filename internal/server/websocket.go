package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/rubybox/internal/catalog"
	"github.com/michaelbrown/rubybox/internal/runner"
)

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Version string `json:"version"`
}

// wsOutgoing is a message to the client. The embedded envelope fields are
// flattened next to type.
type wsOutgoing struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	*runner.Result
	*catalog.Snapshot
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.cfg.Server.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	// Messages are handled one at a time, so writes never overlap.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read", zap.Error(err))
			}
			return
		}

		var msg wsIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			s.wsWriteJSON(conn, wsOutgoing{Type: "error", Message: "invalid message: " + err.Error()})
			continue
		}

		switch msg.Type {
		case "execute":
			res := s.run(r.Context(), msg.Code, msg.Version)
			s.wsWriteJSON(conn, wsOutgoing{Type: "result", Result: &res})
		case "versions":
			snap, err := s.runner.AvailableVersions(r.Context())
			if err != nil {
				s.wsWriteJSON(conn, wsOutgoing{Type: "error", Message: err.Error()})
				continue
			}
			s.wsWriteJSON(conn, wsOutgoing{Type: "versions", Snapshot: &snap})
		default:
			s.wsWriteJSON(conn, wsOutgoing{Type: "error", Message: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("websocket marshal", zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("websocket write", zap.Error(err))
	}
}

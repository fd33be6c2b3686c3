package websocket

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"classboard/internal/config"
	"classboard/pkg/interfaces"
	"classboard/pkg/types"
)

// Handler upgrades HTTP requests into student and teacher connections.
// Teacher connects are gated before the upgrade, so an unauthorized
// caller gets a plain 401 with a distinguishable reason instead of a
// WebSocket close code it would have to decode.
type Handler struct {
	coordinator interfaces.Coordinator
	gate        interfaces.Authorizer
	cfg         *config.WebSocketConfig
	upgrader    websocket.Upgrader
}

// NewHandler builds the WebSocket handler.
func NewHandler(coordinator interfaces.Coordinator, gate interfaces.Authorizer, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		coordinator: coordinator,
		gate:        gate,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the HTTP layer's CORS
				// middleware; the browser clients connect cross-origin.
				return true
			},
		},
	}
}

// HandleStudent serves GET /ws/student. Students are admitted without
// credentials; their asserted identity travels inside each envelope.
func (h *Handler) HandleStudent(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, types.RoleStudent)
}

// HandleTeacher serves GET /ws/teacher. The credential comes as a
// "token" or "password" query parameter or an Authorization bearer
// header, and is checked once, here; the grant lasts until the
// connection closes.
func (h *Handler) HandleTeacher(w http.ResponseWriter, r *http.Request) {
	credential := teacherCredential(r)
	if _, err := h.gate.Authorize(r.Context(), credential); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.serve(w, r, types.RoleTeacher)
}

func teacherCredential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if password := r.URL.Query().Get("password"); password != "" {
		return password
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, role string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(ws, uuid.NewString(), role, h.cfg.BufferSize, h.cfg.WriteTimeout)

	if err := h.coordinator.Register(conn); err != nil {
		log.Printf("failed to register %s connection: %v", role, err)
		_ = conn.Close()
		return
	}

	go h.readPump(conn, ws)
}

// readPump owns the inbound side of one connection: keepalive deadlines
// and forwarding raw frames to the coordinator. It never decodes; a
// malformed frame is the coordinator's call to make.
func (h *Handler) readPump(conn *Connection, ws *websocket.Conn) {
	defer func() {
		if err := h.coordinator.Unregister(conn.ID()); err != nil {
			log.Printf("failed to unregister %s: %v", conn.ID(), err)
		}
		_ = conn.Close()
	}()

	ws.SetReadLimit(h.cfg.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error on %s: %v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.coordinator.Dispatch(conn, data); err != nil {
			log.Printf("dropping connection %s, dispatch failed: %v", conn.ID(), err)
			return
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

// WSHandler upgrades HTTP requests to websockets and translates the live
// protocol into coordinator calls. Each connection gets a process-unique id
// that doubles as its player/host handle inside the coordinator.
type WSHandler struct {
	coordinator *app.Coordinator
	hub         *Hub
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *app.Coordinator, hub *Hub) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// One request shape per operation; fields are validated here at the boundary
// so the coordinator only ever sees well-formed intents.
type joinRoomRequest struct {
	Code        string `json:"code"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type gameActionRequest struct {
	Code string `json:"code"`
}

type submitAnswerRequest struct {
	Code             string `json:"code"`
	QuestionIndex    int    `json:"question_index"`
	SelectedOptionID string `json:"selected_option_id"`
}

// ServeWS runs one connection's read loop. Outbound traffic flows through
// the hub's per-connection writer; the loop here only reads, dispatches, and
// reports failures back to this connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	h.hub.register(connID, conn)
	defer func() {
		h.hub.unregister(connID)
		if err := h.coordinator.Disconnect(context.Background(), connID); err != nil {
			log.Printf("ws: disconnect %s: %v", connID, err)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		h.dispatch(r.Context(), connID, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, inbound inboundMessage) {
	var err error
	switch inbound.Type {
	case domain.EventJoinRoom:
		var req joinRoomRequest
		if err = decode(inbound.Payload, &req); err == nil {
			// Room membership comes first so the join's own roster
			// broadcast reaches the joining connection too.
			h.hub.joinRoom(req.Code, connID)
			err = h.coordinator.Join(ctx, app.JoinParams{
				Code:        req.Code,
				ConnID:      connID,
				Role:        req.Role,
				DisplayName: req.DisplayName,
			})
			if err != nil {
				h.hub.leaveRoom(connID)
			}
		}
	case domain.EventStartGame:
		var req gameActionRequest
		if err = decode(inbound.Payload, &req); err == nil {
			err = h.coordinator.Start(ctx, req.Code, connID)
		}
	case domain.EventSubmitAnswer:
		var req submitAnswerRequest
		if err = decode(inbound.Payload, &req); err == nil {
			err = h.coordinator.SubmitAnswer(ctx, app.SubmitParams{
				Code:             req.Code,
				ConnID:           connID,
				QuestionIndex:    req.QuestionIndex,
				SelectedOptionID: req.SelectedOptionID,
			})
		}
	case domain.EventNextQuestion:
		var req gameActionRequest
		if err = decode(inbound.Payload, &req); err == nil {
			err = h.coordinator.Advance(ctx, req.Code, connID)
		}
	case domain.EventEndGame:
		var req gameActionRequest
		if err = decode(inbound.Payload, &req); err == nil {
			err = h.coordinator.End(ctx, req.Code, connID)
		}
	default:
		h.hub.ToConn(connID, domain.Event{
			Type:    domain.EventError,
			Payload: domain.ErrorPayload{Detail: "unsupported message type"},
		})
		return
	}

	if err != nil {
		h.hub.ToConn(connID, domain.Event{
			Type:    domain.EventError,
			Payload: domain.ErrorPayload{Detail: publicDetail(err)},
		})
	}
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return domain.ErrInvalidInput
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/chat"
	"ms-coaching/internal/chat/ws"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/models"
	"ms-coaching/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	ChatService *chat.Service
	Hub         *ws.Hub
	Logger      *logger.Logger
}

// OpenConversation gets or creates the chat channel for a booking.
func (h *Handler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	conv, err := h.ChatService.GetOrCreateConversation(r.Context(), bookingID, auth.UserID(r.Context()))
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Conversation", conv))
}

// SendMessage accepts a message over plain HTTP; the websocket room gets
// the fan-out as well so REST-only clients stay first class.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")

	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	msg, err := h.ChatService.SendMessage(conversationID, auth.UserID(r.Context()), req)
	if err != nil {
		writeChatError(w, err)
		return
	}

	if room := h.Hub.GetRoom(conversationID); room != nil {
		room.BroadcastAll(messagePayload(msg))
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Message sent", msg))
}

// GetMessages returns the conversation history, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")

	messages, err := h.ChatService.GetMessages(conversationID, auth.UserID(r.Context()))
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Messages", messages))
}

// ConversationWS upgrades to a websocket scoped to one conversation. The
// participant check happens before the upgrade so rejected callers get a
// proper HTTP status.
func (h *Handler) ConversationWS(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")
	userID := auth.UserID(r.Context())

	if _, err := h.ChatService.GetConversation(conversationID, userID); err != nil {
		writeChatError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("CHAT", fmt.Sprintf("WebSocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	client := ws.NewClient(userID)
	room := h.Hub.GetOrCreateRoom(conversationID)
	room.Join(client)
	defer func() {
		room.Leave(client)
		client.Close()
		if room.ClientCount() == 0 {
			h.Hub.RemoveRoom(conversationID)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.writePump(client, conn)
	h.readPump(client, room, conn, conversationID, userID)
}

func (h *Handler) writePump(client *ws.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(client *ws.Client, room *ws.Room, conn *websocket.Conn, conversationID, userID string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("CHAT", fmt.Sprintf("WebSocket read error: %v", err))
			}
			break
		}

		var incoming struct {
			Type string `json:"type"`
			Body string `json:"body"`
		}
		if json.Unmarshal(raw, &incoming) != nil || incoming.Type != "message" {
			continue
		}

		msg, err := h.ChatService.SendMessage(conversationID, userID, models.MessageRequest{Body: incoming.Body})
		if err != nil {
			h.Logger.Warn("CHAT", fmt.Sprintf("Failed to store websocket message: %v", err))
			continue
		}

		room.Broadcast(client, messagePayload(msg))
	}
}

func messagePayload(msg *models.Message) map[string]interface{} {
	return map[string]interface{}{
		"type":            "message",
		"message_id":      msg.MessageID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"body":            msg.Body,
		"created_at":      msg.CreatedAt,
	}
}

func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid message", err.Error()))
	case errors.Is(err, chat.ErrBookingNotFound), errors.Is(err, chat.ErrConversationNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	case errors.Is(err, chat.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Not allowed", err.Error()))
	case errors.Is(err, chat.ErrChatNotAllowed):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Chat unavailable", err.Error()))
	case errors.Is(err, chat.ErrLockContended):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("Try again", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Chat operation failed", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

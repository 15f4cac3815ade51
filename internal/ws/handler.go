package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"barber_queue/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventHandler обрабатывает события соединения. Реализуется шлюзом очереди.
type EventHandler interface {
	OnConnect(ctx context.Context, conn Conn, providerID string) error
	OnMessage(ctx context.Context, conn Conn, msg Inbound)
}

// Апгрейдер с разрешением всех источников, CORS решается на уровне роутера.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler обновляет соединение до WebSocket и регистрирует клиента в Hub.
// URL-пример: /ws?providerId={id} или /api/providers/{providerId}/ws
func Handler(hub *Hub, events EventHandler, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID := c.Query("providerId")
		if providerID == "" {
			providerID = c.Param("providerId")
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка обновления до WebSocket")
			return
		}

		if providerID == "" {
			reject(conn, response.ErrorResponse{
				Code:    response.CodeNoProvider,
				Message: "Не указан идентификатор мастера",
				Details: ErrMissingProvider.Error(),
			})
			return
		}

		client := NewClient(conn)
		if err := hub.Register(client, providerID); err != nil {
			_ = conn.Close()
			return
		}
		clientLog := log.With().Str("conn_id", client.ID()).Str("provider_id", providerID).Logger()
		clientLog.Debug().Msg("Клиент подключен")

		go client.writePump()

		ctx := c.Request.Context()
		if err := events.OnConnect(ctx, client, providerID); err != nil {
			clientLog.Warn().Err(err).Msg("Не удалось отправить начальное состояние очереди")
		}

		client.readPump(func(raw []byte) {
			var msg Inbound
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
				ReplyError(client, response.ErrorResponse{
					Code:    response.CodeValidation,
					Message: "Некорректное сообщение",
				})
				return
			}
			events.OnMessage(ctx, client, msg)
		})

		hub.Unregister(client)
		clientLog.Debug().Msg("Клиент отключен")
	}
}

// ReplyError отправляет событие ERROR только отправителю.
func ReplyError(conn Conn, e response.ErrorResponse) {
	if msg, err := Encode(EventError, e); err == nil {
		_ = conn.Send(msg)
	}
}

// reject сообщает причину и закрывает соединение, которое нельзя зарегистрировать.
func reject(conn *websocket.Conn, e response.ErrorResponse) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if msg, err := Encode(EventError, e); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrMissingProvider.Error()))
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"barber_queue/internal/async"
	"barber_queue/internal/broadcast"
	"barber_queue/internal/models"
	"barber_queue/internal/notify"
	"barber_queue/internal/queue"
	"barber_queue/internal/response"
	"barber_queue/internal/status"
	"barber_queue/internal/ws"

	"github.com/rs/zerolog"
)

// Gateway связывает события реального времени с ядром очереди.
// Мутация ждётся синхронно, рассылка и push-уведомления уходят в фон.
type Gateway struct {
	coordinator *queue.Coordinator
	engine      *broadcast.Engine
	notifier    *notify.Dispatcher
	status      *status.Controller
	tasks       *async.Group
	log         zerolog.Logger
}

func NewGateway(
	coordinator *queue.Coordinator,
	engine *broadcast.Engine,
	notifier *notify.Dispatcher,
	statusCtl *status.Controller,
	tasks *async.Group,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		coordinator: coordinator,
		engine:      engine,
		notifier:    notifier,
		status:      statusCtl,
		tasks:       tasks,
		log:         log,
	}
}

// OnConnect отправляет новому клиенту текущую очередь и статус.
func (g *Gateway) OnConnect(ctx context.Context, conn ws.Conn, providerID string) error {
	return g.engine.SendSnapshot(ctx, conn, providerID)
}

// OnMessage разбирает входящее событие. Ошибки возвращаются только отправителю.
func (g *Gateway) OnMessage(ctx context.Context, conn ws.Conn, msg ws.Inbound) {
	var err error
	switch msg.Event {
	case ws.EventJoinQueue:
		var req ws.JoinQueue
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.Join(ctx, req.ProviderID, req.UserID)
		}
	case ws.EventLeaveQueue:
		var req ws.LeaveQueue
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.Leave(ctx, req.EntryID, req.ProviderID)
		}
	case ws.EventToggleStatus:
		var req ws.ToggleStatus
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.ToggleStatus(ctx, req.ProviderID)
		}
	default:
		ws.ReplyError(conn, response.ErrorResponse{
			Code:    response.CodeUnknownEvent,
			Message: "Неизвестное событие",
			Details: msg.Event,
		})
		return
	}

	if err != nil {
		g.log.Warn().Err(err).Str("event", msg.Event).Str("conn_id", conn.ID()).Msg("Событие отклонено")
		ws.ReplyError(conn, errorResponse(err))
	}
}

// Join ставит пользователя в очередь и рассылает обновлённую очередь.
func (g *Gateway) Join(ctx context.Context, providerID, userID string) (models.QueueEntry, error) {
	entry, err := g.coordinator.Join(ctx, providerID, userID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	g.tasks.Go(ctx, "join-broadcast", func(ctx context.Context) error {
		return g.engine.BroadcastSnapshot(ctx, providerID)
	})
	return entry, nil
}

// Leave удаляет запись, рассылает очередь и уведомляет тех, кто сдвинулся.
func (g *Gateway) Leave(ctx context.Context, entryID, providerID string) (queue.LeaveResult, error) {
	res, err := g.coordinator.Leave(ctx, entryID, providerID)
	if err != nil {
		return queue.LeaveResult{}, err
	}
	g.tasks.Go(ctx, "leave-broadcast", func(ctx context.Context) error {
		return g.engine.BroadcastSnapshot(ctx, providerID)
	})
	g.tasks.Go(ctx, "leave-notify", func(ctx context.Context) error {
		g.notifier.NotifyPositionChanges(ctx, providerID, res.Before, res.After)
		return nil
	})
	return res, nil
}

// ToggleStatus переключает статус; рассылку и объявление запускает контроллер.
func (g *Gateway) ToggleStatus(ctx context.Context, providerID string) (status.Transition, error) {
	return g.status.Toggle(ctx, providerID)
}

// Wait дожидается всех фоновых рассылок.
func (g *Gateway) Wait() {
	g.tasks.Wait()
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return queue.ErrValidation
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(queue.ErrValidation, err)
	}
	return nil
}

func errorResponse(err error) response.ErrorResponse {
	switch {
	case errors.Is(err, queue.ErrValidation), errors.Is(err, status.ErrValidation):
		return response.ErrorResponse{Code: response.CodeValidation, Message: "Ошибка валидации данных", Details: err.Error()}
	case errors.Is(err, queue.ErrEntryNotFound):
		return response.ErrorResponse{Code: response.CodeEntryNotFound, Message: "Запись в очереди не найдена"}
	default:
		return response.ErrorResponse{Code: response.CodeDB, Message: "Операция не выполнена", Details: err.Error()}
	}
}

var _ ws.EventHandler = (*Gateway)(nil)

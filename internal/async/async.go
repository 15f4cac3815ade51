// Package async запускает фоновые задачи, которые вызывающий не ждёт,
// но которые можно дождаться через Wait (при остановке сервера и в тестах).
package async

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Group struct {
	wg  sync.WaitGroup
	log zerolog.Logger
}

func NewGroup(log zerolog.Logger) *Group {
	return &Group{log: log}
}

// Go запускает fn в отдельной горутине. Контекст отвязан от отмены запроса,
// чтобы рассылка не обрывалась после ответа клиенту. Ошибка только логируется.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	bg := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error().Str("task", name).Interface("panic", r).Msg("Паника в фоновой задаче")
			}
		}()
		if err := fn(bg); err != nil {
			g.log.Error().Err(err).Str("task", name).Msg("Фоновая задача завершилась с ошибкой")
		}
	}()
}

// Wait блокируется до завершения всех запущенных задач.
func (g *Group) Wait() {
	g.wg.Wait()
}

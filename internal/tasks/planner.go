// Package tasks содержит периодические задачи сервиса.
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepTimeout = time.Minute

// Repairer перенумеровывает очереди (queue.Coordinator).
type Repairer interface {
	Providers(ctx context.Context) ([]string, error)
	Renumber(ctx context.Context, providerID string) (bool, error)
}

// Broadcaster рассылает исправленную очередь подключенным клиентам.
type Broadcaster interface {
	BroadcastSnapshot(ctx context.Context, providerID string) error
}

type Planner struct {
	repairer    Repairer
	broadcaster Broadcaster
	log         zerolog.Logger
}

func NewPlanner(repairer Repairer, broadcaster Broadcaster, log zerolog.Logger) *Planner {
	return &Planner{repairer: repairer, broadcaster: broadcaster, log: log}
}

// RepairPositions проходит по всем очередям и восстанавливает позиции 1..N,
// если после сбоя или ручного вмешательства в БД появились дыры.
// Возвращает число исправленных очередей.
func (p *Planner) RepairPositions(ctx context.Context) int {
	providers, err := p.repairer.Providers(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Ошибка при поиске очередей для проверки")
		return 0
	}

	repaired := 0
	for _, providerID := range providers {
		changed, err := p.repairer.Renumber(ctx, providerID)
		if err != nil {
			p.log.Error().Err(err).Str("provider_id", providerID).Msg("Ошибка перенумерации очереди")
			continue
		}
		if !changed {
			continue
		}
		repaired++
		p.log.Warn().Str("provider_id", providerID).Msg("Позиции в очереди восстановлены")
		if p.broadcaster != nil {
			if err := p.broadcaster.BroadcastSnapshot(ctx, providerID); err != nil {
				p.log.Error().Err(err).Str("provider_id", providerID).Msg("Ошибка рассылки исправленной очереди")
			}
		}
	}

	p.log.Debug().Int("queues", len(providers)).Int("repaired", repaired).Msg("Проверка очередей завершена")
	return repaired
}

// InitScheduler инициализирует планировщик cron-задач. Пустое расписание отключает проверку.
func InitScheduler(schedule string, p *Planner, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())

	if schedule != "" {
		_, err := c.AddFunc(schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			p.RepairPositions(ctx)
		})
		if err != nil {
			return nil, err
		}
	}

	c.Start()
	log.Info().Str("schedule", schedule).Msg("Cron-планировщик запущен")
	return c, nil
}

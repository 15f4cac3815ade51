package handlers

import (
	"context"
	"net/http"
	"sort"

	"barber_queue/internal/broadcast"
	"barber_queue/internal/response"

	"github.com/gin-gonic/gin"
)

// GetQueueHandler возвращает текущую очередь мастера
// @Summary		Получение очереди мастера
// @Description	Возвращает записи очереди по возрастанию позиции и статус мастера
// @Tags			queue
// @Produce		json
// @Param			providerId	path		string	true	"ID мастера"
// @Success		200	{object}	broadcast.Snapshot	"Текущая очередь"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/providers/{providerId}/queue [get]
func GetQueueHandler(engine *broadcast.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID := c.Param("providerId")

		snap, err := engine.Snapshot(c.Request.Context(), providerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    response.CodeDB,
				Message: "Ошибка загрузки очереди",
				Details: err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

// ProviderLister перечисляет мастеров, у которых есть записи (queue.Coordinator).
type ProviderLister interface {
	Providers(ctx context.Context) ([]string, error)
}

// ListProvidersHandler возвращает все непустые очереди
// @Summary		Очереди всех мастеров
// @Description	Для каждого мастера с записями возвращает очередь по возрастанию позиции и статус
// @Tags			queue
// @Produce		json
// @Success		200	{array}		broadcast.Snapshot
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/providers [get]
func ListProvidersHandler(providers ProviderLister, engine *broadcast.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		snaps, err := providerSnapshots(ctx, providers, engine)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    response.CodeDB,
				Message: "Ошибка загрузки очередей",
				Details: err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, snaps)
	}
}

func providerSnapshots(ctx context.Context, providers ProviderLister, engine *broadcast.Engine) ([]broadcast.Snapshot, error) {
	ids, err := providers.Providers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	snaps := make([]broadcast.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := engine.Snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"barber_queue/internal/auth"
	"barber_queue/internal/models"
	"barber_queue/internal/response"
	"barber_queue/internal/storage"

	"github.com/gin-gonic/gin"
)

// SubscriptionKeys содержит ключи шифрования из PushSubscription.toJSON() браузера.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// SubscriptionRequest описывает тело запроса на сохранение push-подписки.
type SubscriptionRequest struct {
	Endpoint string           `json:"endpoint" binding:"required" example:"https://fcm.googleapis.com/fcm/send/abc"`
	Keys     SubscriptionKeys `json:"keys" binding:"required"`
	UserID   string           `json:"userId" example:"u-42"`
}

type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// SaveSubscriptionHandler сохраняет push-подписку устройства
// @Summary		Сохранение push-подписки
// @Description	Создаёт или обновляет подписку по endpoint. При включённой авторизации userId берётся из токена
// @Tags			push
// @Accept			json
// @Produce		json
// @Param			input	body		SubscriptionRequest	true	"Подписка браузера"
// @Success		201	{object}	response.SuccessResponse	"Подписка сохранена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/push/subscriptions [post]
func SaveSubscriptionHandler(subs storage.SubscriptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    response.CodeValidation,
				Message: "Ошибка валидации данных",
				Details: err.Error(),
			})
			return
		}

		userID := c.GetString(auth.ContextUserID)
		if userID == "" {
			userID = req.UserID
		}

		err := subs.Save(c.Request.Context(), models.PushSubscription{
			Endpoint: req.Endpoint,
			P256dh:   req.Keys.P256dh,
			Auth:     req.Keys.Auth,
			UserID:   userID,
		})
		switch {
		case errors.Is(err, models.ErrInvalidSubscription):
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    response.CodeValidation,
				Message: "Ошибка валидации данных",
				Details: err.Error(),
			})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    response.CodeDB,
				Message: "Ошибка сохранения подписки",
				Details: err.Error(),
			})
			return
		}

		c.JSON(http.StatusCreated, response.SuccessResponse{Message: "Подписка сохранена"})
	}
}

// DeleteSubscriptionHandler удаляет подписку (пользователь отключил уведомления).
// При включённой авторизации удалить можно только подписку своего устройства.
// @Summary		Удаление push-подписки
// @Tags			push
// @Accept			json
// @Produce		json
// @Param			input	body		SubscriptionRequest	true	"Подписка браузера"
// @Success		200	{object}	response.SuccessResponse
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Подписка не найдена (SUBSCRIPTION_NOT_FOUND)"
// @Router			/api/push/subscriptions [delete]
func DeleteSubscriptionHandler(subs storage.SubscriptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Endpoint string `json:"endpoint" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    response.CodeValidation,
				Message: "Ошибка валидации данных",
				Details: err.Error(),
			})
			return
		}

		if userID := c.GetString(auth.ContextUserID); userID != "" {
			own, err := subs.FindByUser(c.Request.Context(), userID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, response.ErrorResponse{
					Code:    response.CodeDB,
					Message: "Ошибка чтения подписок",
					Details: err.Error(),
				})
				return
			}
			if !hasEndpoint(own, req.Endpoint) {
				c.JSON(http.StatusNotFound, response.ErrorResponse{
					Code:    response.CodeNoSubscription,
					Message: "Подписка не найдена",
				})
				return
			}
		}

		if err := subs.DeleteByEndpoint(c.Request.Context(), req.Endpoint); err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    response.CodeDB,
				Message: "Ошибка удаления подписки",
				Details: err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, response.SuccessResponse{Message: "Подписка удалена"})
	}
}

func hasEndpoint(subs []models.PushSubscription, endpoint string) bool {
	for _, s := range subs {
		if s.Endpoint == endpoint {
			return true
		}
	}
	return false
}

// SubscriptionView не раскрывает ключи шифрования.
type SubscriptionView struct {
	Endpoint  string    `json:"endpoint"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListSubscriptionsHandler возвращает устройства пользователя
// @Summary		Push-подписки пользователя
// @Tags			push
// @Produce		json
// @Param			userId	path		string	true	"ID пользователя"
// @Success		200	{array}		SubscriptionView
// @Failure		403	{object}	response.ErrorResponse	"Чужие подписки (FORBIDDEN)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/push/subscriptions/{userId} [get]
func ListSubscriptionsHandler(subs storage.SubscriptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if tokenUser := c.GetString(auth.ContextUserID); tokenUser != "" && tokenUser != userID {
			c.JSON(http.StatusForbidden, response.ErrorResponse{
				Code:    response.CodeForbidden,
				Message: "Нельзя просматривать чужие подписки",
			})
			return
		}

		found, err := subs.FindByUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    response.CodeDB,
				Message: "Ошибка чтения подписок",
				Details: err.Error(),
			})
			return
		}

		views := make([]SubscriptionView, 0, len(found))
		for _, s := range found {
			views = append(views, SubscriptionView{Endpoint: s.Endpoint, UserID: s.UserID, CreatedAt: s.CreatedAt})
		}
		c.JSON(http.StatusOK, views)
	}
}

// VAPIDKeyHandler отдаёт публичный VAPID ключ для pushManager.subscribe
// @Summary		Публичный VAPID ключ
// @Tags			push
// @Produce		json
// @Success		200	{object}	VAPIDKeyResponse
// @Router			/api/push/vapid-public-key [get]
func VAPIDKeyHandler(publicKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, VAPIDKeyResponse{PublicKey: publicKey})
	}
}

package response

// Коды ошибок для программной обработки на клиенте.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNoProvider     = "NO_PROVIDER"
	CodeEntryNotFound  = "ENTRY_NOT_FOUND"
	CodeUnknownEvent   = "UNKNOWN_EVENT"
	CodeDB             = "DB_ERROR"
	CodeUnauthorized   = "INVALID_TOKEN"
	CodeForbidden      = "FORBIDDEN"
	CodeNoSubscription = "SUBSCRIPTION_NOT_FOUND"
)

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Операция успешно выполнена"`
}

// ErrorResponse представляет ответ с ошибкой (HTTP и событие ERROR в websocket)
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Ошибка валидации данных
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	// example: providerId обязателен
	Details string `json:"details,omitempty"`
}

package model

import "time"

// NotificationLevel — уровень пользовательского уведомления.
type NotificationLevel string

const (
	// NotificationSuccess — операция выполнена.
	NotificationSuccess NotificationLevel = "success"
	// NotificationWarning — операция отклонена, повторить можно позже.
	NotificationWarning NotificationLevel = "warning"
	// NotificationError — операция завершилась ошибкой, слот не изменён.
	NotificationError NotificationLevel = "error"
)

// Notification — уведомление для владельца формы (toast в консоли).
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	// Field — поле формы, к которому относится уведомление
	Field string    `json:"field,omitempty"`
	At    time.Time `json:"at"`
}

// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrFormNotFound — форма не открыта, уже отправлена или истекла.
	ErrFormNotFound = errors.New("форма не найдена")
	// ErrUnknownResource — ресурса нет в каталоге консоли.
	ErrUnknownResource = errors.New("неизвестный ресурс")
	// ErrUnknownField — у ресурса нет такого поля-вложения.
	ErrUnknownField = errors.New("неизвестное поле-вложение")
	// ErrNotEditable — ресурс не поддерживает редактирование записей.
	ErrNotEditable = errors.New("ресурс не поддерживает редактирование")
	// ErrNotSupported — раздел консоли не поддерживает операцию
	// (список или удаление записей).
	ErrNotSupported = errors.New("операция не поддерживается ресурсом")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

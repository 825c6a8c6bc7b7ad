package attachment

import "errors"

// Ошибки операций над слотом. Все они восстановимые: слот остаётся
// в состоянии до вызова, владелец формы может повторить операцию.
var (
	// ErrBusy — над слотом уже выполняется операция.
	ErrBusy = errors.New("слот занят другой операцией")
	// ErrTransport — запрос не дошёл до хранилища или хранилище ответило ошибкой.
	ErrTransport = errors.New("хранилище недоступно")
	// ErrMalformedResponse — ответ хранилища не содержит полных ссылок {url, id}.
	ErrMalformedResponse = errors.New("некорректный ответ хранилища")
)

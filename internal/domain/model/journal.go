package model

import "time"

// Статусы записи журнала загрузок.
const (
	// JournalUploaded — файл загружен в хранилище, форма ещё не сохранена.
	JournalUploaded = "uploaded"
	// JournalCommitted — ссылка вошла в сохранённую запись ресурса.
	JournalCommitted = "committed"
	// JournalRemoved — файл удалён из хранилища через DELETE /file/{id}.
	JournalRemoved = "removed"
	// JournalAbandoned — форма закрыта без сохранения, файл остался в хранилище.
	JournalAbandoned = "abandoned"
)

// JournalEntry — запись журнала загрузок.
// Хранится в таблице upload_journal. Позволяет найти файлы, которые
// загружены в хранилище, но не вошли ни в одну сохранённую запись.
type JournalEntry struct {
	// RefID — id файла в хранилище
	RefID string
	// URL — адрес файла
	URL string
	// FormID — UUID формы, в которой файл был загружен
	FormID string
	// Resource — ресурс формы (products, news, ...)
	Resource string
	// Field — поле формы (image, file)
	Field string
	// Status — uploaded, committed, removed, abandoned
	Status string
	// CreatedAt — время загрузки
	CreatedAt time.Time
	// UpdatedAt — время последней смены статуса
	UpdatedAt time.Time
}

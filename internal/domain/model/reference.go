package model

import (
	"io"
	"strings"
)

// Reference — ссылка на файл во внешнем хранилище.
// Пара {url, id}: url — адрес для получения файла, id — идентификатор для удаления.
// Оба поля непрозрачны для gateway.
type Reference struct {
	// URL — абсолютный или корневой адрес файла
	URL string `json:"url"`
	// ID — идентификатор файла в хранилище (используется только для DELETE)
	ID string `json:"id"`
}

// Complete сообщает, заполнены ли оба поля ссылки.
// Частично заполненная ссылка считается невалидной.
func (r Reference) Complete() bool {
	return strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.ID) != ""
}

// Upload — локальный файл, выбранный пользователем для загрузки.
type Upload struct {
	// Filename — исходное имя файла
	Filename string
	// ContentType — MIME-тип (пустая строка — application/octet-stream)
	ContentType string
	// Size — размер в байтах (-1, если неизвестен)
	Size int64
	// Body — содержимое файла
	Body io.Reader
}

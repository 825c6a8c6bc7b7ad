package contentclient

import (
	"sort"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
)

// AttachmentField — поле ресурса, значение которого хранится как вложение.
type AttachmentField struct {
	// Name — ключ поля в записи ресурса (image, file)
	Name        string                 `json:"name"`
	Cardinality attachment.Cardinality `json:"cardinality"`
	Kind        attachment.Kind        `json:"kind"`
	// Accept — фильтр выбора файлов для браузера (рекомендательный)
	Accept string `json:"accept,omitempty"`
}

// Resource — описание ресурса API консоли.
type Resource struct {
	// Name — сегмент пути ресурса (/products, /news, ...)
	Name string `json:"name"`
	// Title — название раздела консоли
	Title string `json:"title"`
	// Attachments — поля-вложения в порядке отображения на форме
	Attachments []AttachmentField `json:"attachments"`
	// Editable — ресурс поддерживает PATCH /{name}/{id}
	Editable bool `json:"editable"`
	// Listable — у раздела есть список записей (GET /{name})
	Listable bool `json:"listable"`
	// Deletable — записи удаляются из консоли (DELETE /{name}/{id})
	Deletable bool `json:"deletable"`
}

// Field возвращает описание поля-вложения по имени.
func (r Resource) Field(name string) (AttachmentField, bool) {
	for _, f := range r.Attachments {
		if f.Name == name {
			return f, true
		}
	}
	return AttachmentField{}, false
}

const (
	acceptImages    = ".jpg,.jpeg,.png"
	acceptDocuments = ".pdf,.doc,.docx"
)

// catalog — ресурсы консоли. Пути совпадают с путями бэкенда,
// включая /adventages (раздел «Преимущества»).
var catalog = map[string]Resource{
	"products": {
		Name:  "products",
		Title: "Продукты",
		Attachments: []AttachmentField{
			{Name: "image", Cardinality: attachment.CardinalityMultiple, Kind: attachment.KindImage, Accept: acceptImages},
			{Name: "file", Cardinality: attachment.CardinalitySingle, Kind: attachment.KindFile, Accept: acceptDocuments},
		},
		Editable:  true,
		Listable:  true,
		Deletable: true,
	},
	"news": {
		Name:  "news",
		Title: "Баннеры",
		Attachments: []AttachmentField{
			{Name: "image", Cardinality: attachment.CardinalitySingle, Kind: attachment.KindImage},
		},
		Editable:  true,
		Listable:  true,
		Deletable: true,
	},
	"certificates": {
		Name:  "certificates",
		Title: "Сертификаты",
		Attachments: []AttachmentField{
			{Name: "image", Cardinality: attachment.CardinalitySingle, Kind: attachment.KindImage},
		},
		Editable:  true,
		Listable:  true,
		Deletable: true,
	},
	"adventages": {
		Name:  "adventages",
		Title: "Преимущества",
		Attachments: []AttachmentField{
			{Name: "image", Cardinality: attachment.CardinalitySingle, Kind: attachment.KindImage},
		},
		Editable:  true,
		Listable:  true,
		Deletable: true,
	},
	"partners": {
		Name:  "partners",
		Title: "Партнёры",
		Attachments: []AttachmentField{
			{Name: "image", Cardinality: attachment.CardinalitySingle, Kind: attachment.KindImage},
		},
		Editable:  true,
		Listable:  true,
		Deletable: true,
	},
	"brands": {
		Name: "brands", Title: "Бренды", Attachments: []AttachmentField{},
		Editable: true, Listable: true, Deletable: true,
	},
	"categories": {
		Name: "categories", Title: "Категории", Attachments: []AttachmentField{},
		Editable: true, Listable: true, Deletable: true,
	},
	// заявки: список и создание, без редактирования и удаления
	"contacts": {Name: "contacts", Title: "Заявки", Attachments: []AttachmentField{}, Listable: true},
	// раздел «О нас» только создаётся
	"about": {Name: "about", Title: "О нас", Attachments: []AttachmentField{}},
}

// Lookup возвращает описание ресурса по имени.
func Lookup(name string) (Resource, bool) {
	r, ok := catalog[name]
	return r, ok
}

// Resources возвращает все ресурсы, отсортированные по имени.
func Resources() []Resource {
	out := make([]Resource, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

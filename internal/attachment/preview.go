package attachment

import (
	"iter"
	"net/url"
	"path"
	"strings"

	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// DisplayMode — способ отображения вложения в консоли.
type DisplayMode string

const (
	// ModeImageThumbnail — миниатюра изображения.
	ModeImageThumbnail DisplayMode = "image-thumbnail"
	// ModeDocumentPDF — иконка PDF.
	ModeDocumentPDF DisplayMode = "document-pdf"
	// ModeDocumentWord — иконка doc/docx.
	ModeDocumentWord DisplayMode = "document-word"
	// ModeDocumentExcel — иконка xls/xlsx.
	ModeDocumentExcel DisplayMode = "document-excel"
	// ModeDocumentGeneric — иконка прочих документов.
	ModeDocumentGeneric DisplayMode = "document-generic"
)

// documentModes — распознаваемые расширения документов.
var documentModes = map[string]DisplayMode{
	"pdf":  ModeDocumentPDF,
	"doc":  ModeDocumentWord,
	"docx": ModeDocumentWord,
	"xls":  ModeDocumentExcel,
	"xlsx": ModeDocumentExcel,
}

// Preview — описание предпросмотра одной ссылки.
type Preview struct {
	Reference model.Reference `json:"reference"`
	Mode      DisplayMode     `json:"mode"`
	// FileName — последний сегмент пути url
	FileName string `json:"file_name"`
}

// Previews возвращает ленивую конечную последовательность описаний
// предпросмотра для значения слота. Функция чистая: повторный обход
// той же последовательности или повторный вызов дают одинаковый результат.
func Previews(v Value, kind Kind) iter.Seq[Preview] {
	refs := v.References()
	return func(yield func(Preview) bool) {
		for _, ref := range refs {
			if !yield(PreviewOf(ref, kind)) {
				return
			}
		}
	}
}

// PreviewOf определяет режим отображения одной ссылки.
// Слот изображений всегда даёт миниатюру. В слоте документов расширение
// выбирает иконку, нераспознанное расширение даёт общую иконку.
func PreviewOf(ref model.Reference, kind Kind) Preview {
	name := fileName(ref.URL)
	mode := ModeImageThumbnail
	if kind == KindFile {
		mode = ModeDocumentGeneric
		if m, ok := documentModes[extension(name)]; ok {
			mode = m
		}
	}
	return Preview{Reference: ref, Mode: mode, FileName: name}
}

// fileName возвращает последний сегмент пути url без query и fragment.
func fileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// extension возвращает расширение имени файла в нижнем регистре без точки.
func extension(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

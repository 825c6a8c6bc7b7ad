// Пакет attachment — жизненный цикл вложений формы консоли.
//
// Manager связывает одно поле формы (слот) с нулём или несколькими ссылками
// на файлы во внешнем хранилище: загружает файлы (POST /single, /multiple),
// удаляет их (DELETE /file/{id}) и сообщает владельцу формы о новом значении
// слота. Ошибки не выходят за пределы Manager: они возвращаются значением
// и дублируются пользовательским уведомлением.
//
// Состояния слота: empty → uploading → attached, attached → uploading(remove) → empty|attached.
// Одновременно над слотом выполняется не более одной операции (Idle | Busy).
package attachment

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// Cardinality — количество ссылок, которое может хранить слот.
type Cardinality string

const (
	// CardinalitySingle — ноль или одна ссылка.
	CardinalitySingle Cardinality = "single"
	// CardinalityMultiple — упорядоченная последовательность ссылок.
	CardinalityMultiple Cardinality = "multiple"
)

// Kind — подсказка для предпросмотра. На загрузку и удаление не влияет.
type Kind string

const (
	// KindImage — изображение (миниатюра).
	KindImage Kind = "image"
	// KindFile — документ (иконка по расширению).
	KindFile Kind = "generic-file"
)

// Value — значение слота. Вариант фиксируется при создании слота:
// Single (ноль или одна ссылка) либо Multiple (последовательность).
type Value interface {
	// Cardinality возвращает вариант значения.
	Cardinality() Cardinality
	// References возвращает копию ссылок в порядке поступления.
	References() []model.Reference
	// Len — количество ссылок.
	Len() int

	json.Marshaler
	sealed()
}

// Single — значение слота с кардинальностью single.
type Single struct {
	ref model.Reference
	set bool
}

// EmptySingle возвращает пустой single-слот.
func EmptySingle() Single { return Single{} }

// SingleOf возвращает single-слот с одной ссылкой.
// Неполная ссылка даёт пустой слот: частично заполненные ссылки не хранятся.
func SingleOf(ref model.Reference) Single {
	if !ref.Complete() {
		return Single{}
	}
	return Single{ref: ref, set: true}
}

// Get возвращает ссылку и признак её наличия.
func (s Single) Get() (model.Reference, bool) { return s.ref, s.set }

func (s Single) Cardinality() Cardinality { return CardinalitySingle }

func (s Single) References() []model.Reference {
	if !s.set {
		return []model.Reference{}
	}
	return []model.Reference{s.ref}
}

func (s Single) Len() int {
	if s.set {
		return 1
	}
	return 0
}

// MarshalJSON кодирует пустой слот как {} — форма ImageData консоли.
func (s Single) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("{}"), nil
	}
	return json.Marshal(s.ref)
}

func (Single) sealed() {}

// Multiple — значение слота с кардинальностью multiple.
type Multiple struct {
	refs []model.Reference
}

// MultipleOf возвращает multiple-слот с копией переданных ссылок.
// Неполные ссылки отбрасываются, дубликаты по id сохраняются.
func MultipleOf(refs ...model.Reference) Multiple {
	out := make([]model.Reference, 0, len(refs))
	for _, r := range refs {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return Multiple{refs: out}
}

func (m Multiple) Cardinality() Cardinality { return CardinalityMultiple }

func (m Multiple) References() []model.Reference {
	out := slices.Clone(m.refs)
	if out == nil {
		out = []model.Reference{}
	}
	return out
}

func (m Multiple) Len() int { return len(m.refs) }

func (m Multiple) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.References())
}

func (Multiple) sealed() {}

// Empty возвращает пустое значение нужного варианта.
func Empty(c Cardinality) Value {
	if c == CardinalityMultiple {
		return Multiple{}
	}
	return Single{}
}

// Equal сравнивает два значения слота поэлементно.
func Equal(a, b Value) bool {
	if a.Cardinality() != b.Cardinality() {
		return false
	}
	return slices.Equal(a.References(), b.References())
}

// withUploaded возвращает новое значение после успешной загрузки:
// single — замена, multiple — добавление в конец.
func withUploaded(v Value, refs []model.Reference) Value {
	switch cur := v.(type) {
	case Multiple:
		return MultipleOf(append(cur.References(), refs...)...)
	default:
		if len(refs) == 0 {
			return v
		}
		return SingleOf(refs[0])
	}
}

// withoutReference возвращает значение без ссылок с указанным id.
// single — очистка слота, multiple — фильтрация с сохранением порядка.
func withoutReference(v Value, id string) Value {
	switch cur := v.(type) {
	case Multiple:
		kept := make([]model.Reference, 0, len(cur.refs))
		for _, r := range cur.refs {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		return Multiple{refs: kept}
	default:
		return EmptySingle()
	}
}

// contains проверяет, хранит ли значение ссылку с указанным id.
func contains(v Value, id string) bool {
	return slices.ContainsFunc(v.References(), func(r model.Reference) bool {
		return r.ID == id
	})
}

// ParseCardinality разбирает строковое представление кардинальности.
func ParseCardinality(s string) (Cardinality, error) {
	switch Cardinality(s) {
	case CardinalitySingle, CardinalityMultiple:
		return Cardinality(s), nil
	default:
		return "", fmt.Errorf("недопустимая кардинальность %q, допустимые: single, multiple", s)
	}
}

package attachment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// Storage — удалённое хранилище файлов.
// Реализуется storageclient.Client.
type Storage interface {
	// UploadSingle загружает один файл (POST /single).
	UploadSingle(ctx context.Context, file model.Upload) (model.Reference, error)
	// UploadMultiple загружает несколько файлов одним запросом (POST /multiple).
	UploadMultiple(ctx context.Context, files []model.Upload) ([]model.Reference, error)
	// Delete удаляет файл по id (DELETE /file/{id}).
	Delete(ctx context.Context, id string) error
}

// Notifier — канал пользовательских уведомлений владельца формы.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// NotifierFunc — адаптер функции к Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification)

// Notify вызывает f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) { f(ctx, n) }

// ChangeFunc вызывается после каждой успешной загрузки или удаления
// с новым значением слота. При ошибке не вызывается.
type ChangeFunc func(ctx context.Context, v Value)

// State — состояние слота.
type State int

const (
	// StateIdle — операций нет.
	StateIdle State = iota
	// StateBusy — выполняется загрузка или удаление.
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

// Options — параметры Manager.
type Options struct {
	// Field — имя поля формы (для уведомлений и логов)
	Field string
	// Kind — подсказка предпросмотра
	Kind Kind
	// Accept — фильтр MIME/расширений для выбора файлов (рекомендательный)
	Accept string
	// OnChange — callback владельца формы (может быть nil)
	OnChange ChangeFunc
	// Notifier — канал уведомлений (может быть nil)
	Notifier Notifier
	// Logger — логгер (nil — slog.Default())
	Logger *slog.Logger
}

// Manager — посредник между выбором локальных файлов и удалённым хранилищем
// для одного слота формы. Безопасен для конкурентного вызова: вторая операция,
// начатая во время первой, отклоняется с ErrBusy.
type Manager struct {
	storage  Storage
	field    string
	kind     Kind
	accept   string
	onChange ChangeFunc
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	value Value
}

// New создаёт Manager для слота с начальным значением initial.
// Вариант initial (Single или Multiple) задаёт кардинальность слота навсегда.
func New(storage Storage, initial Value, opts Options) *Manager {
	if initial == nil {
		initial = EmptySingle()
	}
	kind := opts.Kind
	if kind == "" {
		kind = KindImage
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		storage:  storage,
		field:    opts.Field,
		kind:     kind,
		accept:   opts.Accept,
		onChange: opts.OnChange,
		notifier: opts.Notifier,
		logger: logger.With(
			slog.String("component", "attachment"),
			slog.String("field", opts.Field),
		),
		value: initial,
	}
}

// Value возвращает текущее значение слота.
func (m *Manager) Value() Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// State возвращает текущее состояние слота.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy — true, пока выполняется операция.
func (m *Manager) Busy() bool { return m.State() == StateBusy }

// Cardinality возвращает кардинальность слота.
func (m *Manager) Cardinality() Cardinality { return m.Value().Cardinality() }

// Kind возвращает подсказку предпросмотра.
func (m *Manager) Kind() Kind { return m.kind }

// Accept возвращает фильтр выбора файлов.
func (m *Manager) Accept() string { return m.accept }

// Field возвращает имя поля формы.
func (m *Manager) Field() string { return m.field }

// Previews возвращает описания предпросмотра для текущего значения.
func (m *Manager) Previews() iter.Seq[Preview] {
	return Previews(m.Value(), m.kind)
}

// acquire переводит слот в Busy. Возвращает release, который
// обязательно вызывается на любом пути выхода.
func (m *Manager) acquire() (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateBusy {
		return nil, ErrBusy
	}
	m.state = StateBusy
	return func() {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
	}, nil
}

// SelectFiles загружает выбранные файлы и обновляет слот.
//
// Один файл — POST /single, несколько файлов в multiple-слоте — POST /multiple.
// В single-слоте из нескольких файлов загружается только первый.
// При ошибке значение слота не меняется, ошибка возвращается и дублируется
// уведомлением; уже сохранённые хранилищем файлы не откатываются.
func (m *Manager) SelectFiles(ctx context.Context, files []model.Upload) error {
	if len(files) == 0 {
		return nil
	}

	release, err := m.acquire()
	if err != nil {
		m.reject(ctx, "Загрузка уже выполняется, дождитесь завершения")
		return err
	}

	multiple := m.Cardinality() == CardinalityMultiple
	if !multiple && len(files) > 1 {
		m.logger.Debug("single-слот: лишние файлы проигнорированы",
			slog.Int("received", len(files)),
		)
		files = files[:1]
	}

	start := time.Now()
	refs, err := m.upload(ctx, files, multiple)
	if err != nil {
		release()
		observeOperation("upload", outcomeOf(err), start)
		m.logger.Warn("Ошибка загрузки файлов",
			slog.Int("files", len(files)),
			slog.String("error", err.Error()),
		)
		m.notify(ctx, model.NotificationError, "Ошибка", uploadFailureMessage(err))
		return err
	}

	m.mu.Lock()
	m.value = withUploaded(m.value, refs)
	newValue := m.value
	m.mu.Unlock()
	release()

	observeOperation("upload", "ok", start)
	m.logger.Info("Файлы загружены",
		slog.Int("files", len(refs)),
		slog.Int("slot_len", newValue.Len()),
	)
	m.changed(ctx, newValue)
	m.notify(ctx, model.NotificationSuccess, "Успешно", "Файл(ы) успешно загружен(ы)")
	return nil
}

// upload выполняет ровно один сетевой вызов и проверяет форму ответа.
func (m *Manager) upload(ctx context.Context, files []model.Upload, multiple bool) ([]model.Reference, error) {
	if !multiple || len(files) == 1 {
		ref, err := m.storage.UploadSingle(ctx, files[0])
		if err != nil {
			return nil, classify(err)
		}
		if !ref.Complete() {
			return nil, fmt.Errorf("%w: ссылка без url или id", ErrMalformedResponse)
		}
		return []model.Reference{ref}, nil
	}

	refs, err := m.storage.UploadMultiple(ctx, files)
	if err != nil {
		return nil, classify(err)
	}
	if len(refs) != len(files) {
		return nil, fmt.Errorf("%w: получено ссылок %d, файлов %d", ErrMalformedResponse, len(refs), len(files))
	}
	for i, ref := range refs {
		if !ref.Complete() {
			return nil, fmt.Errorf("%w: элемент %d без url или id", ErrMalformedResponse, i)
		}
	}
	return refs, nil
}

// RemoveReference удаляет файл с указанным id из хранилища и из слота.
// Если id нет в слоте — ничего не делает (без сетевого вызова).
func (m *Manager) RemoveReference(ctx context.Context, id string) error {
	if !contains(m.Value(), id) {
		m.logger.Debug("Ссылка не найдена в слоте, удаление пропущено", slog.String("ref_id", id))
		return nil
	}
	return m.remove(ctx, id)
}

// remove занимает слот и повторно проверяет id уже под Busy: параллельное
// удаление той же ссылки могло завершиться между проверкой и acquire.
func (m *Manager) remove(ctx context.Context, id string) error {
	release, err := m.acquire()
	if err != nil {
		m.reject(ctx, "Дождитесь завершения текущей операции")
		return err
	}

	m.mu.Lock()
	present := contains(m.value, id)
	m.mu.Unlock()
	if !present {
		release()
		m.logger.Debug("Ссылка удалена параллельной операцией, удаление пропущено", slog.String("ref_id", id))
		return nil
	}

	start := time.Now()
	if err := m.storage.Delete(ctx, id); err != nil {
		release()
		err = classify(err)
		observeOperation("remove", outcomeOf(err), start)
		m.logger.Warn("Ошибка удаления файла",
			slog.String("ref_id", id),
			slog.String("error", err.Error()),
		)
		m.notify(ctx, model.NotificationError, "Ошибка", "Не удалось удалить файл")
		return err
	}

	m.mu.Lock()
	m.value = withoutReference(m.value, id)
	newValue := m.value
	m.mu.Unlock()
	release()

	observeOperation("remove", "ok", start)
	m.logger.Info("Файл удалён", slog.String("ref_id", id))
	m.changed(ctx, newValue)
	m.notify(ctx, model.NotificationSuccess, "Успешно", "Файл успешно удалён")
	return nil
}

func (m *Manager) reject(ctx context.Context, message string) {
	busyRejectionsTotal.Inc()
	m.notify(ctx, model.NotificationWarning, "Подождите", message)
}

func (m *Manager) changed(ctx context.Context, v Value) {
	if m.onChange != nil {
		m.onChange(ctx, v)
	}
}

func (m *Manager) notify(ctx context.Context, level model.NotificationLevel, title, message string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, model.Notification{
		Level:   level,
		Title:   title,
		Message: message,
		Field:   m.field,
		At:      time.Now().UTC(),
	})
}

// classify приводит ошибку хранилища к таксономии пакета.
// Ошибки, уже помеченные ErrMalformedResponse, сохраняются как есть.
func classify(err error) error {
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "transport"
	}
}

func uploadFailureMessage(err error) string {
	if errors.Is(err, ErrMalformedResponse) {
		return "Файл не был загружен корректно"
	}
	return "Не удалось загрузить файл(ы)"
}

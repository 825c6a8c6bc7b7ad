// forms.go — реестр открытых форм консоли.
//
// Форма — серверная сторона страницы создания или редактирования записи
// ресурса: по одному attachment.Manager на каждое поле-вложение. Браузер
// хранит только id формы. Реестр ограничен по размеру и времени жизни
// (expirable LRU); вытеснение формы считается закрытием без сохранения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
	"github.com/Saidqodirxon/innocare-admin/internal/repository"
)

// Причины закрытия формы (лейбл метрики ag_forms_closed_total).
const (
	closeSubmitted = "submitted"
	closeDiscarded = "discarded"
	closeExpired   = "expired"
)

// abandonTimeout — таймаут записи в журнал при вытеснении формы.
const abandonTimeout = 5 * time.Second

// ResourceAPI — операции API ресурсов, нужные формам.
type ResourceAPI interface {
	Get(ctx context.Context, resource, id string) (contentclient.Record, error)
	Create(ctx context.Context, resource string, payload map[string]any) (contentclient.Record, error)
	Update(ctx context.Context, resource, id string, payload map[string]any) (contentclient.Record, error)
}

// NotificationHub — канал уведомлений форм (реализуется notify.Hub).
type NotificationHub interface {
	Open(formID string)
	Publish(formID string, n model.Notification)
	Notifier(formID, field string) attachment.Notifier
	Close(formID string)
}

// FormOptions — параметры реестра форм.
type FormOptions struct {
	// MaxOpen — максимум одновременно открытых форм
	MaxOpen int
	// TTL — время жизни формы без активности
	TTL time.Duration
}

// Form — открытая форма.
type Form struct {
	ID       string
	Resource contentclient.Resource
	// RecordID — id редактируемой записи; пустой для формы создания
	RecordID  string
	CreatedAt time.Time

	slots map[string]*attachment.Manager

	mu        sync.Mutex
	updatedAt time.Time

	submitMu sync.Mutex
	reason   atomic.Pointer[string]
	evicted  atomic.Bool
}

// close помечает форму закрытой. Возвращает false, если форма уже закрыта.
func (f *Form) close(reason string) bool {
	return f.reason.CompareAndSwap(nil, &reason)
}

func (f *Form) closed() bool { return f.reason.Load() != nil }

func (f *Form) closeReason() string {
	if r := f.reason.Load(); r != nil {
		return *r
	}
	return ""
}

func (f *Form) touch(at time.Time) {
	f.mu.Lock()
	f.updatedAt = at
	f.mu.Unlock()
}

// UpdatedAt возвращает время последнего изменения слотов формы.
func (f *Form) UpdatedAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updatedAt
}

// Slot возвращает Manager поля-вложения.
func (f *Form) Slot(field string) (*attachment.Manager, bool) {
	m, ok := f.slots[field]
	return m, ok
}

// SlotView — состояние одного поля-вложения для UI.
type SlotView struct {
	Field       string                 `json:"field"`
	Cardinality attachment.Cardinality `json:"cardinality"`
	Kind        attachment.Kind        `json:"kind"`
	Accept      string                 `json:"accept,omitempty"`
	State       string                 `json:"state"`
	Value       attachment.Value       `json:"value"`
	Previews    []attachment.Preview   `json:"previews"`
}

// FormView — состояние формы для UI.
type FormView struct {
	ID        string     `json:"id"`
	Resource  string     `json:"resource"`
	RecordID  string     `json:"record_id,omitempty"`
	Slots     []SlotView `json:"slots"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SlotViewOf строит представление слота.
func SlotViewOf(m *attachment.Manager) SlotView {
	value := m.Value()
	previews := slices.Collect(attachment.Previews(value, m.Kind()))
	if previews == nil {
		previews = []attachment.Preview{}
	}
	return SlotView{
		Field:       m.Field(),
		Cardinality: value.Cardinality(),
		Kind:        m.Kind(),
		Accept:      m.Accept(),
		State:       m.State().String(),
		Value:       value,
		Previews:    previews,
	}
}

// View строит представление формы. Слоты идут в порядке каталога ресурса.
func (f *Form) View() FormView {
	view := FormView{
		ID:        f.ID,
		Resource:  f.Resource.Name,
		RecordID:  f.RecordID,
		Slots:     make([]SlotView, 0, len(f.slots)),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt(),
	}
	for _, field := range f.Resource.Attachments {
		if m, ok := f.slots[field.Name]; ok {
			view.Slots = append(view.Slots, SlotViewOf(m))
		}
	}
	return view
}

// FormService — реестр открытых форм.
type FormService struct {
	storage   attachment.Storage
	resources ResourceAPI
	journal   repository.UploadJournal
	hub       NotificationHub
	forms     *expirable.LRU[string, *Form]
	now       func() time.Time
	logger    *slog.Logger
}

// NewFormService создаёт реестр форм.
// journal может быть repository.NopJournal, если PostgreSQL не настроен.
func NewFormService(
	storage attachment.Storage,
	resources ResourceAPI,
	journal repository.UploadJournal,
	hub NotificationHub,
	opts FormOptions,
	logger *slog.Logger,
) *FormService {
	if journal == nil {
		journal = repository.NopJournal{}
	}
	s := &FormService{
		storage:   storage,
		resources: resources,
		journal:   journal,
		hub:       hub,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "forms")),
	}
	s.forms = expirable.NewLRU[string, *Form](opts.MaxOpen, s.onEvict, opts.TTL)
	return s
}

// Open открывает форму ресурса. Пустой recordID — форма создания
// (все слоты пустые), иначе форма редактирования: запись читается
// из API ресурсов, слоты заполняются сохранёнными ссылками.
func (s *FormService) Open(ctx context.Context, resourceName, recordID string) (*Form, error) {
	res, ok := contentclient.Lookup(resourceName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resourceName)
	}

	var record contentclient.Record
	if recordID != "" {
		if !res.Editable {
			return nil, fmt.Errorf("%w: %s", ErrNotEditable, res.Name)
		}
		var err error
		record, err = s.resources.Get(ctx, res.Name, recordID)
		if err != nil {
			return nil, fmt.Errorf("чтение записи %s/%s: %w", res.Name, recordID, err)
		}
	}

	now := s.now().UTC()
	f := &Form{
		ID:        uuid.NewString(),
		Resource:  res,
		RecordID:  recordID,
		CreatedAt: now,
		updatedAt: now,
		slots:     make(map[string]*attachment.Manager, len(res.Attachments)),
	}

	for _, field := range res.Attachments {
		initial := attachment.Empty(field.Cardinality)
		if record != nil {
			initial = contentclient.AttachmentValue(record, field)
		}
		f.slots[field.Name] = attachment.New(
			&journalingStorage{
				inner:    s.storage,
				journal:  s.journal,
				formID:   f.ID,
				resource: res.Name,
				field:    field.Name,
				logger:   s.logger,
			},
			initial,
			attachment.Options{
				Field:  field.Name,
				Kind:   field.Kind,
				Accept: field.Accept,
				OnChange: func(context.Context, attachment.Value) {
					f.touch(s.now().UTC())
				},
				Notifier: s.hub.Notifier(f.ID, field.Name),
				Logger:   s.logger.With(slog.String("form_id", f.ID)),
			},
		)
	}

	s.hub.Open(f.ID)
	s.forms.Add(f.ID, f)
	formsOpen.Inc()

	s.logger.Info("Форма открыта",
		slog.String("form_id", f.ID),
		slog.String("resource", res.Name),
		slog.String("record_id", recordID),
		slog.Int("slots", len(f.slots)),
	)
	return f, nil
}

// Get возвращает открытую форму и продлевает её время жизни.
func (s *FormService) Get(formID string) (*Form, error) {
	f, ok := s.forms.Get(formID)
	if !ok || f.closed() {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}
	// Повторный Add обновляет срок жизни записи в expirable LRU
	s.forms.Add(formID, f)
	return f, nil
}

func (s *FormService) slot(formID, field string) (*Form, *attachment.Manager, error) {
	f, err := s.Get(formID)
	if err != nil {
		return nil, nil, err
	}
	m, ok := f.Slot(field)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, f.Resource.Name, field)
	}
	return f, m, nil
}

// SelectFiles загружает файлы в поле формы.
// Ошибки attachment (ErrBusy, ErrTransport, ErrMalformedResponse)
// возвращаются как есть; слот при этом не меняется.
func (s *FormService) SelectFiles(ctx context.Context, formID, field string, files []model.Upload) (SlotView, error) {
	_, m, err := s.slot(formID, field)
	if err != nil {
		return SlotView{}, err
	}
	if err := m.SelectFiles(ctx, files); err != nil {
		return SlotView{}, err
	}
	return SlotViewOf(m), nil
}

// RemoveReference удаляет файл из поля формы и из хранилища.
func (s *FormService) RemoveReference(ctx context.Context, formID, field, refID string) (SlotView, error) {
	_, m, err := s.slot(formID, field)
	if err != nil {
		return SlotView{}, err
	}
	if err := m.RemoveReference(ctx, refID); err != nil {
		return SlotView{}, err
	}
	return SlotViewOf(m), nil
}

// Submit сохраняет запись: значения слотов встраиваются в fields
// (перекрывая одноимённые ключи клиента), затем POST для формы создания
// или PATCH для формы редактирования. При успехе форма закрывается,
// ссылки слотов помечаются в журнале как сохранённые. При ошибке форма
// остаётся открытой.
func (s *FormService) Submit(ctx context.Context, formID string, fields map[string]any) (contentclient.Record, error) {
	f, err := s.Get(formID)
	if err != nil {
		return nil, err
	}
	if !f.submitMu.TryLock() {
		return nil, attachment.ErrBusy
	}
	defer f.submitMu.Unlock()

	payload := make(map[string]any, len(fields)+len(f.slots))
	maps.Copy(payload, fields)

	var refIDs []string
	for name, m := range f.slots {
		if m.Busy() {
			s.hub.Publish(f.ID, model.Notification{
				Level:   model.NotificationWarning,
				Title:   "Подождите",
				Message: "Дождитесь окончания загрузки файлов",
				Field:   name,
			})
			return nil, attachment.ErrBusy
		}
		value := m.Value()
		payload[name] = value
		for _, ref := range value.References() {
			refIDs = append(refIDs, ref.ID)
		}
	}

	var record contentclient.Record
	if f.RecordID == "" {
		record, err = s.resources.Create(ctx, f.Resource.Name, payload)
	} else {
		record, err = s.resources.Update(ctx, f.Resource.Name, f.RecordID, payload)
	}
	if err != nil {
		s.hub.Publish(f.ID, model.Notification{
			Level:   model.NotificationError,
			Title:   "Ошибка",
			Message: submitFailureMessage(err),
		})
		s.logger.Warn("Ошибка сохранения формы",
			slog.String("form_id", f.ID),
			slog.String("resource", f.Resource.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("сохранение %s: %w", f.Resource.Name, err)
	}

	if !f.close(closeSubmitted) {
		// Форма вытеснена во время сохранения: запись уже создана,
		// журнал всё равно фиксирует сохранённые ссылки.
		s.logger.Warn("Форма закрыта во время сохранения", slog.String("form_id", f.ID))
	}
	s.commit(ctx, f, refIDs)

	s.hub.Publish(f.ID, model.Notification{
		Level:   model.NotificationSuccess,
		Title:   "Успешно",
		Message: "Сохранено",
	})
	s.forms.Remove(f.ID)

	s.logger.Info("Форма сохранена",
		slog.String("form_id", f.ID),
		slog.String("resource", f.Resource.Name),
		slog.String("record_id", record.ID()),
		slog.Int("references", len(refIDs)),
	)
	return record, nil
}

// Discard закрывает форму без сохранения. Загруженные через форму файлы
// остаются в хранилище и помечаются в журнале как брошенные.
func (s *FormService) Discard(ctx context.Context, formID string) error {
	f, ok := s.forms.Peek(formID)
	if !ok || !f.close(closeDiscarded) {
		return fmt.Errorf("%w: %s", ErrFormNotFound, formID)
	}
	s.abandon(ctx, f)
	s.forms.Remove(formID)
	s.logger.Info("Форма закрыта без сохранения", slog.String("form_id", formID))
	return nil
}

// OpenCount возвращает количество открытых форм.
func (s *FormService) OpenCount() int {
	return s.forms.Len()
}

// onEvict вызывается expirable LRU под его блокировкой: при Remove,
// истечении TTL и вытеснении по размеру.
func (s *FormService) onEvict(formID string, f *Form) {
	if f.evicted.Swap(true) {
		return
	}
	formsOpen.Dec()

	if f.close(closeExpired) {
		s.logger.Info("Форма вытеснена из реестра", slog.String("form_id", formID))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
			defer cancel()
			s.abandon(ctx, f)
		}()
	}
	formsClosedTotal.WithLabelValues(f.closeReason()).Inc()
	s.hub.Close(formID)
}

// commit помечает ссылки слотов сохранёнными, остальные загрузки формы
// (например, заменённые в single-слоте) — брошенными.
func (s *FormService) commit(ctx context.Context, f *Form, refIDs []string) {
	if _, err := s.journal.MarkStatus(ctx, f.ID, refIDs, model.JournalCommitted); err != nil {
		s.logger.Warn("Журнал загрузок: не удалось отметить сохранённые файлы",
			slog.String("form_id", f.ID),
			slog.String("error", err.Error()),
		)
	}
	s.abandon(ctx, f)
}

func (s *FormService) abandon(ctx context.Context, f *Form) {
	n, err := s.journal.MarkFormStatus(ctx, f.ID, model.JournalUploaded, model.JournalAbandoned)
	if err != nil {
		s.logger.Warn("Журнал загрузок: не удалось отметить брошенные файлы",
			slog.String("form_id", f.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		s.logger.Info("Файлы формы остались в хранилище без записи",
			slog.String("form_id", f.ID),
			slog.Int("count", n),
		)
	}
}

// submitFailureMessage возвращает текст ошибки для уведомления.
// Сообщение бэкенда показывается как есть.
func submitFailureMessage(err error) string {
	var apiErr *contentclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Не удалось сохранить запись"
}

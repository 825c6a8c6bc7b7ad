// Пакет notify — канал пользовательских уведомлений форм.
//
// Hub хранит последние уведомления каждой формы (для опроса) и рассылает
// новые уведомления подписчикам SSE. Медленный подписчик не блокирует
// публикацию: уведомление, не поместившееся в его буфер, отбрасывается.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

const (
	// RecentLimit — сколько последних уведомлений формы хранится для опроса.
	RecentLimit = 20
	// subscriberBuffer — ёмкость канала одного подписчика.
	subscriberBuffer = 16
)

// Subscription — подписка на уведомления одной формы.
type Subscription struct {
	C      <-chan model.Notification
	ch     chan model.Notification
	formID string
	hub    *Hub
	once   sync.Once
}

// Close отписывает подписчика. Повторный вызов безопасен.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

type formChannel struct {
	recent      []model.Notification
	subscribers map[*Subscription]struct{}
}

// Hub — рассылка уведомлений по формам.
type Hub struct {
	mu     sync.Mutex
	forms  map[string]*formChannel
	now    func() time.Time
	logger *slog.Logger
}

// NewHub создаёт пустой Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		forms:  make(map[string]*formChannel),
		now:    time.Now,
		logger: logger.With(slog.String("component", "notify")),
	}
}

// Open регистрирует форму. Уведомления и подписки принимаются только
// для открытых форм; Close снимает регистрацию.
func (h *Hub) Open(formID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.forms[formID]; !ok {
		h.forms[formID] = &formChannel{subscribers: make(map[*Subscription]struct{})}
	}
}

// Publish сохраняет уведомление и отправляет его подписчикам формы.
// Пустое поле At заполняется текущим временем. Уведомление для
// неизвестной или закрытой формы отбрасывается: операция, завершившаяся
// после закрытия формы, не должна оживлять её историю.
func (h *Hub) Publish(formID string, n model.Notification) {
	if n.At.IsZero() {
		n.At = h.now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fc, ok := h.forms[formID]
	if !ok {
		h.logger.Debug("Уведомление для закрытой формы отброшено",
			slog.String("form_id", formID),
			slog.String("title", n.Title),
		)
		return
	}
	fc.recent = append(fc.recent, n)
	if len(fc.recent) > RecentLimit {
		fc.recent = append([]model.Notification(nil), fc.recent[len(fc.recent)-RecentLimit:]...)
	}

	for sub := range fc.subscribers {
		select {
		case sub.ch <- n:
		default:
			h.logger.Warn("Уведомление не доставлено: буфер подписчика заполнен",
				slog.String("form_id", formID),
				slog.String("title", n.Title),
			)
		}
	}
}

// Recent возвращает копию последних уведомлений формы (от старых к новым).
func (h *Hub) Recent(formID string) []model.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	fc, ok := h.forms[formID]
	if !ok {
		return []model.Notification{}
	}
	out := make([]model.Notification, len(fc.recent))
	copy(out, fc.recent)
	return out
}

// Subscribe подписывает на новые уведомления формы.
// Для неизвестной формы канал подписки сразу закрыт.
// Вызывающий обязан закрыть подписку.
func (h *Hub) Subscribe(formID string) *Subscription {
	ch := make(chan model.Notification, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, formID: formID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	fc, ok := h.forms[formID]
	if !ok {
		close(ch)
		return sub
	}
	fc.subscribers[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fc, ok := h.forms[sub.formID]
	if !ok {
		return
	}
	if _, ok := fc.subscribers[sub]; ok {
		delete(fc.subscribers, sub)
		close(sub.ch)
	}
}

// Close снимает регистрацию формы: удаляет историю и закрывает каналы
// её подписчиков. Вызывается при отправке, закрытии или вытеснении формы.
func (h *Hub) Close(formID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fc, ok := h.forms[formID]
	if !ok {
		return
	}
	for sub := range fc.subscribers {
		close(sub.ch)
	}
	delete(h.forms, formID)
}

// Notifier возвращает attachment.Notifier, публикующий уведомления формы
// с указанием поля.
func (h *Hub) Notifier(formID, field string) attachment.Notifier {
	return attachment.NotifierFunc(func(_ context.Context, n model.Notification) {
		if n.Field == "" {
			n.Field = field
		}
		h.Publish(formID, n)
	})
}

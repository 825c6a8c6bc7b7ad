// journal.go — журнал загрузок: запись загруженных и удалённых файлов
// форм и выборка файлов, не попавших ни в одну сохранённую запись.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/attachment"
	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
	"github.com/Saidqodirxon/innocare-admin/internal/repository"
)

// journalingStorage — attachment.Storage, фиксирующий в журнале
// каждый файл, принятый хранилищем, и каждое удаление.
// Ошибки журнала логируются и не влияют на операцию слота.
type journalingStorage struct {
	inner    attachment.Storage
	journal  repository.UploadJournal
	formID   string
	resource string
	field    string
	logger   *slog.Logger
}

func (s *journalingStorage) UploadSingle(ctx context.Context, file model.Upload) (model.Reference, error) {
	ref, err := s.inner.UploadSingle(ctx, file)
	s.record(ctx, ref)
	return ref, err
}

func (s *journalingStorage) UploadMultiple(ctx context.Context, files []model.Upload) ([]model.Reference, error) {
	refs, err := s.inner.UploadMultiple(ctx, files)
	for _, ref := range refs {
		s.record(ctx, ref)
	}
	return refs, err
}

func (s *journalingStorage) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := s.journal.MarkStatus(ctx, s.formID, []string{id}, model.JournalRemoved); err != nil {
		s.warn("отметка удаления", id, err)
	}
	return nil
}

// record фиксирует ссылку, если хранилище вернуло полную ссылку.
// Ответ с ошибкой формы всё равно может означать, что файл сохранён.
func (s *journalingStorage) record(ctx context.Context, ref model.Reference) {
	if !ref.Complete() {
		return
	}
	err := s.journal.Record(ctx, &model.JournalEntry{
		RefID:    ref.ID,
		URL:      ref.URL,
		FormID:   s.formID,
		Resource: s.resource,
		Field:    s.field,
		Status:   model.JournalUploaded,
	})
	if err != nil {
		s.warn("запись загрузки", ref.ID, err)
	}
}

func (s *journalingStorage) warn(op, refID string, err error) {
	s.logger.Warn("Журнал загрузок: "+op,
		slog.String("form_id", s.formID),
		slog.String("field", s.field),
		slog.String("ref_id", refID),
		slog.String("error", err.Error()),
	)
}

// JournalService — чтение журнала загрузок для владельца хранилища.
type JournalService struct {
	journal repository.UploadJournal
	enabled bool
}

// NewJournalService создаёт сервис журнала. enabled = false означает,
// что PostgreSQL не настроен и журнал не ведётся.
func NewJournalService(journal repository.UploadJournal, enabled bool) *JournalService {
	if journal == nil {
		journal = repository.NopJournal{}
	}
	return &JournalService{journal: journal, enabled: enabled}
}

// Enabled сообщает, ведётся ли журнал.
func (s *JournalService) Enabled() bool { return s.enabled }

// Orphans возвращает файлы без сохранённой записи, загруженные раньше
// чем now - olderThan.
func (s *JournalService) Orphans(ctx context.Context, olderThan time.Duration, limit, offset int) ([]*model.JournalEntry, error) {
	if limit < 1 || limit > 1000 {
		return nil, fmt.Errorf("%w: limit должен быть в диапазоне 1-1000", ErrValidation)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset не может быть отрицательным", ErrValidation)
	}
	if olderThan < 0 {
		return nil, fmt.Errorf("%w: older_than не может быть отрицательным", ErrValidation)
	}
	entries, err := s.journal.ListOrphans(ctx, time.Now().Add(-olderThan), limit, offset)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*model.JournalEntry{}
	}
	return entries, nil
}

// Stats возвращает количество записей журнала по статусам.
func (s *JournalService) Stats(ctx context.Context) (map[string]int, error) {
	return s.journal.CountByStatus(ctx)
}

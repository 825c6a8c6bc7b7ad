package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Saidqodirxon/innocare-admin/internal/domain/model"
)

// UploadJournal — журнал загрузок форм.
type UploadJournal interface {
	// Record добавляет запись о загруженном файле (status = uploaded).
	// Повторная запись той же пары (ref_id, form_id) возвращает её в uploaded.
	Record(ctx context.Context, e *model.JournalEntry) error
	// MarkStatus меняет статус записей формы с указанными ref_id.
	// Возвращает количество изменённых записей.
	MarkStatus(ctx context.Context, formID string, refIDs []string, status string) (int, error)
	// MarkFormStatus меняет статус всех записей формы в статусе from.
	MarkFormStatus(ctx context.Context, formID, from, to string) (int, error)
	// ListOrphans возвращает файлы, не вошедшие ни в одну сохранённую запись
	// (uploaded или abandoned) и загруженные раньше olderThan.
	ListOrphans(ctx context.Context, olderThan time.Time, limit, offset int) ([]*model.JournalEntry, error)
	// CountByStatus возвращает количество записей по статусам.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type uploadJournalRepo struct {
	db DBTX
}

// NewUploadJournal создаёт репозиторий журнала загрузок.
func NewUploadJournal(db DBTX) UploadJournal {
	return &uploadJournalRepo{db: db}
}

func (r *uploadJournalRepo) Record(ctx context.Context, e *model.JournalEntry) error {
	query := `
		INSERT INTO upload_journal (ref_id, form_id, url, resource, field, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ref_id, form_id) DO UPDATE SET
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	if e.Status == "" {
		e.Status = model.JournalUploaded
	}
	err := r.db.QueryRow(ctx, query,
		e.RefID, e.FormID, e.URL, e.Resource, e.Field, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал загрузок: %w", err)
	}
	return nil
}

func (r *uploadJournalRepo) MarkStatus(ctx context.Context, formID string, refIDs []string, status string) (int, error) {
	if len(refIDs) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE upload_journal SET status = $1, updated_at = NOW()
		WHERE form_id = $2 AND ref_id = ANY($3)`,
		status, formID, refIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка смены статуса в журнале загрузок: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *uploadJournalRepo) MarkFormStatus(ctx context.Context, formID, from, to string) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE upload_journal SET status = $1, updated_at = NOW()
		WHERE form_id = $2 AND status = $3`,
		to, formID, from,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка смены статуса формы в журнале загрузок: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *uploadJournalRepo) ListOrphans(ctx context.Context, olderThan time.Time, limit, offset int) ([]*model.JournalEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ref_id, form_id, url, resource, field, status, created_at, updated_at
		FROM upload_journal
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at, ref_id
		LIMIT $4 OFFSET $5`,
		model.JournalUploaded, model.JournalAbandoned, olderThan, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения брошенных файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.JournalEntry
	for rows.Next() {
		e := &model.JournalEntry{}
		if err := rows.Scan(
			&e.RefID, &e.FormID, &e.URL, &e.Resource, &e.Field, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *uploadJournalRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM upload_journal GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта записей журнала: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		model.JournalUploaded:  0,
		model.JournalCommitted: 0,
		model.JournalRemoved:   0,
		model.JournalAbandoned: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счётчика журнала: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// NopJournal — журнал без хранилища. Используется, когда PostgreSQL не настроен.
type NopJournal struct{}

var _ UploadJournal = NopJournal{}

func (NopJournal) Record(context.Context, *model.JournalEntry) error { return nil }

func (NopJournal) MarkStatus(context.Context, string, []string, string) (int, error) { return 0, nil }

func (NopJournal) MarkFormStatus(context.Context, string, string, string) (int, error) { return 0, nil }

func (NopJournal) ListOrphans(context.Context, time.Time, int, int) ([]*model.JournalEntry, error) {
	return []*model.JournalEntry{}, nil
}

func (NopJournal) CountByStatus(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

// records.go — списки и удаление записей ресурсов консоли.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Saidqodirxon/innocare-admin/internal/contentclient"
)

// RecordAPI — операции API ресурсов для страниц списков.
type RecordAPI interface {
	List(ctx context.Context, resource string, filter contentclient.ListFilter) ([]contentclient.Record, error)
	Delete(ctx context.Context, resource, id string) error
}

// RecordService — списки записей и их удаление.
// Файлы вложений удалённой записи остаются в хранилище нетронутыми,
// как и при удалении из консоли.
type RecordService struct {
	api    RecordAPI
	logger *slog.Logger
}

// NewRecordService создаёт сервис записей.
func NewRecordService(api RecordAPI, logger *slog.Logger) *RecordService {
	return &RecordService{
		api:    api,
		logger: logger.With(slog.String("component", "records")),
	}
}

func (s *RecordService) lookup(name string) (contentclient.Resource, error) {
	res, ok := contentclient.Lookup(name)
	if !ok {
		return contentclient.Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return res, nil
}

// List возвращает записи ресурса. Фильтры передаются бэкенду как есть.
func (s *RecordService) List(ctx context.Context, resourceName string, filter contentclient.ListFilter) ([]contentclient.Record, error) {
	res, err := s.lookup(resourceName)
	if err != nil {
		return nil, err
	}
	if !res.Listable {
		return nil, fmt.Errorf("%w: список %s", ErrNotSupported, res.Name)
	}

	records, err := s.api.List(ctx, res.Name, filter)
	if err != nil {
		return nil, fmt.Errorf("список %s: %w", res.Name, err)
	}
	return records, nil
}

// Delete удаляет запись ресурса.
func (s *RecordService) Delete(ctx context.Context, resourceName, id string) error {
	res, err := s.lookup(resourceName)
	if err != nil {
		return err
	}
	if !res.Deletable {
		return fmt.Errorf("%w: удаление %s", ErrNotSupported, res.Name)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: пустой id записи", ErrValidation)
	}

	if err := s.api.Delete(ctx, res.Name, id); err != nil {
		return fmt.Errorf("удаление %s/%s: %w", res.Name, id, err)
	}

	s.logger.Info("Запись удалена",
		slog.String("resource", res.Name),
		slog.String("record_id", id),
	)
	return nil
}

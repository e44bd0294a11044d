package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrelay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*formDeliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*formDeliveryRecord](db, formDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *DeliveryStore) Record(ctx context.Context, record core.DeliveryRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	completedAt := record.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	row := &formDeliveryRecord{
		ID:            uuid.NewString(),
		SubmissionID:  strings.TrimSpace(record.SubmissionID),
		FormID:        strings.TrimSpace(record.FormID),
		ConnectorType: strings.TrimSpace(record.ConnectorType),
		ConnectorName: strings.TrimSpace(record.ConnectorName),
		Status:        string(record.Status),
		Attempts:      record.Attempts,
		LastError:     record.LastError,
		CompletedAt:   completedAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (s *DeliveryStore) ListBySubmission(ctx context.Context, submissionID string) ([]core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	var records []*formDeliveryRecord
	if err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.submission_id = ?", strings.TrimSpace(submissionID)).
		Order("completed_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.DeliveryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, core.DeliveryRecord{
			SubmissionID:  record.SubmissionID,
			FormID:        record.FormID,
			ConnectorType: record.ConnectorType,
			ConnectorName: record.ConnectorName,
			Status:        core.DeliveryStatus(record.Status),
			Attempts:      record.Attempts,
			LastError:     record.LastError,
			CompletedAt:   record.CompletedAt,
		})
	}
	return out, nil
}

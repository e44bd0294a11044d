package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrelay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SubmissionStore struct {
	db   *bun.DB
	repo repository.Repository[*formSubmissionRecord]
}

func NewSubmissionStore(db *bun.DB) (*SubmissionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*formSubmissionRecord](db, formSubmissionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid submission repository wiring: %w", err)
		}
	}
	return &SubmissionStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SubmissionStore) Save(ctx context.Context, submission core.FormSubmission) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: submission store is not configured")
	}
	if err := submission.Validate(); err != nil {
		return "", err
	}

	id := strings.TrimSpace(submission.ID)
	if id == "" {
		id = uuid.NewString()
	}
	submittedAt := submission.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	record := &formSubmissionRecord{
		ID:          id,
		FormID:      strings.TrimSpace(submission.FormID),
		Payload:     submission.Payload,
		ClientIP:    strings.TrimSpace(submission.ClientIP),
		UserAgent:   strings.TrimSpace(submission.UserAgent),
		Referer:     strings.TrimSpace(submission.Referer),
		ContentType: strings.TrimSpace(submission.ContentType),
		SubmittedAt: submittedAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SubmissionStore) Get(ctx context.Context, id string) (core.FormSubmission, error) {
	if s == nil || s.db == nil {
		return core.FormSubmission{}, fmt.Errorf("sqlstore: submission store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.FormSubmission{}, fmt.Errorf("%w: empty id", core.ErrSubmissionNotFound)
	}

	record := &formSubmissionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.FormSubmission{}, fmt.Errorf("%w: %s", core.ErrSubmissionNotFound, trimmed)
		}
		return core.FormSubmission{}, err
	}
	return submissionToDomain(record), nil
}

// ListByForm returns recent submissions for a form, newest first.
func (s *SubmissionStore) ListByForm(ctx context.Context, formID string, limit int) ([]core.FormSubmission, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: submission store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	var records []*formSubmissionRecord
	if err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.form_id = ?", strings.TrimSpace(formID)).
		Order("submitted_at DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.FormSubmission, 0, len(records))
	for _, record := range records {
		out = append(out, submissionToDomain(record))
	}
	return out, nil
}

func submissionToDomain(record *formSubmissionRecord) core.FormSubmission {
	if record == nil {
		return core.FormSubmission{}
	}
	return core.FormSubmission{
		ID:          record.ID,
		FormID:      record.FormID,
		Payload:     record.Payload,
		ClientIP:    record.ClientIP,
		UserAgent:   record.UserAgent,
		Referer:     record.Referer,
		ContentType: record.ContentType,
		SubmittedAt: record.SubmittedAt,
	}
}

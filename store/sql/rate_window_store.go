package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-formrelay/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RateWindowStore backs the fixed-window limiter with a shared table so the
// limit holds across process restarts and multiple instances.
type RateWindowStore struct {
	db *bun.DB
}

func NewRateWindowStore(db *bun.DB) (*RateWindowStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateWindowStore{db: db}, nil
}

func (s *RateWindowStore) Get(ctx context.Context, formID string) (ratelimit.Window, error) {
	if s == nil || s.db == nil {
		return ratelimit.Window{}, fmt.Errorf("sqlstore: rate window store is not configured")
	}
	record := &formRateWindowRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.form_id = ?", normalizeFormID(formID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ratelimit.Window{}, ratelimit.ErrWindowNotFound
		}
		return ratelimit.Window{}, err
	}
	return ratelimit.Window{
		FormID:    record.FormID,
		Count:     record.Count,
		StartedAt: record.StartedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Acquire increments the counter inside one transaction. An elapsed window
// restarts at count 1; a full window denies without writing.
func (s *RateWindowStore) Acquire(ctx context.Context, formID string, limit int, window time.Duration, now time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: rate window store is not configured")
	}
	if limit <= 0 {
		return false, fmt.Errorf("sqlstore: rate limit must be positive")
	}
	key := normalizeFormID(formID)
	now = now.UTC()

	allowed := false
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		record := &formRateWindowRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.form_id = ?", key).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			record = &formRateWindowRecord{
				ID:        uuid.NewString(),
				FormID:    key,
				Count:     1,
				StartedAt: now,
				UpdatedAt: now,
			}
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					// Concurrent first request won the insert; deny this one
					// and let the caller retry against the fresh window.
					return nil
				}
				return insertErr
			}
			allowed = true
			return nil
		case err != nil:
			return err
		}

		if now.Sub(record.StartedAt) >= window {
			_, updateErr := tx.NewUpdate().
				Model((*formRateWindowRecord)(nil)).
				Set("count = ?", 1).
				Set("started_at = ?", now).
				Set("updated_at = ?", now).
				Where("form_id = ?", key).
				Exec(ctx)
			if updateErr != nil {
				return updateErr
			}
			allowed = true
			return nil
		}
		if record.Count >= limit {
			return nil
		}
		_, updateErr := tx.NewUpdate().
			Model((*formRateWindowRecord)(nil)).
			Set("count = count + 1").
			Set("updated_at = ?", now).
			Where("form_id = ?", key).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

func (s *RateWindowStore) Reset(ctx context.Context, formID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate window store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*formRateWindowRecord)(nil)).
		Where("form_id = ?", normalizeFormID(formID)).
		Exec(ctx)
	return err
}

var _ ratelimit.WindowStore = (*RateWindowStore)(nil)

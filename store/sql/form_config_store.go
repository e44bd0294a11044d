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

type FormConfigStore struct {
	db   *bun.DB
	repo repository.Repository[*formConfigurationRecord]
}

func NewFormConfigStore(db *bun.DB) (*FormConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*formConfigurationRecord](db, formConfigurationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid form configuration repository wiring: %w", err)
		}
	}
	return &FormConfigStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *FormConfigStore) Upsert(ctx context.Context, config core.FormConfiguration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: form config store is not configured")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	formID := normalizeFormID(config.FormID)
	now := time.Now().UTC()
	record := formConfigurationToRecord(config)
	record.FormID = formID
	record.UpdatedAt = now

	result, err := s.db.NewUpdate().
		Model(record).
		Column("enabled", "privacy", "allowed_domains", "rate_limit", "connectors", "updated_at").
		Where("form_id = ?", formID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return nil
	}

	record.ID = uuid.NewString()
	record.CreatedAt = now
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			// Lost the insert race; the row exists now, update it.
			_, updateErr := s.db.NewUpdate().
				Model(record).
				Column("enabled", "privacy", "allowed_domains", "rate_limit", "connectors", "updated_at").
				Where("form_id = ?", formID).
				Exec(ctx)
			return updateErr
		}
		return err
	}
	return nil
}

func (s *FormConfigStore) FindByFormID(ctx context.Context, formID string) (core.FormConfiguration, error) {
	if s == nil || s.db == nil {
		return core.FormConfiguration{}, fmt.Errorf("sqlstore: form config store is not configured")
	}
	trimmed := normalizeFormID(formID)
	if trimmed == "" {
		return core.FormConfiguration{}, fmt.Errorf("%w: empty form id", core.ErrFormNotFound)
	}

	record := &formConfigurationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.form_id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.FormConfiguration{}, fmt.Errorf("%w: %s", core.ErrFormNotFound, trimmed)
		}
		return core.FormConfiguration{}, err
	}
	return formConfigurationToDomain(record), nil
}

func (s *FormConfigStore) Delete(ctx context.Context, formID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: form config store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*formConfigurationRecord)(nil)).
		Where("form_id = ?", normalizeFormID(formID)).
		Exec(ctx)
	return err
}

// List returns every stored configuration, for loading a static resolver
// snapshot at startup.
func (s *FormConfigStore) List(ctx context.Context) ([]core.FormConfiguration, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: form config store is not configured")
	}
	var records []*formConfigurationRecord
	if err := s.db.NewSelect().
		Model(&records).
		Order("form_id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.FormConfiguration, 0, len(records))
	for _, record := range records {
		out = append(out, formConfigurationToDomain(record))
	}
	return out, nil
}

func formConfigurationToRecord(config core.FormConfiguration) *formConfigurationRecord {
	record := &formConfigurationRecord{
		FormID:         normalizeFormID(config.FormID),
		Enabled:        config.Enabled,
		Privacy:        config.Privacy,
		AllowedDomains: append([]string(nil), config.AllowedDomains...),
	}
	if record.AllowedDomains == nil {
		record.AllowedDomains = []string{}
	}
	if config.RateLimit != nil {
		record.RateLimit = &rateLimitDocument{
			Requests:      config.RateLimit.Requests,
			WindowMinutes: config.RateLimit.WindowMinutes,
		}
	}
	record.Connectors = make([]connectorDocument, 0, len(config.Connectors))
	for _, connector := range config.Connectors {
		record.Connectors = append(record.Connectors, connectorDocument{
			Type:     connector.Type,
			Name:     connector.Name,
			Enabled:  connector.Enabled,
			Settings: connector.Settings,
		})
	}
	return record
}

func formConfigurationToDomain(record *formConfigurationRecord) core.FormConfiguration {
	if record == nil {
		return core.FormConfiguration{}
	}
	config := core.FormConfiguration{
		FormID:         record.FormID,
		Enabled:        record.Enabled,
		Privacy:        record.Privacy,
		AllowedDomains: append([]string(nil), record.AllowedDomains...),
	}
	if record.RateLimit != nil {
		config.RateLimit = &core.RateLimitSettings{
			Requests:      record.RateLimit.Requests,
			WindowMinutes: record.RateLimit.WindowMinutes,
		}
	}
	config.Connectors = make([]core.ConnectorConfiguration, 0, len(record.Connectors))
	for _, connector := range record.Connectors {
		config.Connectors = append(config.Connectors, core.ConnectorConfiguration{
			Type:     connector.Type,
			Name:     connector.Name,
			Enabled:  connector.Enabled,
			Settings: connector.Settings,
		})
	}
	return config
}

func normalizeFormID(formID string) string {
	return strings.ToLower(strings.TrimSpace(formID))
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

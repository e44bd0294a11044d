package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func formConfigurationHandlers() repository.ModelHandlers[*formConfigurationRecord] {
	return repository.ModelHandlers[*formConfigurationRecord]{
		NewRecord: func() *formConfigurationRecord {
			return &formConfigurationRecord{}
		},
		GetID: func(record *formConfigurationRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *formConfigurationRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "form_id"
		},
		GetIdentifierValue: func(record *formConfigurationRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.FormID)
		},
	}
}

func formSubmissionHandlers() repository.ModelHandlers[*formSubmissionRecord] {
	return repository.ModelHandlers[*formSubmissionRecord]{
		NewRecord: func() *formSubmissionRecord {
			return &formSubmissionRecord{}
		},
		GetID: func(record *formSubmissionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *formSubmissionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *formSubmissionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func formDeliveryHandlers() repository.ModelHandlers[*formDeliveryRecord] {
	return repository.ModelHandlers[*formDeliveryRecord]{
		NewRecord: func() *formDeliveryRecord {
			return &formDeliveryRecord{}
		},
		GetID: func(record *formDeliveryRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *formDeliveryRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *formDeliveryRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

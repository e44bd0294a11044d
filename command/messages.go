package command

import (
	"strings"

	"github.com/goliatone/go-formrelay/core"
)

const (
	TypeSubmitForm              = "formrelay.command.form.submit"
	TypeUpsertFormConfiguration = "formrelay.command.form_configuration.upsert"
	TypeDeleteFormConfiguration = "formrelay.command.form_configuration.delete"
)

type SubmitFormMessage struct {
	Request core.SubmitRequest
}

func (SubmitFormMessage) Type() string { return TypeSubmitForm }

func (m SubmitFormMessage) Validate() error {
	if strings.TrimSpace(m.Request.FormID) == "" {
		return commandValidationError("form_id", "form id is required")
	}
	if len(m.Request.Payload) == 0 {
		return commandValidationError("payload", "payload is required")
	}
	return nil
}

type UpsertFormConfigurationMessage struct {
	Configuration core.FormConfiguration
}

func (UpsertFormConfigurationMessage) Type() string { return TypeUpsertFormConfiguration }

func (m UpsertFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.Configuration.FormID) == "" {
		return commandValidationError("form_id", "form id is required")
	}
	if err := m.Configuration.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid form configuration")
	}
	return nil
}

type DeleteFormConfigurationMessage struct {
	FormID string
}

func (DeleteFormConfigurationMessage) Type() string { return TypeDeleteFormConfiguration }

func (m DeleteFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.FormID) == "" {
		return commandValidationError("form_id", "form id is required")
	}
	return nil
}

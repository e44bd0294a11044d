package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetSubmission        = "formrelay.query.submission.get"
	TypeGetFormConfiguration = "formrelay.query.form_configuration.get"
	TypeListDeliveries       = "formrelay.query.deliveries.list"
)

type GetSubmissionMessage struct {
	SubmissionID string
}

func (GetSubmissionMessage) Type() string { return TypeGetSubmission }

func (m GetSubmissionMessage) Validate() error {
	if strings.TrimSpace(m.SubmissionID) == "" {
		return fmt.Errorf("query: submission id is required")
	}
	return nil
}

type GetFormConfigurationMessage struct {
	FormID string
}

func (GetFormConfigurationMessage) Type() string { return TypeGetFormConfiguration }

func (m GetFormConfigurationMessage) Validate() error {
	if strings.TrimSpace(m.FormID) == "" {
		return fmt.Errorf("query: form id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	SubmissionID string
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if strings.TrimSpace(m.SubmissionID) == "" {
		return fmt.Errorf("query: submission id is required")
	}
	return nil
}

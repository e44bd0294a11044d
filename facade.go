package formrelay

import (
	"fmt"

	relaycommand "github.com/goliatone/go-formrelay/command"
	"github.com/goliatone/go-formrelay/core"
	relayquery "github.com/goliatone/go-formrelay/query"
)

var _ CommandQueryService = (*core.Service)(nil)

// CommandQueryService is the runtime surface the facade wraps. *core.Service
// satisfies it.
type CommandQueryService interface {
	relaycommand.MutatingService
	relayquery.SubmissionReader
	relayquery.FormConfigurationReader
	relayquery.DeliveryReader
}

type Commands struct {
	SubmitForm          *relaycommand.SubmitFormCommand
	UpsertConfiguration *relaycommand.UpsertFormConfigurationCommand
	DeleteConfiguration *relaycommand.DeleteFormConfigurationCommand
}

type Queries struct {
	GetSubmission        *relayquery.GetSubmissionQuery
	GetFormConfiguration *relayquery.GetFormConfigurationQuery
	ListDeliveries       *relayquery.ListDeliveriesQuery
}

// Facade bundles the command and query wrappers around one relay service so
// callers wire a single value into their dispatcher.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("formrelay: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SubmitForm:          relaycommand.NewSubmitFormCommand(service),
		UpsertConfiguration: relaycommand.NewUpsertFormConfigurationCommand(service),
		DeleteConfiguration: relaycommand.NewDeleteFormConfigurationCommand(service),
	}
	facade.queries = Queries{
		GetSubmission:        relayquery.NewGetSubmissionQuery(service),
		GetFormConfiguration: relayquery.NewGetFormConfigurationQuery(service),
		ListDeliveries:       relayquery.NewListDeliveriesQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

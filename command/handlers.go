package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-formrelay/core"
)

// MutatingService is the slice of the relay service the commands mutate
// through. *core.Service satisfies it.
type MutatingService interface {
	Accept(ctx context.Context, req core.SubmitRequest) (core.AcceptResult, error)
	UpsertFormConfiguration(ctx context.Context, config core.FormConfiguration) error
	DeleteFormConfiguration(ctx context.Context, formID string) error
}

type SubmitFormCommand struct {
	service MutatingService
}

func NewSubmitFormCommand(service MutatingService) *SubmitFormCommand {
	return &SubmitFormCommand{service: service}
}

func (c *SubmitFormCommand) Execute(ctx context.Context, msg SubmitFormMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submit service is required")
	}
	out, err := c.service.Accept(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpsertFormConfigurationCommand struct {
	service MutatingService
}

func NewUpsertFormConfigurationCommand(service MutatingService) *UpsertFormConfigurationCommand {
	return &UpsertFormConfigurationCommand{service: service}
}

func (c *UpsertFormConfigurationCommand) Execute(ctx context.Context, msg UpsertFormConfigurationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: configuration service is required")
	}
	return c.service.UpsertFormConfiguration(ctx, msg.Configuration)
}

type DeleteFormConfigurationCommand struct {
	service MutatingService
}

func NewDeleteFormConfigurationCommand(service MutatingService) *DeleteFormConfigurationCommand {
	return &DeleteFormConfigurationCommand{service: service}
}

func (c *DeleteFormConfigurationCommand) Execute(ctx context.Context, msg DeleteFormConfigurationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: configuration service is required")
	}
	return c.service.DeleteFormConfiguration(ctx, msg.FormID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

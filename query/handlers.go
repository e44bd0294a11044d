package query

import (
	"context"

	"github.com/goliatone/go-formrelay/core"
)

type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (core.FormSubmission, error)
}

type FormConfigurationReader interface {
	GetFormConfiguration(ctx context.Context, formID string) (core.FormConfiguration, error)
}

type DeliveryReader interface {
	ListDeliveries(ctx context.Context, submissionID string) ([]core.DeliveryRecord, error)
}

type GetSubmissionQuery struct {
	reader SubmissionReader
}

func NewGetSubmissionQuery(reader SubmissionReader) *GetSubmissionQuery {
	return &GetSubmissionQuery{reader: reader}
}

func (q *GetSubmissionQuery) Query(ctx context.Context, msg GetSubmissionMessage) (core.FormSubmission, error) {
	if q == nil || q.reader == nil {
		return core.FormSubmission{}, queryDependencyError("query: submission reader is required")
	}
	return q.reader.GetSubmission(ctx, msg.SubmissionID)
}

type GetFormConfigurationQuery struct {
	reader FormConfigurationReader
}

func NewGetFormConfigurationQuery(reader FormConfigurationReader) *GetFormConfigurationQuery {
	return &GetFormConfigurationQuery{reader: reader}
}

func (q *GetFormConfigurationQuery) Query(
	ctx context.Context,
	msg GetFormConfigurationMessage,
) (core.FormConfiguration, error) {
	if q == nil || q.reader == nil {
		return core.FormConfiguration{}, queryDependencyError("query: form configuration reader is required")
	}
	return q.reader.GetFormConfiguration(ctx, msg.FormID)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) ([]core.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListDeliveries(ctx, msg.SubmissionID)
}

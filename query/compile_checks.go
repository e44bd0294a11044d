package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-formrelay/core"
)

var (
	_ gocmd.Querier[GetSubmissionMessage, core.FormSubmission]           = (*GetSubmissionQuery)(nil)
	_ gocmd.Querier[GetFormConfigurationMessage, core.FormConfiguration] = (*GetFormConfigurationQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, []core.DeliveryRecord]        = (*ListDeliveriesQuery)(nil)
)

package formrelay

import (
	"context"
	"testing"

	relaycommand "github.com/goliatone/go-formrelay/command"
	"github.com/goliatone/go-formrelay/core"
	relayquery "github.com/goliatone/go-formrelay/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SubmitForm == nil || commands.UpsertConfiguration == nil || commands.DeleteConfiguration == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetSubmission == nil || queries.GetFormConfiguration == nil || queries.ListDeliveries == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().DeleteConfiguration.Execute(context.Background(), relaycommand.DeleteFormConfigurationMessage{
		FormID: "contact",
	}); err != nil {
		t.Fatalf("execute delete command: %v", err)
	}
	if svc.lastDeletedFormID != "contact" {
		t.Fatalf("unexpected delete delegation payload %q", svc.lastDeletedFormID)
	}

	submission, err := facade.Queries().GetSubmission.Query(context.Background(), relayquery.GetSubmissionMessage{
		SubmissionID: "sub_1",
	})
	if err != nil {
		t.Fatalf("query submission: %v", err)
	}
	if submission.ID != "sub_1" || submission.FormID != "contact" {
		t.Fatalf("unexpected submission query result: %#v", submission)
	}

	deliveries, err := facade.Queries().ListDeliveries.Query(context.Background(), relayquery.ListDeliveriesMessage{
		SubmissionID: "sub_1",
	})
	if err != nil {
		t.Fatalf("query deliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].ConnectorName != "crm" {
		t.Fatalf("unexpected deliveries query result: %#v", deliveries)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDeletedFormID string
}

func (s *stubFacadeService) Accept(context.Context, core.SubmitRequest) (core.AcceptResult, error) {
	return core.AcceptResult{SubmissionID: "sub_1", Enqueued: 1}, nil
}

func (s *stubFacadeService) UpsertFormConfiguration(context.Context, core.FormConfiguration) error {
	return nil
}

func (s *stubFacadeService) DeleteFormConfiguration(_ context.Context, formID string) error {
	s.lastDeletedFormID = formID
	return nil
}

func (s *stubFacadeService) GetSubmission(context.Context, string) (core.FormSubmission, error) {
	return core.FormSubmission{ID: "sub_1", FormID: "contact"}, nil
}

func (s *stubFacadeService) GetFormConfiguration(context.Context, string) (core.FormConfiguration, error) {
	return core.FormConfiguration{FormID: "contact", Enabled: true}, nil
}

func (s *stubFacadeService) ListDeliveries(context.Context, string) ([]core.DeliveryRecord, error) {
	return []core.DeliveryRecord{
		{SubmissionID: "sub_1", ConnectorType: "webhook", ConnectorName: "crm", Status: core.DeliverySucceeded},
	}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)

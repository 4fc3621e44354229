package service

import (
	"context"

	"github.com/wellpath/wellpath/internal/flow"
)

// Materializer is the single place where flow decisions become durable
// state. It applies an action list through the repositories, in order,
// inside whatever unit of work the caller holds open.
type Materializer struct {
	ServiceParams
}

func NewMaterializer(params ServiceParams) *Materializer {
	return &Materializer{ServiceParams: params}
}

// Apply materializes the actions. The first failing action aborts the
// rest; the caller's unit of work decides whether earlier actions stick.
func (m *Materializer) Apply(ctx context.Context, actions []flow.Action) error {
	for _, action := range actions {
		var err error
		switch a := action.(type) {
		case flow.CreateSubscription:
			err = m.SubRepo.Create(ctx, a.Subscription)
		case flow.UpdateSubscription:
			err = m.SubRepo.Update(ctx, a.Subscription)
		case flow.DeleteSubscription:
			err = m.SubRepo.Delete(ctx, a.SubscriptionID)
		case flow.CreateIntegrationLink:
			err = m.SubIntegrationRepo.Create(ctx, a.Link)
		case flow.CreatePaymentIssue:
			err = m.PaymentIssueRepo.Create(ctx, a.Issue)
		case flow.UpdatePaymentIssue:
			err = m.PaymentIssueRepo.Update(ctx, a.Issue)
		case flow.CreateRenewalStrategy:
			err = m.RenewalStrategyRepo.Create(ctx, a.Strategy)
		case flow.UpdateRenewalStrategy:
			err = m.RenewalStrategyRepo.Update(ctx, a.Strategy)
		case flow.CreateEntitlement:
			err = m.EntitlementRepo.Create(ctx, a.Entitlement)
		case flow.UpdateEntitlement:
			err = m.EntitlementRepo.Update(ctx, a.Entitlement)
		case flow.UpdatePatient:
			err = m.PatientRepo.Update(ctx, a.Patient)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Package flow contains the pure decision units of the membership core.
// Each flow takes current state plus inputs and returns a list of entity
// mutations (actions) and a typed result. Flows never touch repositories,
// clocks or the network; the service layer materializes their actions
// inside a unit of work.
package flow

import (
	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/subscription"
)

// Action is one entity mutation produced by a flow. The set of actions is
// closed; the materializer switches over it exhaustively.
type Action interface {
	isAction()
}

type CreateSubscription struct {
	Subscription *subscription.Subscription
}

type UpdateSubscription struct {
	Subscription *subscription.Subscription
}

type DeleteSubscription struct {
	SubscriptionID string
}

type CreateIntegrationLink struct {
	Link *subscription.SubscriptionIntegration
}

type CreatePaymentIssue struct {
	Issue *paymentissue.PaymentIssue
}

type UpdatePaymentIssue struct {
	Issue *paymentissue.PaymentIssue
}

type CreateRenewalStrategy struct {
	Strategy *subscription.RenewalStrategy
}

type UpdateRenewalStrategy struct {
	Strategy *subscription.RenewalStrategy
}

type CreateEntitlement struct {
	Entitlement *entitlement.Entitlement
}

type UpdateEntitlement struct {
	Entitlement *entitlement.Entitlement
}

type UpdatePatient struct {
	Patient *patient.Patient
}

func (CreateSubscription) isAction()    {}
func (UpdateSubscription) isAction()    {}
func (DeleteSubscription) isAction()    {}
func (CreateIntegrationLink) isAction() {}
func (CreatePaymentIssue) isAction()    {}
func (UpdatePaymentIssue) isAction()    {}
func (CreateRenewalStrategy) isAction() {}
func (UpdateRenewalStrategy) isAction() {}
func (CreateEntitlement) isAction()     {}
func (UpdateEntitlement) isAction()     {}
func (UpdatePatient) isAction()         {}

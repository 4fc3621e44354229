package service

import (
	"github.com/wellpath/wellpath/internal/config"
	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// ServiceParams holds the dependencies shared by all services. Services
// embed it and pick what they need, which keeps construction uniform and
// lets one service instantiate another with the same params.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     types.UnitOfWork

	SubRepo             subscription.Repository
	SubIntegrationRepo  subscription.IntegrationRepository
	RenewalStrategyRepo subscription.RenewalStrategyRepository
	PatientRepo         patient.Repository
	PlanRepo            plan.Repository
	PromoRepo           promocode.Repository
	EmployerRepo        employer.Repository
	PaymentIssueRepo    paymentissue.Repository
	EntitlementRepo     entitlement.Repository

	BillingRegistry *billing.Registry
	EventPublisher  publisher.Publisher
}

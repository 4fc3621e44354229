package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/wellpath/wellpath/internal/config"
	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// Stores bundles every in-memory repository a service test can need.
type Stores struct {
	SubscriptionRepo    *InMemorySubscriptionStore
	SubIntegrationRepo  *InMemorySubscriptionIntegrationStore
	RenewalStrategyRepo *InMemoryRenewalStrategyStore
	PatientRepo         *InMemoryPatientStore
	PlanRepo            *InMemoryPlanStore
	PromoRepo           *InMemoryPromoCodeStore
	EmployerRepo        *InMemoryEmployerStore
	PaymentIssueRepo    *InMemoryPaymentIssueStore
	EntitlementRepo     *InMemoryEntitlementStore
}

// BaseServiceTestSuite wires a fresh set of in-memory stores, config and
// context for every test.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	cfg       *config.Configuration
	log       *logger.Logger
	db        *InMemoryUnitOfWork
	stores    Stores
	publisher publisher.Publisher
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.SetPracticeID(context.Background(), "practice_test")
	s.ctx = types.SetUserID(s.ctx, types.DefaultUserID)
	s.ctx = types.SetRequestID(s.ctx, types.GenerateUUID())

	s.cfg = config.GetDefaultConfig()
	// Webhook retries back off in milliseconds so tests exercising the
	// bounded retry loop stay fast.
	s.cfg.Webhook.NotFoundRetryBackoff = time.Millisecond

	s.log = logger.GetLogger()
	s.publisher = publisher.NewPublisher(s.log)

	s.stores = Stores{
		SubscriptionRepo:    NewInMemorySubscriptionStore(),
		SubIntegrationRepo:  NewInMemorySubscriptionIntegrationStore(),
		RenewalStrategyRepo: NewInMemoryRenewalStrategyStore(),
		PatientRepo:         NewInMemoryPatientStore(),
		PlanRepo:            NewInMemoryPlanStore(),
		PromoRepo:           NewInMemoryPromoCodeStore(),
		EmployerRepo:        NewInMemoryEmployerStore(),
		PaymentIssueRepo:    NewInMemoryPaymentIssueStore(),
		EntitlementRepo:     NewInMemoryEntitlementStore(),
	}

	s.db = NewInMemoryUnitOfWork(
		s.stores.SubscriptionRepo.InMemoryStore,
		s.stores.SubIntegrationRepo.InMemoryStore,
		s.stores.RenewalStrategyRepo.InMemoryStore,
		s.stores.PatientRepo.InMemoryStore,
		s.stores.PaymentIssueRepo.InMemoryStore,
		s.stores.EntitlementRepo.InMemoryStore,
	)
}

func (s *BaseServiceTestSuite) TearDownTest() {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.cfg
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.log
}

func (s *BaseServiceTestSuite) GetDB() *InMemoryUnitOfWork {
	return s.db
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPublisher() publisher.Publisher {
	return s.publisher
}

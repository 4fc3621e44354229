package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/testutil"
	"github.com/wellpath/wellpath/internal/types"
)

type ReconciliationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service ReconciliationService
	params  ServiceParams
	gateway *testutil.FakeBillingGateway
}

func TestReconciliationService(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceSuite))
}

func (s *ReconciliationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.gateway = testutil.NewFakeBillingGateway()
	cfg := s.GetConfig()
	cfg.Webhook.NotFoundRetryAttempts = 2
	s.params = ServiceParams{
		Logger:              s.GetLogger(),
		Config:              cfg,
		DB:                  s.GetDB(),
		SubRepo:             s.GetStores().SubscriptionRepo,
		SubIntegrationRepo:  s.GetStores().SubIntegrationRepo,
		RenewalStrategyRepo: s.GetStores().RenewalStrategyRepo,
		PatientRepo:         s.GetStores().PatientRepo,
		PlanRepo:            s.GetStores().PlanRepo,
		PromoRepo:           s.GetStores().PromoRepo,
		EmployerRepo:        s.GetStores().EmployerRepo,
		PaymentIssueRepo:    s.GetStores().PaymentIssueRepo,
		EntitlementRepo:     s.GetStores().EntitlementRepo,
		BillingRegistry:     billing.NewRegistry(s.gateway),
		EventPublisher:      s.GetPublisher(),
	}
	s.service = NewReconciliationService(s.params)
}

func (s *ReconciliationServiceSuite) seedLinkedSubscription(externalID string) *subscription.Subscription {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().PatientRepo.Add(s.GetContext(), &patient.Patient{
		ID:        "pat_test_1",
		Name:      "Jordan Doe",
		TimeZone:  "UTC",
		BaseModel: base,
	}))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &subscription.Subscription{
		ID:              "subs_test_1",
		PatientID:       "pat_test_1",
		StartDate:       start,
		EndDate:         start.AddDate(0, 1, 0),
		PaymentStrategy: types.PaymentStrategyFullPayment,
		PaymentPriceID:  "price_test_1",
		Price:           decimal.RequireFromString("199"),
		Currency:        "USD",
		BaseModel:       base,
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	s.Require().NoError(s.GetStores().SubIntegrationRepo.Create(s.GetContext(), &subscription.SubscriptionIntegration{
		ID:             "subi_test_1",
		SubscriptionID: sub.ID,
		Vendor:         types.PaymentVendorOpal,
		ExternalID:     externalID,
		BaseModel:      base,
	}))
	return sub
}

func (s *ReconciliationServiceSuite) TestInvoicePaidResolvesOutstandingIssue() {
	s.seedLinkedSubscription("ext_sub_001")
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	issue := paymentissue.New(base, types.PaymentVendorOpal, "ext_sub_001", time.Now().UTC())
	s.Require().NoError(s.GetStores().PaymentIssueRepo.Create(s.GetContext(), issue))

	err := s.service.HandleInvoicePaid(s.GetContext(), billing.InvoicePaidEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      "inv_001",
			SubscriptionID: "ext_sub_001",
			Vendor:         types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	outstanding, err := s.GetStores().PaymentIssueRepo.ListOutstanding(s.GetContext())
	s.NoError(err)
	s.Empty(outstanding, "a paid invoice closes the outstanding issue")
}

func (s *ReconciliationServiceSuite) TestInvoicePaidWithoutIssueIsANoOp() {
	s.seedLinkedSubscription("ext_sub_001")

	err := s.service.HandleInvoicePaid(s.GetContext(), billing.InvoicePaidEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      "inv_001",
			SubscriptionID: "ext_sub_001",
			Vendor:         types.PaymentVendorOpal,
		},
	})
	s.NoError(err)
}

func (s *ReconciliationServiceSuite) TestInvoicePaidMarksEntitlementPaid() {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().EntitlementRepo.Create(s.GetContext(), &entitlement.Entitlement{
		ID:                  "enti_test_1",
		SubscriptionID:      "subs_test_1",
		ProductCode:         "lab_panel_basic",
		PaymentFlowCategory: types.PaymentFlowStandard,
		ExternalInvoiceID:   "inv_002",
		BaseModel:           base,
	}))

	err := s.service.HandleInvoicePaid(s.GetContext(), billing.InvoicePaidEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID: "inv_002",
			Vendor:    types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().EntitlementRepo.Get(s.GetContext(), "enti_test_1")
	s.NoError(err)
	s.NotNil(stored.PaidAt)
}

func (s *ReconciliationServiceSuite) TestFailedPaymentOpensIssue() {
	s.seedLinkedSubscription("ext_sub_001")

	err := s.service.HandleInvoicePaymentFailed(s.GetContext(), billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      "inv_003",
			SubscriptionID: "ext_sub_001",
			Vendor:         types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	issue, err := s.GetStores().PaymentIssueRepo.GetOutstandingByExternalID(s.GetContext(), types.PaymentVendorOpal, "ext_sub_001")
	s.NoError(err)
	s.Equal(1, issue.FailureCount)
	s.Equal(types.PaymentIssueStatusOpen, issue.IssueStatus)
}

func (s *ReconciliationServiceSuite) TestSecondFailedPaymentProgressesExistingIssue() {
	s.seedLinkedSubscription("ext_sub_001")

	event := billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      "inv_003",
			SubscriptionID: "ext_sub_001",
			Vendor:         types.PaymentVendorOpal,
		},
	}
	s.Require().NoError(s.service.HandleInvoicePaymentFailed(s.GetContext(), event))
	s.Require().NoError(s.service.HandleInvoicePaymentFailed(s.GetContext(), event))

	outstanding, err := s.GetStores().PaymentIssueRepo.ListOutstanding(s.GetContext())
	s.NoError(err)
	s.Require().Len(outstanding, 1, "repeated failures reuse the outstanding issue")
	s.Equal(2, outstanding[0].FailureCount)
	s.Equal(types.PaymentIssueStatusPatientNotified, outstanding[0].IssueStatus)
	s.Len(s.gateway.GeneratedLinks, 1, "the patient gets a payment link on the repeat failure")
}

func (s *ReconciliationServiceSuite) TestFailedPaymentForOrphanCancelsExternally() {
	err := s.service.HandleInvoicePaymentFailed(s.GetContext(), billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      "inv_004",
			SubscriptionID: "ext_sub_unknown",
			Vendor:         types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	s.Equal([]string{"ext_sub_unknown"}, s.gateway.CanceledSubscriptions)
	outstanding, err := s.GetStores().PaymentIssueRepo.ListOutstanding(s.GetContext())
	s.NoError(err)
	s.Empty(outstanding, "orphan subscriptions are canceled, not dunned")
}

func (s *ReconciliationServiceSuite) seedCatalogPrice() {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().PlanRepo.AddPriceDetails(s.GetContext(), &plan.PriceDetails{
		Plan: &plan.PaymentPlan{
			ID:                  "plan_test_1",
			Name:                "Primary Care Membership",
			PaymentFlowCategory: types.PaymentFlowStandard,
			BaseModel:           base,
		},
		Period: &plan.PaymentPeriod{
			ID:                     "perd_test_1",
			PlanID:                 "plan_test_1",
			PeriodInMonths:         1,
			DefaultPaymentStrategy: types.PaymentStrategyFullPayment,
			BaseModel:              base,
		},
		Price: &plan.PaymentPrice{
			ID:        "price_test_1",
			PeriodID:  "perd_test_1",
			PlanID:    "plan_test_1",
			Amount:    decimal.RequireFromString("199"),
			Currency:  "USD",
			BaseModel: base,
		},
	}))
	s.gateway.Catalog = []billing.CatalogPrice{{
		ExternalPlanRef: "opal_plan_monthly",
		PaymentPriceID:  "price_test_1",
		Amount:          decimal.RequireFromString("199"),
		Currency:        "USD",
	}}
}

func (s *ReconciliationServiceSuite) TestExternallyCreatedSubscriptionIsAdopted() {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().PatientRepo.Add(s.GetContext(), &patient.Patient{
		ID:        "pat_test_1",
		Name:      "Jordan Doe",
		TimeZone:  "UTC",
		BaseModel: base,
	}))
	s.seedCatalogPrice()

	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	event := billing.SubscriptionCreatedEvent{
		Vendor: types.PaymentVendorOpal,
		Subscription: billing.SubscriptionSnapshot{
			ExternalID:         "ext_sub_dash_1",
			Status:             billing.ExternalStatusActive,
			PlanRef:            "opal_plan_monthly",
			Amount:             decimal.RequireFromString("199"),
			Currency:           "USD",
			CurrentPeriodStart: &periodStart,
			CustomerRef:        "pat_test_1",
		},
	}
	s.Require().NoError(s.service.HandleSubscriptionCreated(s.GetContext(), event))
	// Providers redeliver webhooks; the second delivery must not create a
	// second local row.
	s.Require().NoError(s.service.HandleSubscriptionCreated(s.GetContext(), event))

	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Require().Len(subs, 1)
	s.Equal("pat_test_1", subs[0].PatientID)
	s.Equal("price_test_1", subs[0].PaymentPriceID)
	s.Equal(periodStart, subs[0].StartDate)
	s.True(subs[0].StartupFee.IsZero(), "adopted subscriptions never charge a startup fee")

	link, err := s.GetStores().SubIntegrationRepo.GetByExternalID(s.GetContext(), types.PaymentVendorOpal, "ext_sub_dash_1")
	s.NoError(err)
	s.Equal(subs[0].ID, link.SubscriptionID)
}

func (s *ReconciliationServiceSuite) TestExternalTerminalStatusCancelsLocally() {
	sub := s.seedLinkedSubscription("ext_sub_001")

	err := s.service.HandleSubscriptionUpdated(s.GetContext(), billing.SubscriptionUpdatedEvent{
		Vendor: types.PaymentVendorOpal,
		Subscription: billing.SubscriptionSnapshot{
			ExternalID: "ext_sub_001",
			Status:     billing.ExternalStatusCanceled,
			Amount:     decimal.RequireFromString("199"),
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.True(stored.IsCanceled())
	s.Equal(types.CancellationReasonCanceledInPaymentSystem, *stored.CanceledReasonType)
}

func (s *ReconciliationServiceSuite) TestExternalCancelAtPeriodEndSchedulesCancellation() {
	sub := s.seedLinkedSubscription("ext_sub_001")
	periodEnd := sub.EndDate

	err := s.service.HandleSubscriptionUpdated(s.GetContext(), billing.SubscriptionUpdatedEvent{
		Vendor: types.PaymentVendorOpal,
		Subscription: billing.SubscriptionSnapshot{
			ExternalID:        "ext_sub_001",
			Status:            billing.ExternalStatusActive,
			Amount:            decimal.RequireFromString("199"),
			CancelAtPeriodEnd: true,
			CurrentPeriodEnd:  &periodEnd,
		},
	})
	s.NoError(err)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.False(stored.IsCanceled())
	s.Require().NotNil(stored.CancellationRequest)
	s.Equal(periodEnd, stored.CancellationRequest.EffectiveDate)
}

func (s *ReconciliationServiceSuite) TestUpdateForUnknownSubscriptionIsTolerated() {
	err := s.service.HandleSubscriptionUpdated(s.GetContext(), billing.SubscriptionUpdatedEvent{
		Vendor: types.PaymentVendorOpal,
		Subscription: billing.SubscriptionSnapshot{
			ExternalID: "ext_sub_unknown",
			Status:     billing.ExternalStatusActive,
			Amount:     decimal.RequireFromString("199"),
		},
	})
	s.NoError(err, "updates for unknown subscriptions are logged, not failed")
}

func (s *ReconciliationServiceSuite) TestFailedProductInvoiceOpensIssueByInvoiceID() {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().EntitlementRepo.Create(s.GetContext(), &entitlement.Entitlement{
		ID:                  "enti_test_2",
		SubscriptionID:      "subs_test_1",
		ProductCode:         "lab_panel_basic",
		PaymentFlowCategory: types.PaymentFlowStandard,
		ExternalInvoiceID:   "inv_010",
		BaseModel:           base,
	}))

	err := s.service.HandleInvoicePaymentFailed(s.GetContext(), billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID: "inv_010",
			Vendor:    types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	issue, err := s.GetStores().PaymentIssueRepo.GetOutstandingByExternalID(s.GetContext(), types.PaymentVendorOpal, "inv_010")
	s.NoError(err, "product invoice issues correlate by invoice id")
	s.Equal(1, issue.FailureCount)

	err = s.service.HandleInvoicePaid(s.GetContext(), billing.InvoicePaidEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID: "inv_010",
			Vendor:    types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	outstanding, err := s.GetStores().PaymentIssueRepo.ListOutstanding(s.GetContext())
	s.NoError(err)
	s.Empty(outstanding, "paying the invoice resolves its issue")
	stored, err := s.GetStores().EntitlementRepo.Get(s.GetContext(), "enti_test_2")
	s.NoError(err)
	s.NotNil(stored.PaidAt)
}

func (s *ReconciliationServiceSuite) TestFailedInvoiceWithNoLocalReferenceIsIgnored() {
	err := s.service.HandleInvoicePaymentFailed(s.GetContext(), billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID: "inv_unknown",
			Vendor:    types.PaymentVendorOpal,
		},
	})
	s.NoError(err)

	outstanding, err := s.GetStores().PaymentIssueRepo.ListOutstanding(s.GetContext())
	s.NoError(err)
	s.Empty(outstanding)
	s.Empty(s.gateway.CanceledSubscriptions)
}

func (s *ReconciliationServiceSuite) TestExternallyCreatedSubscriptionNotAdoptedOverActiveLocal() {
	base := types.BaseModel{PracticeID: "practice_test", Status: types.StatusPublished}
	s.Require().NoError(s.GetStores().PatientRepo.Add(s.GetContext(), &patient.Patient{
		ID:        "pat_test_1",
		Name:      "Jordan Doe",
		TimeZone:  "UTC",
		BaseModel: base,
	}))
	s.seedCatalogPrice()

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), &subscription.Subscription{
		ID:              "subs_local_1",
		PatientID:       "pat_test_1",
		StartDate:       start,
		EndDate:         start.AddDate(0, 6, 0),
		PaymentStrategy: types.PaymentStrategyFullPayment,
		PaymentPriceID:  "price_test_1",
		Price:           decimal.RequireFromString("199"),
		Currency:        "USD",
		BaseModel:       base,
	}))

	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	err := s.service.HandleSubscriptionCreated(s.GetContext(), billing.SubscriptionCreatedEvent{
		Vendor: types.PaymentVendorOpal,
		Subscription: billing.SubscriptionSnapshot{
			ExternalID:         "ext_sub_dash_2",
			Status:             billing.ExternalStatusActive,
			PlanRef:            "opal_plan_monthly",
			Amount:             decimal.RequireFromString("199"),
			Currency:           "USD",
			CurrentPeriodStart: &periodStart,
			CustomerRef:        "pat_test_1",
		},
	})
	s.NoError(err)

	subs, err := s.GetStores().SubscriptionRepo.List(s.GetContext(), nil)
	s.NoError(err)
	s.Len(subs, 1, "an active local subscription blocks mirroring a duplicate")
	_, err = s.GetStores().SubIntegrationRepo.GetByExternalID(s.GetContext(), types.PaymentVendorOpal, "ext_sub_dash_2")
	s.Error(err)
}

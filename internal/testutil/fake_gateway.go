package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/types"
)

// FakeBillingGateway is a recording billing.Gateway for service tests.
// Behavior is steered through the public fields; every call is recorded.
type FakeBillingGateway struct {
	mu sync.Mutex

	// VendorName defaults to Opal.
	VendorName types.PaymentVendor

	// CreateErr fails subscription creation.
	CreateErr error
	// PaymentErr fails the charge call itself.
	PaymentErr error
	// PaymentDeclined makes the charge return an unpaid result.
	PaymentDeclined bool
	// PaymentSettled makes the charge report nothing open to pay.
	PaymentSettled bool
	// CancelNotFound makes cancels report the subscription missing.
	CancelNotFound bool
	// PaymentLinkErr fails payment link generation.
	PaymentLinkErr error

	// Snapshots are returned by GetPatientSubscription, keyed by external
	// id.
	Snapshots map[string]*billing.SubscriptionSnapshot
	// Catalog is returned by GetPriceCatalog.
	Catalog []billing.CatalogPrice

	CreatedSubscriptions  []string
	BackdatedCreates      []string
	ProcessedPayments     []string
	CanceledSubscriptions []string
	DeletedSubscriptions  []string
	UpdatedPrices         []string
	GeneratedLinks        []string

	nextID int
}

func NewFakeBillingGateway() *FakeBillingGateway {
	return &FakeBillingGateway{
		VendorName: types.PaymentVendorOpal,
		Snapshots:  make(map[string]*billing.SubscriptionSnapshot),
	}
}

func (g *FakeBillingGateway) Vendor() types.PaymentVendor {
	return g.VendorName
}

func (g *FakeBillingGateway) newExternalID() string {
	g.nextID++
	return fmt.Sprintf("ext_sub_%03d", g.nextID)
}

func (g *FakeBillingGateway) CreateOrUpdateSubscription(_ context.Context, _ *patient.Patient, _ billing.SubscriptionPriceDetails, _ *subscription.Subscription) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	id := g.newExternalID()
	g.CreatedSubscriptions = append(g.CreatedSubscriptions, id)
	return id, nil
}

func (g *FakeBillingGateway) CreateSubscriptionBackdated(_ context.Context, _ *patient.Patient, _ billing.SubscriptionPriceDetails, _ time.Time, _ bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	id := g.newExternalID()
	g.BackdatedCreates = append(g.BackdatedCreates, id)
	return id, nil
}

func (g *FakeBillingGateway) ProcessSubscriptionPayment(_ context.Context, _ *patient.Patient, externalSubscriptionID string) (*billing.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ProcessedPayments = append(g.ProcessedPayments, externalSubscriptionID)
	if g.PaymentErr != nil {
		return nil, g.PaymentErr
	}
	if g.PaymentSettled {
		return nil, nil
	}
	if g.PaymentDeclined {
		return &billing.PaymentResult{
			InvoiceID:      "inv_" + externalSubscriptionID,
			Paid:           false,
			FailureMessage: "card declined",
		}, nil
	}
	return &billing.PaymentResult{
		InvoiceID: "inv_" + externalSubscriptionID,
		Paid:      true,
	}, nil
}

func (g *FakeBillingGateway) TryCancelSubscription(_ context.Context, externalSubscriptionID string, _ *time.Time, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CanceledSubscriptions = append(g.CanceledSubscriptions, externalSubscriptionID)
	if g.CancelNotFound {
		return false, nil
	}
	return true, nil
}

func (g *FakeBillingGateway) GetPatientSubscription(_ context.Context, _ *patient.Patient, externalSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snapshot, ok := g.Snapshots[externalSubscriptionID]
	if !ok {
		return nil, ierr.NewErrorf("subscription %s not found", externalSubscriptionID).Mark(ierr.ErrNotFound)
	}
	return snapshot, nil
}

func (g *FakeBillingGateway) UpdateSubscriptionPrice(_ context.Context, _ string, externalSubscriptionID string, _ billing.SubscriptionPriceDetails) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.UpdatedPrices = append(g.UpdatedPrices, externalSubscriptionID)
	return nil
}

func (g *FakeBillingGateway) DeleteSubscription(_ context.Context, externalSubscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.DeletedSubscriptions = append(g.DeletedSubscriptions, externalSubscriptionID)
	return nil
}

func (g *FakeBillingGateway) GeneratePaymentLink(_ context.Context, _ *patient.Patient, externalSubscriptionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PaymentLinkErr != nil {
		return "", g.PaymentLinkErr
	}
	link := "https://pay.opalpay.test/" + externalSubscriptionID
	g.GeneratedLinks = append(g.GeneratedLinks, link)
	return link, nil
}

func (g *FakeBillingGateway) GetPriceCatalog(_ context.Context) ([]billing.CatalogPrice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Catalog, nil
}

package opal

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/cache"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/types"
)

const priceCatalogCacheKey = "opal:price_catalog"

// gateway adapts the Opal API client to the provider-neutral billing
// gateway interface.
type gateway struct {
	client *Client
	cache  cache.Cache
	logger *logger.Logger
}

// NewGateway creates the Opal billing gateway.
func NewGateway(client *Client, cacheStore cache.Cache, log *logger.Logger) billing.Gateway {
	return &gateway{
		client: client,
		cache:  cacheStore,
		logger: log,
	}
}

func (g *gateway) Vendor() types.PaymentVendor {
	return types.PaymentVendorOpal
}

func (g *gateway) CreateOrUpdateSubscription(ctx context.Context, p *patient.Patient, price billing.SubscriptionPriceDetails, previous *subscription.Subscription) (string, error) {
	customer, err := g.upsertCustomer(ctx, p)
	if err != nil {
		return "", err
	}

	req := &CreateSubscriptionRequest{
		CustomerID:     customer.ID,
		PlanRef:        price.PriceID,
		Amount:         price.Amount,
		SetupFee:       price.StartupFee,
		Currency:       price.Currency,
		IntervalMonths: price.PeriodInMonths,
		PromoCode:      price.PromoCode,
		Metadata:       map[string]string{"patient_id": p.ID},
	}
	// Opal replaces the customer's existing subscription for the same
	// plan family when the previous subscription id is supplied.
	if previous != nil {
		req.Metadata["previous_subscription_id"] = previous.ID
	}

	sub, err := g.client.CreateSubscription(ctx, req)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (g *gateway) CreateSubscriptionBackdated(ctx context.Context, p *patient.Patient, price billing.SubscriptionPriceDetails, backdate time.Time, noStartupFee bool) (string, error) {
	customer, err := g.upsertCustomer(ctx, p)
	if err != nil {
		return "", err
	}

	sub, err := g.client.CreateSubscription(ctx, &CreateSubscriptionRequest{
		CustomerID:     customer.ID,
		PlanRef:        price.PriceID,
		Amount:         price.Amount,
		SetupFee:       price.StartupFee,
		Currency:       price.Currency,
		IntervalMonths: price.PeriodInMonths,
		PromoCode:      price.PromoCode,
		BackdateTo:     &backdate,
		SkipSetupFee:   noStartupFee,
		Metadata:       map[string]string{"patient_id": p.ID},
	})
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (g *gateway) ProcessSubscriptionPayment(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (*billing.PaymentResult, error) {
	invoice, err := g.client.GetOpenInvoice(ctx, externalSubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// No open invoice means the charge already settled.
			return nil, nil
		}
		return nil, err
	}

	paid, err := g.client.PayInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}

	result := &billing.PaymentResult{
		InvoiceID:      paid.Invoice.ID,
		Paid:           paid.Invoice.Status == InvoiceStatusPaid,
		Amount:         paid.Invoice.Amount,
		Currency:       paid.Invoice.Currency,
		FailureMessage: paid.Invoice.FailureMessage,
	}
	if !result.Paid {
		g.logger.Warnw("opal invoice payment did not settle",
			"invoice_id", paid.Invoice.ID,
			"status", paid.Invoice.Status,
			"opal_subscription_id", externalSubscriptionID)
	}
	return result, nil
}

func (g *gateway) TryCancelSubscription(ctx context.Context, externalSubscriptionID string, endDate *time.Time, reason string) (bool, error) {
	err := g.client.CancelSubscription(ctx, externalSubscriptionID, &CancelSubscriptionRequest{
		CancelAt: endDate,
		Reason:   reason,
	})
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *gateway) GetPatientSubscription(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	sub, err := g.client.GetSubscription(ctx, externalSubscriptionID)
	if err != nil {
		return nil, err
	}
	return snapshotFromOpal(sub), nil
}

func (g *gateway) UpdateSubscriptionPrice(ctx context.Context, practiceID string, externalSubscriptionID string, price billing.SubscriptionPriceDetails) error {
	_, err := g.client.UpdateSubscription(ctx, externalSubscriptionID, &UpdateSubscriptionRequest{
		Amount:    price.Amount,
		Currency:  price.Currency,
		PlanRef:   price.PriceID,
		PromoCode: price.PromoCode,
	})
	return err
}

func (g *gateway) DeleteSubscription(ctx context.Context, externalSubscriptionID string) error {
	return g.client.DeleteSubscription(ctx, externalSubscriptionID)
}

func (g *gateway) GeneratePaymentLink(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (string, error) {
	customer, err := g.client.GetCustomerByReference(ctx, p.ID)
	if err != nil {
		return "", err
	}
	link, err := g.client.CreatePaymentLink(ctx, &CreatePaymentLinkRequest{
		SubscriptionID: externalSubscriptionID,
		CustomerID:     customer.ID,
	})
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

func (g *gateway) GetPriceCatalog(ctx context.Context) ([]billing.CatalogPrice, error) {
	if cached, found := g.cache.Get(ctx, priceCatalogCacheKey); found {
		if catalog, ok := cache.UnmarshalCacheValue[[]billing.CatalogPrice](cached); ok {
			return *catalog, nil
		}
	}

	resp, err := g.client.ListPrices(ctx)
	if err != nil {
		return nil, err
	}

	catalog := lo.Map(resp.Prices, func(p OpalPrice, _ int) billing.CatalogPrice {
		return billing.CatalogPrice{
			ExternalPlanRef: p.PlanRef,
			PaymentPriceID:  p.Reference,
			Amount:          p.Amount,
			Currency:        p.Currency,
		}
	})

	g.cache.Set(ctx, priceCatalogCacheKey, &catalog, cache.ExpiryPriceCatalog)
	return catalog, nil
}

// upsertCustomer ensures the patient exists as an Opal customer, keyed by
// the local patient id.
func (g *gateway) upsertCustomer(ctx context.Context, p *patient.Patient) (*OpalCustomer, error) {
	return g.client.UpsertCustomer(ctx, &CreateCustomerRequest{
		Name:      p.Name,
		Email:     p.Email,
		Reference: p.ID,
	})
}

func snapshotFromOpal(sub *OpalSubscription) *billing.SubscriptionSnapshot {
	return &billing.SubscriptionSnapshot{
		ExternalID:         sub.ID,
		Status:             billing.ExternalSubscriptionStatus(sub.Status),
		PlanRef:            sub.PlanRef,
		Amount:             sub.Amount,
		Currency:           sub.Currency,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CustomerRef:        sub.Metadata["patient_id"],
	}
}

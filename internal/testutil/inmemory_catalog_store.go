package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	ierr "github.com/wellpath/wellpath/internal/errors"
)

// InMemoryPlanStore implements plan.Repository over three stores, one per
// catalog level.
type InMemoryPlanStore struct {
	Plans   *InMemoryStore[*plan.PaymentPlan]
	Periods *InMemoryStore[*plan.PaymentPeriod]
	Prices  *InMemoryStore[*plan.PaymentPrice]
}

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		Plans:   NewInMemoryStore[*plan.PaymentPlan](),
		Periods: NewInMemoryStore[*plan.PaymentPeriod](),
		Prices:  NewInMemoryStore[*plan.PaymentPrice](),
	}
}

// AddPriceDetails seeds a full plan/period/price chain.
func (s *InMemoryPlanStore) AddPriceDetails(ctx context.Context, details *plan.PriceDetails) error {
	if err := details.Validate(); err != nil {
		return err
	}
	if _, err := s.Plans.Get(ctx, details.Plan.ID); err != nil {
		if err := s.Plans.Create(ctx, details.Plan.ID, details.Plan); err != nil {
			return err
		}
	}
	if _, err := s.Periods.Get(ctx, details.Period.ID); err != nil {
		if err := s.Periods.Create(ctx, details.Period.ID, details.Period); err != nil {
			return err
		}
	}
	return s.Prices.Create(ctx, details.Price.ID, details.Price)
}

func (s *InMemoryPlanStore) GetPlan(ctx context.Context, id string) (*plan.PaymentPlan, error) {
	p, err := s.Plans.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("payment plan %s not found", id).Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) GetPeriod(ctx context.Context, id string) (*plan.PaymentPeriod, error) {
	p, err := s.Periods.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("payment period %s not found", id).Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) GetPrice(ctx context.Context, id string) (*plan.PaymentPrice, error) {
	p, err := s.Prices.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("payment price %s not found", id).Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryPlanStore) GetPriceDetails(ctx context.Context, priceID string) (*plan.PriceDetails, error) {
	price, err := s.GetPrice(ctx, priceID)
	if err != nil {
		return nil, err
	}
	period, err := s.GetPeriod(ctx, price.PeriodID)
	if err != nil {
		return nil, err
	}
	paymentPlan, err := s.GetPlan(ctx, price.PlanID)
	if err != nil {
		return nil, err
	}
	return &plan.PriceDetails{
		Price:  price,
		Period: period,
		Plan:   paymentPlan,
	}, nil
}

func (s *InMemoryPlanStore) ListPricesByPeriod(ctx context.Context, periodID string) ([]*plan.PaymentPrice, error) {
	return lo.Filter(s.Prices.All(ctx), func(p *plan.PaymentPrice, _ int) bool {
		return p.PeriodID == periodID
	}), nil
}

// InMemoryPatientStore implements patient.Repository
type InMemoryPatientStore struct {
	*InMemoryStore[*patient.Patient]
}

func NewInMemoryPatientStore() *InMemoryPatientStore {
	return &InMemoryPatientStore{
		InMemoryStore: NewInMemoryStore[*patient.Patient](),
	}
}

func copyPatient(p *patient.Patient) *patient.Patient {
	if p == nil {
		return nil
	}
	copied := *p
	copied.FounderSponsorID = copyStringPtr(p.FounderSponsorID)
	return &copied
}

// Add seeds a patient.
func (s *InMemoryPatientStore) Add(ctx context.Context, p *patient.Patient) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPatient(p))
}

func (s *InMemoryPatientStore) Get(ctx context.Context, id string) (*patient.Patient, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("patient %s not found", id).Mark(ierr.ErrNotFound)
	}
	return copyPatient(p), nil
}

func (s *InMemoryPatientStore) Update(ctx context.Context, p *patient.Patient) error {
	if p == nil {
		return ierr.NewError("patient cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, copyPatient(p))
}

// InMemoryPromoCodeStore implements promocode.Repository
type InMemoryPromoCodeStore struct {
	*InMemoryStore[*promocode.PromoCodeCoupon]
}

func NewInMemoryPromoCodeStore() *InMemoryPromoCodeStore {
	return &InMemoryPromoCodeStore{
		InMemoryStore: NewInMemoryStore[*promocode.PromoCodeCoupon](),
	}
}

// Add seeds a coupon.
func (s *InMemoryPromoCodeStore) Add(ctx context.Context, c *promocode.PromoCodeCoupon) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryPromoCodeStore) Get(ctx context.Context, id string) (*promocode.PromoCodeCoupon, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("promo code coupon %s not found", id).Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (s *InMemoryPromoCodeStore) GetByCode(ctx context.Context, code string) (*promocode.PromoCodeCoupon, error) {
	c, found := lo.Find(s.All(ctx), func(c *promocode.PromoCodeCoupon) bool {
		return c.Code == code
	})
	if !found {
		return nil, ierr.NewErrorf("no coupon with code %s", code).Mark(ierr.ErrNotFound)
	}
	return c, nil
}

// InMemoryEmployerStore implements employer.Repository
type InMemoryEmployerStore struct {
	*InMemoryStore[*employer.EmployerProduct]
}

func NewInMemoryEmployerStore() *InMemoryEmployerStore {
	return &InMemoryEmployerStore{
		InMemoryStore: NewInMemoryStore[*employer.EmployerProduct](),
	}
}

// Add seeds an employer product.
func (s *InMemoryEmployerStore) Add(ctx context.Context, p *employer.EmployerProduct) error {
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryEmployerStore) Get(ctx context.Context, id string) (*employer.EmployerProduct, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("employer product %s not found", id).Mark(ierr.ErrNotFound)
	}
	return p, nil
}

package employer

import (
	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/types"
)

// EmployerProduct is an employer-sponsored membership product. When a
// subscription references one, the employer covers SubsidyAmount of each
// period's price.
type EmployerProduct struct {
	ID            string          `json:"id"`
	EmployerName  string          `json:"employer_name"`
	SubsidyAmount decimal.Decimal `json:"subsidy_amount"`
	// PaymentFlowCategory a subscription inherits from this product.
	PaymentFlowCategory types.PaymentFlowCategory `json:"payment_flow_category"`
	types.BaseModel
}

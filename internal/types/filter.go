package types

import "github.com/samber/lo"

const (
	FilterDefaultLimit = 50
	FilterMaxLimit     = 1000

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// QueryFilter contains pagination and ordering parameters shared by all
// list operations.
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty"`
	Offset *int    `json:"offset,omitempty"`
	Sort   *string `json:"sort,omitempty"`
	Order  *string `json:"order,omitempty"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FilterDefaultLimit),
		Offset: lo.ToPtr(0),
	}
}

func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{Offset: lo.ToPtr(0)}
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return FilterDefaultLimit
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f *QueryFilter) GetSort() string {
	if f == nil || f.Sort == nil {
		return ""
	}
	return *f.Sort
}

func (f *QueryFilter) GetOrder() string {
	if f == nil || f.Order == nil {
		return OrderDesc
	}
	return *f.Order
}

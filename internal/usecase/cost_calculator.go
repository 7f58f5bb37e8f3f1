package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/wayfarerhq/payment-service/internal/domain/entity"
)

// CostBreakdown is the fixed decomposition of what a requester pays:
// item cost, delivery fee and tip. Single currency, no tax.
type CostBreakdown struct {
	ItemsCost   decimal.Decimal `json:"items_cost"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tip         decimal.Decimal `json:"tip"`
	Total       decimal.Decimal `json:"total"`
}

// TotalCents converts the total to integer minor units for the ledger.
func (c CostBreakdown) TotalCents() int64 {
	return c.Total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CalculateCost computes the cost of a delivery request. Item cost is
// Σ(quantity × unit price), where an item's post-purchase actual price
// overrides its estimate. Pure function; resolving the request is the
// caller's responsibility.
func CalculateCost(items []entity.RequestItem, deliveryFee, tip decimal.Decimal) CostBreakdown {
	itemsCost := decimal.Zero
	for _, item := range items {
		line := item.UnitPrice().Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsCost = itemsCost.Add(line)
	}

	return CostBreakdown{
		ItemsCost:   itemsCost,
		DeliveryFee: deliveryFee,
		Tip:         tip,
		Total:       itemsCost.Add(deliveryFee).Add(tip),
	}
}

// RequestCost calculates the cost breakdown for a delivery request with an
// optional tip.
func RequestCost(req *entity.DeliveryRequest, tip decimal.Decimal) CostBreakdown {
	return CalculateCost(req.Items, req.DeliveryFee, tip)
}

package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wayfarerhq/payment-service/internal/domain/entity"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateCost(t *testing.T) {
	t.Run("items plus fee plus tip", func(t *testing.T) {
		items := []entity.RequestItem{
			{Name: "matcha kit", Quantity: 2, EstimatedPrice: d("10.99")},
		}

		breakdown := CalculateCost(items, d("5"), d("2"))

		assert.True(t, breakdown.ItemsCost.Equal(d("21.98")))
		assert.True(t, breakdown.DeliveryFee.Equal(d("5")))
		assert.True(t, breakdown.Tip.Equal(d("2")))
		assert.True(t, breakdown.Total.Equal(d("28.98")))
	})

	t.Run("actual price overrides the estimate", func(t *testing.T) {
		actual := d("12.50")
		items := []entity.RequestItem{
			{Name: "matcha kit", Quantity: 2, EstimatedPrice: d("10.99"), ActualPrice: &actual},
			{Name: "postcard", Quantity: 3, EstimatedPrice: d("1.20")},
		}

		breakdown := CalculateCost(items, d("5"), decimal.Zero)

		// 2*12.50 + 3*1.20
		assert.True(t, breakdown.ItemsCost.Equal(d("28.60")))
		assert.True(t, breakdown.Total.Equal(d("33.60")))
	})

	t.Run("no items means fee plus tip only", func(t *testing.T) {
		breakdown := CalculateCost(nil, d("5"), d("1.50"))

		assert.True(t, breakdown.ItemsCost.IsZero())
		assert.True(t, breakdown.Total.Equal(d("6.50")))
	})

	t.Run("zero tip by default", func(t *testing.T) {
		req := &entity.DeliveryRequest{
			DeliveryFee: d("4.25"),
			Items: []entity.RequestItem{
				{Name: "snacks", Quantity: 1, EstimatedPrice: d("3.75")},
			},
		}

		breakdown := RequestCost(req, decimal.Zero)

		assert.True(t, breakdown.Tip.IsZero())
		assert.True(t, breakdown.Total.Equal(d("8")))
	})
}

func TestCostBreakdownTotalCents(t *testing.T) {
	breakdown := CalculateCost([]entity.RequestItem{
		{Name: "matcha kit", Quantity: 2, EstimatedPrice: d("10.99")},
	}, d("5"), d("2"))

	assert.Equal(t, int64(2898), breakdown.TotalCents())
}

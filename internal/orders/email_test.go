package orders_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func TestRenderNotification(t *testing.T) {
	o := orders.Order{
		OrderID: "o-1",
		Status:  orders.StatusProcessed,
		Items: []orders.OrderItem{
			{ProductID: "a", Name: "Smartphone", Quantity: 2, Price: decimal.RequireFromString("10")},
			{ProductID: "b", Name: "Case <Red>", Quantity: 1, Price: decimal.RequireFromString("4.5")},
		},
		TotalAmount:     decimal.RequireFromString("24.5"),
		ShippingAddress: address(),
	}

	subject, body, err := orders.RenderNotification(o)
	require.NoError(t, err)
	assert.Equal(t, "Order Processed: o-1", subject)
	assert.Contains(t, body, "Smartphone")
	assert.Contains(t, body, "$20.00")
	assert.Contains(t, body, "$4.50")
	assert.Contains(t, body, "$24.50")
	assert.Contains(t, body, "Case &lt;Red&gt;", "names are escaped")
	assert.Contains(t, body, "Springfield")
	assert.NotContains(t, body, "Reason:")
}

func TestRenderNotification_Failed(t *testing.T) {
	o := orders.Order{
		OrderID:       "o-2",
		Status:        orders.StatusFailed,
		FailureReason: "User not found",
	}
	subject, body, err := orders.RenderNotification(o)
	require.NoError(t, err)
	assert.Equal(t, "Order Failed: o-2", subject)
	assert.Contains(t, body, "Reason:")
	assert.Contains(t, body, "User not found")
	assert.Contains(t, body, "$0.00")
}

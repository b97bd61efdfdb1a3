package orders_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func TestDecodeTask(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    orders.Task
		wantErr error
	}{
		{name: "process order", body: `{"action":"PROCESS_ORDER","orderId":"o-1"}`, want: orders.NewProcessOrderTask("o-1")},
		{name: "extra fields ignored", body: `{"action":"PROCESS_ORDER","orderId":"o-1","retry":2}`, want: orders.NewProcessOrderTask("o-1")},
		{name: "missing order id", body: `{"action":"PROCESS_ORDER"}`, wantErr: orders.ErrMalformedTask},
		{name: "missing action", body: `{"orderId":"o-1"}`, wantErr: orders.ErrMalformedTask},
		{name: "not json", body: `PROCESS_ORDER o-1`, wantErr: orders.ErrMalformedTask},
		{name: "unknown action", body: `{"action":"CANCEL_ORDER","orderId":"o-1"}`, want: orders.Task{Action: "CANCEL_ORDER", OrderID: "o-1"}, wantErr: orders.ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orders.DecodeTask([]byte(tt.body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskEncode(t *testing.T) {
	b, err := orders.NewProcessOrderTask("o-9").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"PROCESS_ORDER","orderId":"o-9"}`, string(b))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, orders.CanTransition(orders.StatusPending, orders.StatusProcessed))
	assert.True(t, orders.CanTransition(orders.StatusPending, orders.StatusFailed))
	assert.False(t, orders.CanTransition(orders.StatusProcessed, orders.StatusFailed))
	assert.False(t, orders.CanTransition(orders.StatusFailed, orders.StatusPending))
	assert.False(t, orders.CanTransition(orders.StatusPending, orders.StatusPending))
}

package orders

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/ariefcatur/go-order-fulfillment/internal/orders")

package orders

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

var notificationTmpl = template.Must(template.New("order").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Order {{.Status}}</h2>
  <p>Order ID: <strong>{{.OrderID}}</strong></p>
  <p>Status: <strong>{{.Status}}</strong></p>
  {{- if .FailureReason}}
  <p>Reason: <strong>{{.FailureReason}}</strong></p>
  {{- end}}
  <h3>Order Details</h3>
  <table style="width: 100%; border-collapse: collapse;">
    <thead>
      <tr style="background-color: #f2f2f2;">
        <th style="padding: 8px; text-align: left;">Product</th>
        <th style="padding: 8px; text-align: left;">Quantity</th>
        <th style="padding: 8px; text-align: left;">Price</th>
        <th style="padding: 8px; text-align: left;">Total</th>
      </tr>
    </thead>
    <tbody>
    {{- range .Items}}
      <tr>
        <td style="padding: 8px;">{{.Name}}</td>
        <td style="padding: 8px;">{{.Quantity}}</td>
        <td style="padding: 8px;">{{money .Price}}</td>
        <td style="padding: 8px;">{{money .LineTotal}}</td>
      </tr>
    {{- end}}
    </tbody>
    <tfoot>
      <tr>
        <td colspan="3" style="padding: 8px; text-align: right; font-weight: bold;">Total Amount:</td>
        <td style="padding: 8px; font-weight: bold;">{{money .TotalAmount}}</td>
      </tr>
    </tfoot>
  </table>
  <h3>Shipping Address</h3>
  <p>
    {{.ShippingAddress.Street}}<br>
    {{.ShippingAddress.City}}, {{.ShippingAddress.State}} {{.ShippingAddress.ZipCode}}<br>
    {{.ShippingAddress.Country}}
  </p>
  <p>Thank you for your order!</p>
</div>
`))

// RenderNotification builds the customer email for a finalized order.
func RenderNotification(o Order) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, o); err != nil {
		return "", "", fmt.Errorf("render notification: %w", err)
	}
	return fmt.Sprintf("Order %s: %s", o.Status, o.OrderID), buf.String(), nil
}

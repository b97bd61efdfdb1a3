package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// InventoryItem is the stock row for one product. Reserved counts units held
// by pending orders; QuantityOnHand counts physical units.
type InventoryItem struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	QuantityOnHand int             `json:"quantityOnHand"`
	Reserved       int             `json:"reserved"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (i InventoryItem) Available() int { return i.QuantityOnHand - i.Reserved }

type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "Credit Card"
	PaymentPayPal       PaymentMethod = "PayPal"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentPayPal, PaymentBankTransfer:
		return true
	}
	return false
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// OrderItem snapshots name and unit price at order time.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	OrderID         string          `json:"orderId"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          Status          `json:"status"`
	FailureReason   string          `json:"failureReason,omitempty"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// VisibleTo reports whether the caller owns the order or is an admin.
func (o Order) VisibleTo(c Caller) bool {
	return c.Role == RoleAdmin || (c.UserID != "" && o.UserID == c.UserID)
}

func totalOf(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Caller is the authenticated identity making a request.
type Caller struct {
	UserID string
	Role   Role
}

// Line is one requested product/quantity pair.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "database"
)

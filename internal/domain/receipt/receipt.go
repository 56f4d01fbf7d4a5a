// Package receipt defines the printable document model shared by the layout
// engine, the print spooler, and the network fallback channel.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the document union. The set is closed; anything else is
// rejected at the boundary.
type Kind string

const (
	KindOrderReceipt Kind = "order_receipt"
	KindShiftReport  Kind = "shift_report"
	KindShiftStart   Kind = "shift_start"
	KindTest         Kind = "test"
)

// Payment method values recognised on order documents.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

// Business identifies the venue printed in the receipt header and footer.
type Business struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Footer  string `json:"footer"`
}

// LineItem is a single ordered item.
type LineItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Note       string          `json:"special_instructions,omitempty"`
	Modifiers  []string        `json:"modifiers,omitempty"`
}

// OrderPayload carries the order_receipt specific fields.
type OrderPayload struct {
	Number        string          `json:"order_number"`
	Table         string          `json:"table"`
	Customer      string          `json:"customer"`
	OrderType     string          `json:"order_type"`
	PaymentMethod string          `json:"payment_method"`
	PaymentRef    string          `json:"payment_reference,omitempty"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount_amount"`
	Tax           decimal.Decimal `json:"tax_amount"`
	Tip           decimal.Decimal `json:"tip_amount"`
	Total         decimal.Decimal `json:"total_amount"`
	CashReceived  decimal.Decimal `json:"cash_received"`
	Change        decimal.Decimal `json:"change_amount"`
}

// PaymentBreakdown aggregates shift takings per payment method.
type PaymentBreakdown struct {
	Cash   decimal.Decimal `json:"cash"`
	Card   decimal.Decimal `json:"card"`
	Mobile decimal.Decimal `json:"mobile"`
}

// ShiftPayload carries the shift_report and shift_start specific fields.
// A shift_start document leaves the end-of-shift aggregates at zero.
type ShiftPayload struct {
	StaffName    string           `json:"staff_name"`
	StaffID      string           `json:"staff_id"`
	Role         string           `json:"role"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      time.Time        `json:"ended_at"`
	StartingCash decimal.Decimal  `json:"starting_cash"`
	EndingCash   decimal.Decimal  `json:"ending_cash"`
	OrderCount   int              `json:"order_count"`
	TotalSales   decimal.Decimal  `json:"total_sales"`
	TotalTips    decimal.Decimal  `json:"total_tips"`
	Payments     PaymentBreakdown `json:"payments"`
}

// Document is the tagged union handed to the print pipeline. Exactly one of
// Order/Shift is set depending on Kind; test documents carry neither.
type Document struct {
	Kind     Kind          `json:"type"`
	Business Business      `json:"business"`
	IssuedAt time.Time     `json:"issued_at"`
	Order    *OrderPayload `json:"order,omitempty"`
	Shift    *ShiftPayload `json:"shift,omitempty"`
}

// IsCashPayment reports whether the document is an order paid in cash, the
// only case where cash-received/change lines and the drawer kick apply.
func (d *Document) IsCashPayment() bool {
	return d.Kind == KindOrderReceipt && d.Order != nil && d.Order.PaymentMethod == PaymentCash
}

// TotalWithTip is the amount the customer actually owes. Tips are tracked
// outside the order total, so cash change is computed against this sum.
func (o *OrderPayload) TotalWithTip() decimal.Decimal {
	return o.Total.Add(o.Tip)
}

// Ref returns a short human-readable reference for logs and the job journal.
func (d *Document) Ref() string {
	switch {
	case d.Kind == KindOrderReceipt && d.Order != nil:
		return d.Order.Number
	case (d.Kind == KindShiftReport || d.Kind == KindShiftStart) && d.Shift != nil:
		return d.Shift.StaffID
	}
	return string(d.Kind)
}

package receipt

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidDocument is the sentinel wrapped by every validation failure, so
// callers can map the whole class to a single "invalid document" response.
var ErrInvalidDocument = errors.New("invalid document")

// FieldError reports which field of an incoming document was rejected.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid document: %s: %s", e.Field, e.Reason)
}

// Unwrap ties FieldError into the ErrInvalidDocument class.
func (e *FieldError) Unwrap() error { return ErrInvalidDocument }

// Normalize validates d and fills derived fields in place. It is called once
// at the orchestrator boundary; past this point the pipeline trusts the
// document.
//
// Derived fields: Change is recomputed as max(0, cash received − total) for
// cash orders and zeroed otherwise, regardless of what the caller sent.
func Normalize(d *Document) error {
	switch d.Kind {
	case KindOrderReceipt:
		if d.Order == nil {
			return &FieldError{Field: "order", Reason: "missing payload for order_receipt"}
		}
		return normalizeOrder(d.Order)
	case KindShiftReport, KindShiftStart:
		if d.Shift == nil {
			return &FieldError{Field: "shift", Reason: "missing payload for " + string(d.Kind)}
		}
		return nil
	case KindTest:
		return nil
	}
	return &FieldError{Field: "type", Reason: fmt.Sprintf("unknown document type %q", d.Kind)}
}

func normalizeOrder(o *OrderPayload) error {
	for i, item := range o.Items {
		if item.Quantity < 0 {
			return &FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must not be negative"}
		}
		if item.TotalPrice.IsNegative() {
			return &FieldError{Field: fmt.Sprintf("items[%d].total_price", i), Reason: "must not be negative"}
		}
	}
	if o.Total.IsNegative() {
		return &FieldError{Field: "total_amount", Reason: "must not be negative"}
	}

	if o.PaymentMethod == PaymentCash {
		change := o.CashReceived.Sub(o.TotalWithTip())
		if change.IsNegative() {
			change = decimal.Zero
		}
		o.Change = change
	} else {
		o.Change = decimal.Zero
	}
	return nil
}

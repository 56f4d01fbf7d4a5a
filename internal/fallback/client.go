// Package fallback submits receipt documents to the network print service,
// used when the local hardware channel is unavailable.
package fallback

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/domain/receipt"
)

// Client posts documents to the print service's /print-receipt endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	lg      *zap.Logger
}

// NewClient creates a Client for the given service base URL.
func NewClient(baseURL string, lg *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg.Named("fallback"),
	}
}

// Submit sends doc as JSON. A 2xx response with a {message} body is success;
// anything else is an error carrying the service's message when one is
// present.
func (c *Client) Submit(ctx context.Context, doc *receipt.Document) error {
	var e jx.Encoder
	encodeDocument(&e, doc)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/print-receipt", bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "submit print job")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := extractMessage(body); msg != "" {
			return errors.Errorf("print service: %s (status %d)", msg, resp.StatusCode)
		}
		return errors.Errorf("print service: status %d", resp.StatusCode)
	}

	c.lg.Info("document submitted to print service",
		zap.String("kind", string(doc.Kind)),
		zap.String("ref", doc.Ref()),
		zap.String("message", extractMessage(body)))
	return nil
}

// extractMessage pulls "message" or "error" out of a JSON response body.
// Malformed bodies yield an empty string rather than an error; the status
// code already tells the caller what happened.
func extractMessage(body []byte) string {
	var msg string
	d := jx.DecodeBytes(body)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message", "error":
			s, err := d.Str()
			if err != nil {
				return err
			}
			msg = s
			return nil
		default:
			return d.Skip()
		}
	})
	return msg
}

func encodeDocument(e *jx.Encoder, doc *receipt.Document) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(doc.Kind))

	e.FieldStart("business")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(doc.Business.Name)
	e.FieldStart("address")
	e.Str(doc.Business.Address)
	e.FieldStart("phone")
	e.Str(doc.Business.Phone)
	e.FieldStart("email")
	e.Str(doc.Business.Email)
	e.FieldStart("footer")
	e.Str(doc.Business.Footer)
	e.ObjEnd()

	e.FieldStart("issued_at")
	e.Str(doc.IssuedAt.Format(time.RFC3339))

	if doc.Order != nil {
		e.FieldStart("order")
		encodeOrder(e, doc.Order)
	}
	if doc.Shift != nil {
		e.FieldStart("shift")
		encodeShift(e, doc.Shift)
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *receipt.OrderPayload) {
	e.ObjStart()
	e.FieldStart("order_number")
	e.Str(o.Number)
	e.FieldStart("table")
	e.Str(o.Table)
	e.FieldStart("customer")
	e.Str(o.Customer)
	e.FieldStart("order_type")
	e.Str(o.OrderType)
	e.FieldStart("payment_method")
	e.Str(o.PaymentMethod)
	if o.PaymentRef != "" {
		e.FieldStart("payment_reference")
		e.Str(o.PaymentRef)
	}

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("unit_price")
		money(e, item.UnitPrice)
		e.FieldStart("total_price")
		money(e, item.TotalPrice)
		if item.Note != "" {
			e.FieldStart("special_instructions")
			e.Str(item.Note)
		}
		if len(item.Modifiers) > 0 {
			e.FieldStart("modifiers")
			e.ArrStart()
			for _, m := range item.Modifiers {
				e.Str(m)
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount_amount")
	money(e, o.Discount)
	e.FieldStart("tax_amount")
	money(e, o.Tax)
	e.FieldStart("tip_amount")
	money(e, o.Tip)
	e.FieldStart("total_amount")
	money(e, o.Total)
	if o.PaymentMethod == receipt.PaymentCash {
		e.FieldStart("cash_received")
		money(e, o.CashReceived)
		e.FieldStart("change_amount")
		money(e, o.Change)
	}
	e.ObjEnd()
}

func encodeShift(e *jx.Encoder, s *receipt.ShiftPayload) {
	e.ObjStart()
	e.FieldStart("staff_name")
	e.Str(s.StaffName)
	e.FieldStart("staff_id")
	e.Str(s.StaffID)
	e.FieldStart("role")
	e.Str(s.Role)
	e.FieldStart("started_at")
	e.Str(s.StartedAt.Format(time.RFC3339))
	e.FieldStart("ended_at")
	e.Str(s.EndedAt.Format(time.RFC3339))
	e.FieldStart("starting_cash")
	money(e, s.StartingCash)
	e.FieldStart("ending_cash")
	money(e, s.EndingCash)
	e.FieldStart("order_count")
	e.Int(s.OrderCount)
	e.FieldStart("total_sales")
	money(e, s.TotalSales)
	e.FieldStart("total_tips")
	money(e, s.TotalTips)
	e.FieldStart("payments")
	e.ObjStart()
	e.FieldStart("cash")
	money(e, s.Payments.Cash)
	e.FieldStart("card")
	money(e, s.Payments.Card)
	e.FieldStart("mobile")
	money(e, s.Payments.Mobile)
	e.ObjEnd()
	e.ObjEnd()
}

// money writes a decimal as a JSON number.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.String())
}

// Package layout renders receipt documents into a linear token stream of
// printable text and printer control directives. Rendering is a pure function
// of its inputs: no I/O, no clock, no device knowledge.
package layout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platewise/printd/internal/domain/receipt"
	"github.com/platewise/printd/internal/escpos"
)

// DefaultWidth is the column count the pipeline has always rendered at,
// independent of the configured paper width. Callers may pass a different
// width; see the product note in DESIGN.md before changing the default.
const DefaultWidth = 48

// itemNameWidth is the sub-width applied to line item names so the price
// column survives long dish names.
const itemNameWidth = 28

// Token is one element of the rendered stream: either printable text or a
// control directive. IsDirective discriminates.
type Token struct {
	Text        string
	Directive   escpos.Directive
	IsDirective bool
}

// Text wraps a string as a text token.
func Text(s string) Token { return Token{Text: s} }

// Ctl wraps a directive as a control token.
func Ctl(d escpos.Directive) Token { return Token{Directive: d, IsDirective: true} }

// Options control document-independent rendering behaviour.
type Options struct {
	// Width is the column count. Zero means DefaultWidth.
	Width int
	// CutPaper appends the paper cut directive after the footer.
	CutPaper bool
}

// Render produces the token stream for doc. Missing free-text fields render
// as "N/A" and missing amounts as 0; rendering never fails.
func Render(doc *receipt.Document, opts Options) []Token {
	w := opts.Width
	if w <= 0 {
		w = DefaultWidth
	}
	b := &builder{width: w}
	b.ctl(escpos.Init)

	switch doc.Kind {
	case receipt.KindOrderReceipt:
		b.orderReceipt(doc)
	case receipt.KindShiftReport:
		b.shiftReport(doc, false)
	case receipt.KindShiftStart:
		b.shiftReport(doc, true)
	default:
		b.testPrint(doc)
	}

	if opts.CutPaper {
		b.ctl(escpos.CutPaper)
	}
	return b.tokens
}

// Truncate cuts s to at most max characters, replacing the tail with "..."
// when it does not fit.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Center pads s with floor((width-len)/2) spaces on each side. When the gap
// is odd the extra column is dropped, biasing the text one cell left.
func Center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	side := (width - len(s)) / 2
	pad := strings.Repeat(" ", side)
	return pad + s + pad
}

// Pad places left flush-left and right flush-right within width. When the two
// do not fit, the line overflows rather than truncating either side.
func Pad(left, right string, width int) string {
	gap := width - len(left) - len(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

// Money renders an amount as a bare integer magnitude: rounded to whole
// units, no currency symbol, no grouping separators.
func Money(d decimal.Decimal) string {
	return d.Round(0).StringFixed(0)
}

const timeFormat = "2006-01-02 15:04"

// orDefault substitutes "N/A" for empty free-text fields.
func orDefault(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// builder accumulates tokens with line-oriented helpers.
type builder struct {
	width  int
	tokens []Token
}

func (b *builder) ctl(d escpos.Directive) {
	b.tokens = append(b.tokens, Ctl(d))
}

// line emits a text token followed by a line feed.
func (b *builder) line(s string) {
	b.tokens = append(b.tokens, Text(s))
	b.ctl(escpos.LineFeed)
}

func (b *builder) blank() { b.line("") }

func (b *builder) pair(l, r string) { b.line(Pad(l, r, b.width)) }

func (b *builder) rule(ch string) { b.line(strings.Repeat(ch, b.width)) }

// header prints the business identity block shared by every document kind.
func (b *builder) header(doc *receipt.Document) {
	biz := doc.Business

	b.ctl(escpos.AlignCenter)
	b.ctl(escpos.FontDouble)
	b.ctl(escpos.BoldOn)
	b.line(Truncate(orDefault(biz.Name), b.width))
	b.ctl(escpos.BoldOff)
	b.ctl(escpos.FontNormal)

	if biz.Address != "" {
		b.line(Truncate(biz.Address, b.width))
	}
	if biz.Phone != "" {
		b.line("Tel: " + biz.Phone)
	}
	if biz.Email != "" {
		b.line(Truncate(biz.Email, b.width))
	}
	b.blank()
	b.line("Thank you for your visit!")
	b.ctl(escpos.AlignLeft)
	b.rule("=")
}

// footer prints the closing block shared by every document kind.
func (b *builder) footer(doc *receipt.Document) {
	b.ctl(escpos.AlignCenter)
	b.blank()
	if doc.Business.Footer != "" {
		b.line(Truncate(doc.Business.Footer, b.width))
	}
	b.line("See you again soon!")
	b.rule("*")
	b.line("powered by platewise")
	b.ctl(escpos.AlignLeft)
	b.blank()
	b.blank()
	b.blank()
}

func (b *builder) orderReceipt(doc *receipt.Document) {
	o := doc.Order
	b.header(doc)

	// Order metadata.
	b.pair("Order #:", orDefault(o.Number))
	b.pair("Date:", doc.IssuedAt.Format(timeFormat))
	b.pair("Table:", orDefault(o.Table))
	b.pair("Customer:", orDefault(o.Customer))
	b.pair("Type:", orDefault(o.OrderType))
	b.pair("Payment:", orDefault(o.PaymentMethod))
	if o.PaymentRef != "" {
		b.pair("Ref:", o.PaymentRef)
	}

	// Items.
	b.rule("-")
	b.ctl(escpos.BoldOn)
	b.line("ITEMS")
	b.ctl(escpos.BoldOff)
	b.rule("-")
	for _, item := range o.Items {
		qty := decimal.NewFromInt(int64(item.Quantity)).String()
		b.pair(qty+"x "+Truncate(item.Name, itemNameWidth), Money(item.TotalPrice))
		for _, mod := range item.Modifiers {
			b.line("   + " + Truncate(mod, b.width-5))
		}
		if item.Note != "" {
			b.line("   * " + Truncate(item.Note, b.width-5))
		}
	}
	b.rule("-")

	// Totals.
	b.pair("Subtotal:", Money(o.Subtotal))
	if o.Discount.IsPositive() {
		b.pair("Discount:", "-"+Money(o.Discount))
	}
	b.pair("Tax:", Money(o.Tax))
	if o.Tip.IsPositive() {
		b.pair("Tip:", Money(o.Tip))
	}
	b.rule("-")
	b.ctl(escpos.BoldOn)
	b.pair("TOTAL:", Money(o.Total))
	b.ctl(escpos.BoldOff)

	if o.PaymentMethod == receipt.PaymentCash {
		b.pair("Cash:", Money(o.CashReceived))
		if o.Change.IsPositive() {
			b.pair("Change:", Money(o.Change))
		}
	}

	b.footer(doc)
}

// shiftReport renders both end-of-shift reports and shift-start slips; a
// start slip omits everything that is only known once the shift closes.
func (b *builder) shiftReport(doc *receipt.Document, startOnly bool) {
	s := doc.Shift
	b.header(doc)

	b.ctl(escpos.AlignCenter)
	b.ctl(escpos.BoldOn)
	if startOnly {
		b.line("SHIFT START")
	} else {
		b.line("SHIFT REPORT")
	}
	b.ctl(escpos.BoldOff)
	b.ctl(escpos.AlignLeft)
	b.blank()

	b.pair("Staff:", orDefault(s.StaffName))
	b.pair("Staff ID:", orDefault(s.StaffID))
	b.pair("Role:", orDefault(s.Role))
	b.pair("Start:", s.StartedAt.Format(timeFormat))
	if startOnly {
		b.rule("-")
		b.pair("Starting Cash:", Money(s.StartingCash))
		b.footer(doc)
		return
	}
	b.pair("End:", s.EndedAt.Format(timeFormat))
	b.pair("Duration:", s.EndedAt.Sub(s.StartedAt).Round(time.Minute).String())

	b.rule("-")
	b.pair("Starting Cash:", Money(s.StartingCash))
	b.pair("Ending Cash:", Money(s.EndingCash))
	b.pair("Cash Difference:", Money(s.EndingCash.Sub(s.StartingCash)))

	b.rule("-")
	b.pair("Orders:", decimal.NewFromInt(int64(s.OrderCount)).String())
	b.pair("Total Sales:", Money(s.TotalSales))
	b.pair("Total Tips:", Money(s.TotalTips))

	b.rule("-")
	b.pair("Cash:", Money(s.Payments.Cash))
	b.pair("Card:", Money(s.Payments.Card))
	b.pair("Mobile:", Money(s.Payments.Mobile))

	b.footer(doc)
}

func (b *builder) testPrint(doc *receipt.Document) {
	b.header(doc)
	b.ctl(escpos.AlignCenter)
	b.ctl(escpos.BoldOn)
	b.line("TEST PRINT")
	b.ctl(escpos.BoldOff)
	b.line(doc.IssuedAt.Format(timeFormat))
	b.line("Printer is working correctly")
	b.ctl(escpos.AlignLeft)
	b.footer(doc)
}

// Bytes flattens a token stream into the wire buffer sent to the device.
func Bytes(tokens []Token) []byte {
	var buf []byte
	for _, t := range tokens {
		if t.IsDirective {
			buf = append(buf, escpos.Encode(t.Directive)...)
		} else {
			buf = append(buf, t.Text...)
		}
	}
	return buf
}

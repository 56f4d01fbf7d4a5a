package printer

import (
	"context"
	"fmt"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/domain/receipt"
	"github.com/platewise/printd/internal/settings"
)

// Fallback submits a document to the network print service.
type Fallback interface {
	Submit(ctx context.Context, doc *receipt.Document) error
}

// JobRecord is one journaled print outcome.
type JobRecord struct {
	ID        uuid.UUID
	Kind      receipt.Kind
	Ref       string
	Channel   string
	Copies    int
	Success   bool
	Error     string
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Journal records print outcomes for later reconciliation.
type Journal interface {
	Record(ctx context.Context, rec JobRecord) error
}

// NopJournal discards records; used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, JobRecord) error { return nil }

// Dispatcher validates incoming documents, tries the hardware channel first,
// and falls back to the network print service when hardware fails. Callers
// get a combined error only when both channels fail.
type Dispatcher struct {
	spooler  *Spooler
	fallback Fallback // nil disables the network channel
	journal  Journal
	lg       *zap.Logger

	// seen tracks fingerprints of recently dispatched order receipts to warn
	// about probable duplicate prints. Advisory only: a bloom hit never
	// blocks the job (false positives are possible by construction).
	seen *bloom.BloomFilter
}

// NewDispatcher wires the dispatcher. journal may be nil, fallback may be nil.
func NewDispatcher(spooler *Spooler, fallback Fallback, journal Journal, lg *zap.Logger) *Dispatcher {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Dispatcher{
		spooler:  spooler,
		fallback: fallback,
		journal:  journal,
		lg:       lg.Named("dispatch"),
		seen:     bloom.NewWithEstimates(100_000, 0.01),
	}
}

// Dispatch validates and prints doc. The returned Report reflects whichever
// channel delivered it; the error is non-nil only when no channel did.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *receipt.Document, cfg settings.Settings) (Report, error) {
	if err := receipt.Normalize(doc); err != nil {
		return Report{}, err
	}
	d.warnIfDuplicate(doc)

	rep, usbErr := d.spooler.Print(ctx, doc, cfg)
	if usbErr == nil {
		d.record(ctx, doc, rep, nil)
		return rep, nil
	}
	if errors.Is(usbErr, ErrDisabled) {
		// Switched off in settings. Not a hardware failure, so the network
		// channel is not offered either.
		return rep, usbErr
	}
	d.lg.Warn("hardware print failed",
		zap.String("ref", doc.Ref()),
		zap.Error(usbErr))

	if d.fallback == nil {
		d.record(ctx, doc, rep, usbErr)
		return rep, usbErr
	}

	if fbErr := d.fallback.Submit(ctx, doc); fbErr != nil {
		combined := errors.Wrapf(fbErr, "network fallback (after usb: %v)", usbErr)
		d.record(ctx, doc, rep, combined)
		return rep, combined
	}

	rep = Report{Channel: ChannelNetwork, CopiesPrinted: 1}
	d.record(ctx, doc, rep, nil)
	return rep, nil
}

// warnIfDuplicate logs when a document with the same fingerprint was already
// dispatched recently, which usually means the UI retried a job that in fact
// succeeded.
func (d *Dispatcher) warnIfDuplicate(doc *receipt.Document) {
	if doc.Kind != receipt.KindOrderReceipt || doc.Order == nil {
		return
	}
	fp := fmt.Sprintf("%s|%s|%s|%d",
		doc.Kind, doc.Order.Number, doc.Order.Total.String(), doc.IssuedAt.Unix())
	if d.seen.TestAndAddString(fp) {
		d.lg.Warn("probable duplicate print",
			zap.String("order", doc.Order.Number),
			zap.String("total", doc.Order.Total.String()))
	}
}

func (d *Dispatcher) record(ctx context.Context, doc *receipt.Document, rep Report, jobErr error) {
	rec := JobRecord{
		ID:        uuid.New(),
		Kind:      doc.Kind,
		Ref:       doc.Ref(),
		Channel:   rep.Channel,
		Copies:    rep.CopiesPrinted,
		Success:   jobErr == nil,
		CreatedAt: time.Now(),
	}
	if jobErr != nil {
		rec.Error = jobErr.Error()
	}
	if doc.Order != nil {
		rec.Total = doc.Order.Total
	}
	if err := d.journal.Record(ctx, rec); err != nil {
		d.lg.Warn("journal write failed", zap.Error(err))
	}
}

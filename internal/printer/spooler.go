// Package printer drives the receipt pipeline: layout → encoding → device
// session → transmission, with the network print service as fallback.
package printer

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/domain/receipt"
	"github.com/platewise/printd/internal/escpos"
	"github.com/platewise/printd/internal/layout"
	"github.com/platewise/printd/internal/settings"
	"github.com/platewise/printd/internal/usb"
)

// ErrDisabled is returned without any I/O when printing is switched off in
// the settings.
var ErrDisabled = errors.New("printer disabled")

// Channel names reported on job outcomes.
const (
	ChannelUSB     = "usb"
	ChannelNetwork = "network"
)

// interCopyDelay separates consecutive copies so the printer finishes the
// cut and feed before the next buffer arrives. Variable so tests can shrink
// it.
var interCopyDelay = 500 * time.Millisecond

// Report describes the primary outcome of a print attempt, plus the advisory
// drawer-kick outcome which never affects success.
type Report struct {
	Channel       string
	CopiesPrinted int
	DrawerKicked  bool
	DrawerErr     error
}

// Spooler is the hardware print orchestrator. All jobs are serialized
// through one mutex: the device is a singleton resource and interleaved
// transfers would corrupt the output.
type Spooler struct {
	session *usb.Session
	lg      *zap.Logger

	mu sync.Mutex
}

// NewSpooler creates a Spooler over the given device session.
func NewSpooler(session *usb.Session, lg *zap.Logger) *Spooler {
	return &Spooler{session: session, lg: lg.Named("spooler")}
}

// Print renders doc once and transmits it cfg.Copies times. On the first
// failed copy it aborts and reports how far it got; later copies are not
// attempted. After all copies succeed, a cash payment with OpenDrawer set
// triggers a best-effort drawer kick.
func (s *Spooler) Print(ctx context.Context, doc *receipt.Document, cfg settings.Settings) (Report, error) {
	if !cfg.Enabled {
		return Report{}, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.Connected() {
		if err := s.session.Connect(ctx); err != nil {
			return Report{}, err
		}
	}

	// The layout has always run at 48 columns regardless of the configured
	// paper width; see DESIGN.md before "fixing" this.
	s.lg.Debug("rendering document",
		zap.String("kind", string(doc.Kind)),
		zap.String("ref", doc.Ref()),
		zap.Int("columns", layout.DefaultWidth),
		zap.Int("paper_width_mm", cfg.PaperWidth))
	buf := layout.Bytes(layout.Render(doc, layout.Options{
		Width:    layout.DefaultWidth,
		CutPaper: cfg.CutPaper,
	}))

	copies := cfg.Copies
	if copies < 1 {
		copies = 1
	}

	rep := Report{Channel: ChannelUSB}
	for i := 1; i <= copies; i++ {
		if i > 1 {
			select {
			case <-ctx.Done():
				return rep, ctx.Err()
			case <-time.After(interCopyDelay):
			}
		}
		if err := s.session.Send(ctx, buf); err != nil {
			return rep, errors.Wrapf(err, "copy %d of %d", i, copies)
		}
		rep.CopiesPrinted++
	}

	if cfg.OpenDrawer && doc.IsCashPayment() {
		if err := s.session.Send(ctx, escpos.Encode(escpos.OpenDrawer)); err != nil {
			rep.DrawerErr = err
			s.lg.Warn("drawer kick failed", zap.Error(err))
		} else {
			rep.DrawerKicked = true
		}
	}

	s.lg.Info("document printed",
		zap.String("kind", string(doc.Kind)),
		zap.String("ref", doc.Ref()),
		zap.Int("copies", rep.CopiesPrinted),
		zap.Int("bytes", len(buf)))
	return rep, nil
}

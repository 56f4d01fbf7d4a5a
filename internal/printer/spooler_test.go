package printer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/domain/receipt"
	"github.com/platewise/printd/internal/escpos"
	"github.com/platewise/printd/internal/settings"
	"github.com/platewise/printd/internal/usb"
)

func init() {
	interCopyDelay = time.Millisecond
}

// --- Fake USB backend ---

type fakeBackend struct {
	openErr   error
	intf      *fakeInterface
	openCalls int
}

func (b *fakeBackend) Available() error { return nil }

func (b *fakeBackend) Open(context.Context, []usb.VendorFilter) (usb.Device, error) {
	b.openCalls++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &fakeDevice{intf: b.intf}, nil
}

type fakeDevice struct {
	intf *fakeInterface
}

func (d *fakeDevice) Descriptor() usb.Descriptor {
	return usb.Descriptor{
		VendorID:  0x04B8,
		ProductID: 0x0202,
		Interfaces: []usb.InterfaceInfo{{
			Number: 0,
			AltSettings: []usb.AltSetting{{
				Endpoints: []usb.EndpointInfo{
					{Number: 2, Direction: usb.DirectionOut, Transfer: usb.TransferBulk, MaxPacketSize: 64},
				},
			}},
		}},
	}
}

func (d *fakeDevice) SetConfig(int) error { return nil }

func (d *fakeDevice) Claim(number int) (usb.Interface, error) {
	d.intf.num = number
	return d.intf, nil
}

func (d *fakeDevice) Close() error { return nil }

type fakeInterface struct {
	num      int
	attempts int
	writes   [][]byte
	failOn   int // 1-based attempt index that fails; 0 never fails
}

func (i *fakeInterface) Number() int { return i.num }

func (i *fakeInterface) Write(_ context.Context, _ int, data []byte) (int, error) {
	i.attempts++
	if i.failOn == i.attempts {
		return 0, errors.New("endpoint stalled")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	i.writes = append(i.writes, buf)
	return len(data), nil
}

func (i *fakeInterface) Release() {}

// --- Helpers ---

func newTestSpooler(b usb.Backend) *Spooler {
	return NewSpooler(usb.NewSession(b, zap.NewNop()), zap.NewNop())
}

func cashDoc(t *testing.T) *receipt.Document {
	t.Helper()
	doc := &receipt.Document{
		Kind:     receipt.KindOrderReceipt,
		Business: receipt.Business{Name: "Warung Makan"},
		IssuedAt: time.Now(),
		Order: &receipt.OrderPayload{
			Number:        "A-042",
			PaymentMethod: receipt.PaymentCash,
			Items: []receipt.LineItem{{
				Name: "Burger", Quantity: 2, TotalPrice: decimal.NewFromInt(20000),
			}},
			Subtotal:     decimal.NewFromInt(20000),
			Tax:          decimal.NewFromInt(3600),
			Total:        decimal.NewFromInt(23600),
			CashReceived: decimal.NewFromInt(25000),
		},
	}
	require.NoError(t, receipt.Normalize(doc))
	return doc
}

func enabledSettings() settings.Settings {
	cfg := settings.Default()
	cfg.OpenDrawer = false
	return cfg
}

// --- Tests ---

func TestPrint_DisabledShortCircuits(t *testing.T) {
	b := &fakeBackend{intf: &fakeInterface{}}
	s := newTestSpooler(b)

	cfg := enabledSettings()
	cfg.Enabled = false

	_, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, b.openCalls, "disabled print must not touch the device")
}

func TestPrint_ConnectsLazilyAndSendsOneCopy(t *testing.T) {
	intf := &fakeInterface{}
	b := &fakeBackend{intf: intf}
	s := newTestSpooler(b)

	rep, err := s.Print(context.Background(), cashDoc(t), enabledSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, b.openCalls)
	assert.Equal(t, ChannelUSB, rep.Channel)
	assert.Equal(t, 1, rep.CopiesPrinted)
	require.Len(t, intf.writes, 1)

	// The buffer starts with the init sequence and contains receipt text.
	assert.True(t, bytes.HasPrefix(intf.writes[0], escpos.Encode(escpos.Init)))
	assert.Contains(t, string(intf.writes[0]), "Burger")
}

func TestPrint_MultipleCopiesSendIdenticalBuffers(t *testing.T) {
	intf := &fakeInterface{}
	s := newTestSpooler(&fakeBackend{intf: intf})

	cfg := enabledSettings()
	cfg.Copies = 3

	rep, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.CopiesPrinted)
	require.Len(t, intf.writes, 3)
	assert.Equal(t, intf.writes[0], intf.writes[1])
	assert.Equal(t, intf.writes[0], intf.writes[2])
}

func TestPrint_CopyFailureShortCircuits(t *testing.T) {
	intf := &fakeInterface{failOn: 2}
	s := newTestSpooler(&fakeBackend{intf: intf})

	cfg := enabledSettings()
	cfg.Copies = 3

	rep, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy 2 of 3")
	assert.Equal(t, 1, rep.CopiesPrinted)
	assert.Equal(t, 2, intf.attempts, "third copy must not be attempted")
}

func TestPrint_DrawerKickForCashPayments(t *testing.T) {
	intf := &fakeInterface{}
	s := newTestSpooler(&fakeBackend{intf: intf})

	cfg := enabledSettings()
	cfg.OpenDrawer = true

	rep, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.NoError(t, err)
	assert.True(t, rep.DrawerKicked)
	require.Len(t, intf.writes, 2)
	assert.Equal(t, escpos.Encode(escpos.OpenDrawer), intf.writes[1])
}

func TestPrint_NoDrawerKickForCardPayments(t *testing.T) {
	intf := &fakeInterface{}
	s := newTestSpooler(&fakeBackend{intf: intf})

	doc := cashDoc(t)
	doc.Order.PaymentMethod = receipt.PaymentCard
	require.NoError(t, receipt.Normalize(doc))

	cfg := enabledSettings()
	cfg.OpenDrawer = true

	rep, err := s.Print(context.Background(), doc, cfg)
	require.NoError(t, err)
	assert.False(t, rep.DrawerKicked)
	assert.Len(t, intf.writes, 1)
}

func TestPrint_DrawerKickFailureIsAdvisory(t *testing.T) {
	intf := &fakeInterface{failOn: 2} // receipt succeeds, drawer kick fails
	s := newTestSpooler(&fakeBackend{intf: intf})

	cfg := enabledSettings()
	cfg.OpenDrawer = true

	rep, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.NoError(t, err, "drawer failure must not fail the print")
	assert.Equal(t, 1, rep.CopiesPrinted)
	assert.False(t, rep.DrawerKicked)
	assert.Error(t, rep.DrawerErr)
}

func TestPrint_ConnectFailurePropagates(t *testing.T) {
	s := newTestSpooler(&fakeBackend{openErr: usb.ErrNoDevice})

	_, err := s.Print(context.Background(), cashDoc(t), enabledSettings())
	require.ErrorIs(t, err, usb.ErrNoDevice)
}

func TestPrint_NoCutDirectiveWhenDisabled(t *testing.T) {
	intf := &fakeInterface{}
	s := newTestSpooler(&fakeBackend{intf: intf})

	cfg := enabledSettings()
	cfg.CutPaper = false

	_, err := s.Print(context.Background(), cashDoc(t), cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(intf.writes[0]), string(escpos.Encode(escpos.CutPaper)))
}

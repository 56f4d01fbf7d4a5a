package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/platewise/printd/internal/printer"
	"github.com/platewise/printd/internal/settings"
	"github.com/platewise/printd/internal/usb"
)

// --- Fake USB backend ---

type fakeBackend struct {
	openErr error
	intf    *fakeInterface
}

func (b *fakeBackend) Available() error { return nil }

func (b *fakeBackend) Open(context.Context, []usb.VendorFilter) (usb.Device, error) {
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
			AltSettings: []usb.AltSetting{{
				Endpoints: []usb.EndpointInfo{
					{Number: 2, Direction: usb.DirectionOut, Transfer: usb.TransferBulk},
				},
			}},
		}},
	}
}

func (d *fakeDevice) SetConfig(int) error              { return nil }
func (d *fakeDevice) Claim(int) (usb.Interface, error) { return d.intf, nil }
func (d *fakeDevice) Close() error                     { return nil }

type fakeInterface struct {
	writes   [][]byte
	writeErr error
}

func (i *fakeInterface) Number() int { return 0 }

func (i *fakeInterface) Write(_ context.Context, _ int, data []byte) (int, error) {
	if i.writeErr != nil {
		return 0, i.writeErr
	}
	i.writes = append(i.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (i *fakeInterface) Release() {}

// --- Test server ---

type fixture struct {
	srv     *httptest.Server
	session *usb.Session
	store   *settings.MemoryStore
	intf    *fakeInterface
}

func newFixture(t *testing.T, backend usb.Backend) *fixture {
	t.Helper()
	lg := zap.NewNop()
	session := usb.NewSession(backend, lg)
	dispatcher := printer.NewDispatcher(printer.NewSpooler(session, lg), nil, nil, lg)
	store := settings.NewMemoryStore()

	mux := http.NewServeMux()
	New(dispatcher, session, store).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(session.Disconnect)
	return &fixture{srv: srv, session: session, store: store}
}

func newHappyFixture(t *testing.T) *fixture {
	t.Helper()
	intf := &fakeInterface{}
	f := newFixture(t, &fakeBackend{intf: intf})
	f.intf = intf
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

const orderBody = `{
	"type": "order_receipt",
	"business": {"name": "Warung Makan"},
	"order": {
		"order_number": "A-017",
		"payment_method": "cash",
		"items": [{"name": "Burger", "quantity": 2, "total_price": "20000"}],
		"subtotal": "20000",
		"tax_amount": "3600",
		"total_amount": "23600",
		"cash_received": "25000"
	}
}`

// --- Tests ---

func TestPrint_Success(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodPost, "/print", orderBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "usb", body["channel"])
	assert.EqualValues(t, 1, body["copies"])
	assert.Len(t, f.intf.writes, 1)
}

func TestPrint_MalformedJSON(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodPost, "/print", `{"type": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "malformed JSON")
}

func TestPrint_UnknownDocumentType(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodPost, "/print", `{"type": "coupon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.Empty(t, f.intf.writes)
}

func TestPrint_NoDevice(t *testing.T) {
	f := newFixture(t, &fakeBackend{openErr: usb.ErrNoDevice})

	resp, body := f.do(t, http.MethodPost, "/print", orderBody)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "no device selected")
}

func TestPrint_Disabled(t *testing.T) {
	f := newHappyFixture(t)

	cfg := settings.Default()
	cfg.Enabled = false
	require.NoError(t, f.store.Save(context.Background(), cfg))

	resp, _ := f.do(t, http.MethodPost, "/print", orderBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Empty(t, f.intf.writes)
}

func TestTestPrint(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodPost, "/printer/test", `{"name": "Warung Makan"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	require.Len(t, f.intf.writes, 1)
	assert.Contains(t, string(f.intf.writes[0]), "TEST PRINT")
}

func TestConnectAndStatus(t *testing.T) {
	f := newHappyFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/printer/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/printer/connect", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, status := f.do(t, http.MethodGet, "/printer/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "connected", status["state"])
	assert.EqualValues(t, 0x04B8, status["vendor_id"])
	assert.EqualValues(t, 0x0202, status["product_id"])

	resp, _ = f.do(t, http.MethodPost, "/printer/disconnect", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, status = f.do(t, http.MethodGet, "/printer/status", "")
	assert.Equal(t, "disconnected", status["state"])
	assert.NotContains(t, status, "vendor_id")
}

func TestConnect_NotSupported(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/printer/connect", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestSettings_RoundTrip(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodGet, "/settings", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["enabled"])
	assert.EqualValues(t, 80, body["paper_width"])

	resp, _ = f.do(t, http.MethodPut, "/settings",
		`{"enabled": true, "autoprint": false, "paper_width": 58, "font_size": 12,
		  "line_spacing": 1.2, "cut_paper": true, "open_drawer": true, "copies": 2}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/settings", "")
	assert.EqualValues(t, 58, body["paper_width"])
	assert.EqualValues(t, 2, body["copies"])
	assert.Equal(t, true, body["open_drawer"])
}

func TestSettings_ValidationRejected(t *testing.T) {
	f := newHappyFixture(t)

	resp, body := f.do(t, http.MethodPut, "/settings",
		`{"enabled": true, "paper_width": 72, "copies": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = f.do(t, http.MethodPut, "/settings",
		`{"enabled": true, "paper_width": 80, "copies": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(printer.ErrDisabled))
	assert.Equal(t, http.StatusConflict, statusFor(usb.ErrAlreadyConnecting))
	assert.Equal(t, http.StatusNotImplemented, statusFor(usb.ErrNotSupported))
	assert.Equal(t, http.StatusBadGateway, statusFor(errors.New("pipe error")))
}

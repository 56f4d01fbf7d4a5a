// Package usb owns the connection to the physical thermal printer: device
// enumeration and claiming, endpoint discovery, and raw bulk transfers.
//
// Hardware access goes through the Backend interface so the session logic is
// testable without a printer attached; the production implementation wraps
// libusb via google/gousb.
package usb

import (
	"context"

	"github.com/go-faster/errors"
)

// Failure classes of the hardware channel. Everything the session and
// transmission layers return wraps one of these, so callers can classify
// without string matching.
var (
	// ErrNotSupported: no USB host access in this environment (no backend,
	// unsupported platform).
	ErrNotSupported = errors.New("usb not supported on this platform")
	// ErrAccessDenied: the environment forbids device access (insufficient
	// permission on the device nodes).
	ErrAccessDenied = errors.New("usb access denied")
	// ErrAlreadyConnecting: a Connect call is already in flight.
	ErrAlreadyConnecting = errors.New("connect already in progress")
	// ErrNoDevice: enumeration found no device matching the vendor allow-list.
	ErrNoDevice = errors.New("no device selected")
	// ErrClaimFailed: every declared interface refused to be claimed.
	ErrClaimFailed = errors.New("failed to claim any interface")
	// ErrNotConnected: a transfer was attempted without an open session.
	ErrNotConnected = errors.New("printer not connected")
	// ErrNoOutEndpoint: the device declares no host-to-device endpoint.
	ErrNoOutEndpoint = errors.New("no suitable OUT endpoint found")
)

// Direction of an endpoint, from the host's point of view.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// TransferType of an endpoint.
type TransferType int

const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

// EndpointInfo describes one endpoint of an alternate setting.
type EndpointInfo struct {
	Number        int
	Direction     Direction
	Transfer      TransferType
	MaxPacketSize int
}

// AltSetting describes one alternate setting of an interface.
type AltSetting struct {
	Number    int
	Endpoints []EndpointInfo
}

// InterfaceInfo describes one interface of the active configuration.
type InterfaceInfo struct {
	Number      int
	AltSettings []AltSetting
}

// Descriptor is the backend-neutral view of an opened device.
type Descriptor struct {
	VendorID   uint16
	ProductID  uint16
	Interfaces []InterfaceInfo
}

// VendorFilter selects devices during enumeration. With MatchProduct false
// only the vendor ID is compared.
type VendorFilter struct {
	VendorID     uint16
	ProductID    uint16
	MatchProduct bool
}

// Matches reports whether a device with the given IDs passes the filter.
func (f VendorFilter) Matches(vendor, product uint16) bool {
	if f.VendorID != vendor {
		return false
	}
	return !f.MatchProduct || f.ProductID == product
}

// KnownPrinters is the allow-list of thermal printer identities the session
// will claim: the major vendors by vendor ID, plus a few widespread generic
// 58mm boards that only identify reliably by vendor+product.
var KnownPrinters = []VendorFilter{
	{VendorID: 0x04B8}, // Epson
	{VendorID: 0x0519}, // Star Micronics
	{VendorID: 0x1504}, // Bixolon
	{VendorID: 0x0DD4}, // Custom Engineering
	{VendorID: 0x1D90}, // Citizen
	{VendorID: 0x0416, ProductID: 0x5011, MatchProduct: true}, // generic 58mm (Winbond bridge)
	{VendorID: 0x0FE6, ProductID: 0x811E, MatchProduct: true}, // generic 58mm (ICS Advent bridge)
}

// Backend is the hardware access layer.
type Backend interface {
	// Available reports whether USB host access works in this environment.
	// It must distinguish ErrNotSupported from ErrAccessDenied.
	Available() error

	// Open enumerates authorized devices and opens the first one matching
	// the filters. Returns ErrNoDevice when nothing matches.
	Open(ctx context.Context, filters []VendorFilter) (Device, error)
}

// Device is one opened USB device.
type Device interface {
	// Descriptor returns the device identity and the interface tree of the
	// active configuration.
	Descriptor() Descriptor

	// SetConfig selects the numbered configuration if none is active.
	SetConfig(num int) error

	// Claim requests exclusive access to the numbered interface.
	Claim(number int) (Interface, error)

	// Close releases the device handle. Safe to call more than once.
	Close() error
}

// Interface is a claimed USB interface.
type Interface interface {
	// Number is the interface number that was claimed.
	Number() int

	// Write performs a host-to-device transfer on the numbered endpoint.
	Write(ctx context.Context, endpoint int, data []byte) (int, error)

	// Release gives the interface back. Errors are not reported; release is
	// best-effort by contract.
	Release()
}

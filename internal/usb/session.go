package usb

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// State of the device session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Session owns the lifecycle of the single printer connection. One Session
// per process; it is reused across print jobs until Disconnect or a transfer
// error tears it down.
//
// All entry points are safe for concurrent use. Connect holds the Connecting
// state without holding the mutex across hardware calls, so a second Connect
// fails fast instead of queueing behind the first.
type Session struct {
	backend Backend
	lg      *zap.Logger

	mu      sync.Mutex
	state   State
	dev     Device
	claimed Interface
	out     *target // cached endpoint discovery, reset on disconnect
}

// NewSession creates a Session over the given backend. A nil backend is
// allowed and makes every Connect fail with ErrNotSupported.
func NewSession(backend Backend, lg *zap.Logger) *Session {
	return &Session{backend: backend, lg: lg.Named("usb")}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a device is open and claimed.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Descriptor returns the descriptor of the connected device, or false when
// disconnected.
func (s *Session) Descriptor() (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.dev == nil {
		return Descriptor{}, false
	}
	return s.dev.Descriptor(), true
}

// Connect enumerates, opens, configures, and claims the printer. It is a
// no-op when already connected and fails immediately with
// ErrAlreadyConnecting when another Connect is in flight.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.mu.Unlock()
		return ErrAlreadyConnecting
	case StateConnected:
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	dev, claimed, err := s.establish(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateDisconnected
		s.lg.Warn("connect failed",
			zap.String("class", classify(err)),
			zap.Error(err))
		return err
	}
	s.dev = dev
	s.claimed = claimed
	s.state = StateConnected

	desc := dev.Descriptor()
	s.lg.Info("printer connected",
		zap.Uint16("vendor_id", desc.VendorID),
		zap.Uint16("product_id", desc.ProductID),
		zap.Int("interface", claimed.Number()))
	return nil
}

// establish performs the hardware side of Connect without holding the mutex.
func (s *Session) establish(ctx context.Context) (Device, Interface, error) {
	if s.backend == nil {
		return nil, nil, ErrNotSupported
	}
	if err := s.backend.Available(); err != nil {
		return nil, nil, errors.Wrap(err, "backend unavailable")
	}

	dev, err := s.backend.Open(ctx, KnownPrinters)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open device")
	}

	if err := dev.SetConfig(1); err != nil {
		_ = dev.Close()
		return nil, nil, errors.Wrap(err, "select configuration")
	}

	// Claim the first interface that will have us. Per-interface claim
	// failures are expected on composite devices; only exhaustion is fatal.
	for _, intf := range dev.Descriptor().Interfaces {
		claimed, err := dev.Claim(intf.Number)
		if err != nil {
			s.lg.Debug("interface claim failed",
				zap.Int("interface", intf.Number),
				zap.Error(err))
			continue
		}
		return dev, claimed, nil
	}

	_ = dev.Close()
	return nil, nil, ErrClaimFailed
}

// Disconnect releases the claimed interface, closes the device, and resets
// the session. Best-effort: it never fails, and releasing an interface that
// was never claimed is not an error.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed != nil {
		s.claimed.Release()
		s.claimed = nil
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			s.lg.Debug("device close failed", zap.Error(err))
		}
		s.dev = nil
	}
	s.out = nil
	if s.state != StateDisconnected {
		s.state = StateDisconnected
		s.lg.Info("printer disconnected")
	}
}

// classify buckets an error into the diagnostic taxonomy used in logs:
// environment, authorization, device-state, or transport.
func classify(err error) string {
	switch {
	case errors.Is(err, ErrNotSupported), errors.Is(err, ErrAccessDenied):
		return "environment"
	case errors.Is(err, ErrNoDevice):
		return "authorization"
	case errors.Is(err, ErrAlreadyConnecting),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrClaimFailed):
		return "device-state"
	default:
		return "transport"
	}
}

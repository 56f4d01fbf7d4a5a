package usb

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// target is a discovered writable endpoint on a specific interface.
type target struct {
	Interface int
	Endpoint  EndpointInfo
}

// findOutEndpoint scans every interface, alternate setting, and endpoint of
// the device. A bulk OUT endpoint wins; failing that, any OUT endpoint is
// accepted (some printer clones declare their data endpoint as interrupt).
func findOutEndpoint(desc Descriptor) (target, error) {
	var fallback *target
	for _, intf := range desc.Interfaces {
		for _, alt := range intf.AltSettings {
			for _, ep := range alt.Endpoints {
				if ep.Direction != DirectionOut {
					continue
				}
				t := target{Interface: intf.Number, Endpoint: ep}
				if ep.Transfer == TransferBulk {
					return t, nil
				}
				if fallback == nil {
					fallback = &t
				}
			}
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return target{}, ErrNoOutEndpoint
}

// Send writes one encoded buffer to the printer's OUT endpoint. The session
// mutex is held for the whole transfer, so concurrent jobs cannot interleave
// bytes on the wire. A failed transfer tears the session down; the caller
// must reconnect before retrying.
func (s *Session) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.dev == nil || s.claimed == nil {
		return ErrNotConnected
	}

	if s.out == nil {
		t, err := findOutEndpoint(s.dev.Descriptor())
		if err != nil {
			return err
		}
		s.out = &t
		s.lg.Debug("endpoint selected",
			zap.Int("interface", t.Interface),
			zap.Int("endpoint", t.Endpoint.Number),
			zap.Int("max_packet_size", t.Endpoint.MaxPacketSize),
			zap.Bool("bulk", t.Endpoint.Transfer == TransferBulk))
	}

	n, err := s.claimed.Write(ctx, s.out.Endpoint.Number, data)
	if err != nil {
		s.teardownLocked()
		return errors.Wrap(err, "transfer")
	}
	if n < len(data) {
		s.teardownLocked()
		return errors.Errorf("short transfer: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// teardownLocked drops the device after a transfer error. Caller holds mu.
func (s *Session) teardownLocked() {
	if s.claimed != nil {
		s.claimed.Release()
		s.claimed = nil
	}
	if s.dev != nil {
		_ = s.dev.Close()
		s.dev = nil
	}
	s.out = nil
	s.state = StateDisconnected
	s.lg.Warn("session torn down after transfer error")
}

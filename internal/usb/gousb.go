package usb

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/gousb"
)

// GousbBackend implements Backend on top of libusb via google/gousb. It is
// the only production backend; everything else in this package is agnostic
// of it.
type GousbBackend struct {
	ctx *gousb.Context
}

// NewGousbBackend creates the libusb-backed backend. Close it when the
// daemon shuts down.
func NewGousbBackend() *GousbBackend {
	return &GousbBackend{ctx: gousb.NewContext()}
}

// Available reports whether the libusb context is usable.
func (b *GousbBackend) Available() error {
	if b.ctx == nil {
		return ErrNotSupported
	}
	return nil
}

// Open enumerates devices matching the filters and keeps the first one.
func (b *GousbBackend) Open(_ context.Context, filters []VendorFilter) (Device, error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, f := range filters {
			if f.Matches(uint16(desc.Vendor), uint16(desc.Product)) {
				return true
			}
		}
		return false
	})
	// OpenDevices can return both devices and an error when some candidates
	// fail to open; a partial result is still usable.
	if len(devs) == 0 {
		if err != nil {
			return nil, errors.Wrap(err, "enumerate devices")
		}
		return nil, ErrNoDevice
	}
	for _, d := range devs[1:] {
		_ = d.Close()
	}

	dev := devs[0]
	// Detach kernel drivers (usblp) that would otherwise hold the interface.
	_ = dev.SetAutoDetach(true)
	return &gousbDevice{dev: dev}, nil
}

// Close releases the libusb context.
func (b *GousbBackend) Close() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Close()
	b.ctx = nil
	return err
}

type gousbDevice struct {
	dev *gousb.Device
	cfg *gousb.Config
}

func (d *gousbDevice) Descriptor() Descriptor {
	desc := Descriptor{
		VendorID:  uint16(d.dev.Desc.Vendor),
		ProductID: uint16(d.dev.Desc.Product),
	}
	cfg, ok := d.dev.Desc.Configs[1]
	if !ok {
		for _, c := range d.dev.Desc.Configs {
			cfg = c
			break
		}
	}
	for _, intf := range cfg.Interfaces {
		info := InterfaceInfo{Number: intf.Number}
		for _, alt := range intf.AltSettings {
			a := AltSetting{Number: alt.Alternate}
			for _, ep := range alt.Endpoints {
				a.Endpoints = append(a.Endpoints, EndpointInfo{
					Number:        ep.Number,
					Direction:     direction(ep.Direction),
					Transfer:      transferType(ep.TransferType),
					MaxPacketSize: ep.MaxPacketSize,
				})
			}
			info.AltSettings = append(info.AltSettings, a)
		}
		desc.Interfaces = append(desc.Interfaces, info)
	}
	return desc
}

func (d *gousbDevice) SetConfig(num int) error {
	if d.cfg != nil {
		return nil
	}
	cfg, err := d.dev.Config(num)
	if err != nil {
		return errors.Wrapf(err, "config %d", num)
	}
	d.cfg = cfg
	return nil
}

func (d *gousbDevice) Claim(number int) (Interface, error) {
	if d.cfg == nil {
		return nil, errors.New("no active configuration")
	}
	intf, err := d.cfg.Interface(number, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "claim interface %d", number)
	}
	return &gousbInterface{intf: intf}, nil
}

func (d *gousbDevice) Close() error {
	if d.cfg != nil {
		_ = d.cfg.Close()
		d.cfg = nil
	}
	if d.dev != nil {
		err := d.dev.Close()
		d.dev = nil
		return err
	}
	return nil
}

type gousbInterface struct {
	intf *gousb.Interface
}

func (i *gousbInterface) Number() int { return i.intf.Setting.Number }

func (i *gousbInterface) Write(ctx context.Context, endpoint int, data []byte) (int, error) {
	ep, err := i.intf.OutEndpoint(endpoint)
	if err != nil {
		return 0, errors.Wrapf(err, "out endpoint %d", endpoint)
	}
	return ep.WriteContext(ctx, data)
}

func (i *gousbInterface) Release() { i.intf.Close() }

func direction(d gousb.EndpointDirection) Direction {
	if d == gousb.EndpointDirectionOut {
		return DirectionOut
	}
	return DirectionIn
}

func transferType(t gousb.TransferType) TransferType {
	switch t {
	case gousb.TransferTypeBulk:
		return TransferBulk
	case gousb.TransferTypeInterrupt:
		return TransferInterrupt
	case gousb.TransferTypeIsochronous:
		return TransferIsochronous
	default:
		return TransferControl
	}
}

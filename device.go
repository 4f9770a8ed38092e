package divecomputer

import (
	"sync/atomic"

	"github.com/shaunagostinho/divecomputer/buffer"
)

// DiveCallback receives one downloaded dive per call during Device.Foreach:
// the raw dive blob and the fingerprint extracted from its header. The
// family-specific layout of both is opaque to the core. Returning false
// stops enumeration (a successful, intentional early stop, not an error —
// spec §4.1.2 step 4).
type DiveCallback func(data []byte, fingerprint []byte) bool

// DeviceBackend is the per-family vtable a Device drives. Not every family
// implements every slot; a family that doesn't should return a
// StatusUnsupported *Error from the slot's method body, exactly as spec
// §4.1 requires ("missing slots are advertised by returning Unsupported").
type DeviceBackend interface {
	Family() Family
	SetFingerprint(d *Device, data []byte) error
	Read(d *Device, addr, length uint32) ([]byte, error)
	Write(d *Device, addr uint32, data []byte) error
	Dump(d *Device, buf *buffer.Buffer) error
	Foreach(d *Device, cb DiveCallback) error
	Close(d *Device) error
}

// Device is an open communication session with one physical dive computer.
// It is the polymorphic downloader described in spec §4.1: a thin
// cancellation/event/fingerprint envelope around a family-specific
// DeviceBackend. Device methods are not safe for concurrent use from
// multiple goroutines (spec §5: single-threaded cooperative per instance).
type Device struct {
	family      Family
	ctx         *Context
	transport   Transport
	backend     DeviceBackend
	cancelled   atomic.Bool
	fingerprint []byte
	devInfo     *DevInfo
	clock       *Clock
}

// NewDevice wires a family-specific backend to a transport and context. It
// is called by each family's exported Open function, never directly by
// library consumers.
func NewDevice(ctx *Context, transport Transport, backend DeviceBackend) *Device {
	if ctx == nil {
		ctx = NewContext()
	}
	return &Device{
		family:    backend.Family(),
		ctx:       ctx,
		transport: transport,
		backend:   backend,
	}
}

// Family returns the device's immutable family tag.
func (d *Device) Family() Family { return d.family }

// Context returns the device's Context, for backends to log through and
// emit events on.
func (d *Device) Context() *Context { return d.ctx }

// Transport returns the device's transport, for backends to talk over.
func (d *Device) Transport() Transport { return d.transport }

// DevInfo returns the most recently emitted device-identity event, or nil
// if none has been received yet this session.
func (d *Device) DevInfo() *DevInfo { return d.devInfo }

// Clock returns the most recently emitted clock-calibration event, or nil.
func (d *Device) Clock() *Clock { return d.clock }

// Fingerprint returns the fingerprint bytes set by SetFingerprint, or nil
// if none is set.
func (d *Device) Fingerprint() []byte { return d.fingerprint }

// SetFingerprint records the caller-provided fingerprint used to
// short-circuit redownload. Passing an empty slice clears it. Validation
// of the expected length is family-specific and delegated to the backend.
func (d *Device) SetFingerprint(data []byte) error {
	if err := d.backend.SetFingerprint(d, data); err != nil {
		return err
	}
	if len(data) == 0 {
		d.fingerprint = nil
	} else {
		d.fingerprint = append([]byte(nil), data...)
	}
	return nil
}

// Read fetches len bytes starting at addr from device memory.
func (d *Device) Read(addr, length uint32) ([]byte, error) {
	return d.backend.Read(d, addr, length)
}

// Write writes data to device memory starting at addr.
func (d *Device) Write(addr uint32, data []byte) error {
	return d.backend.Write(d, addr, data)
}

// Dump appends the device's entire memory image to buf.
func (d *Device) Dump(buf *buffer.Buffer) error {
	return d.backend.Dump(d, buf)
}

// Foreach downloads each stored dive newest-first, invoking cb once per
// dive. A false return from cb stops enumeration successfully. No partial
// dive is ever delivered: Foreach either fully downloads a dive before
// calling cb, or drops it silently on cancellation (spec §4.1.2
// "Cancellation").
func (d *Device) Foreach(cb DiveCallback) error {
	return d.backend.Foreach(d, cb)
}

// Close releases the device's transport. Backends that must flush an
// "exit" protocol byte do so here before the transport itself is closed.
func (d *Device) Close() error {
	return d.backend.Close(d)
}

// Cancel requests that any in-progress or future Foreach/Dump stop at the
// next protocol boundary. Safe to call from another goroutine; the flag is
// only ever polled, never blocking.
func (d *Device) Cancel() { d.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called. Backends must poll
// this before every protocol turn (spec §4.1.1) and return StatusCancelled
// as soon as it is observed true.
func (d *Device) Cancelled() bool { return d.cancelled.Load() }

// EmitWaiting notifies the Context's EventSink that the backend is polling
// for the device's wake-up signature.
func (d *Device) EmitWaiting() {
	if d.ctx != nil && d.ctx.Events != nil {
		d.ctx.Events.OnWaiting()
	}
}

// EmitProgress notifies the Context's EventSink of download progress.
// current and maximum must be monotone non-decreasing within one session.
func (d *Device) EmitProgress(current, maximum uint32) {
	if d.ctx != nil && d.ctx.Events != nil {
		d.ctx.Events.OnProgress(Progress{Current: current, Maximum: maximum})
	}
}

// EmitDevInfo notifies the Context's EventSink of the device identity and
// caches it on the Device for later retrieval via DevInfo.
func (d *Device) EmitDevInfo(info DevInfo) {
	d.devInfo = &info
	if d.ctx != nil && d.ctx.Events != nil {
		d.ctx.Events.OnDevInfo(info)
	}
}

// EmitClock notifies the Context's EventSink of a clock calibration and
// caches it on the Device for later retrieval via Clock.
func (d *Device) EmitClock(c Clock) {
	d.clock = &c
	if d.ctx != nil && d.ctx.Events != nil {
		d.ctx.Events.OnClock(c)
	}
}

// EmitVendor notifies the Context's EventSink of a vendor-specific
// diagnostic payload.
func (d *Device) EmitVendor(data []byte) {
	if d.ctx != nil && d.ctx.Events != nil {
		d.ctx.Events.OnVendor(Vendor{Data: data})
	}
}

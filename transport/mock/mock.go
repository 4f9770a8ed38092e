// Package mock is an in-memory dc.Transport fixture for family backend
// tests: no real serial port, just two byte queues a test wires up ahead of
// time and drains afterward.
package mock

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
)

// Transport is a loopback-free, scripted dc.Transport: Inbound holds bytes
// the family backend will read (queued by the test as the device's
// canned responses), and every byte the backend writes is appended to
// Outbound for the test to assert against afterward.
type Transport struct {
	Inbound  []byte
	Outbound []byte

	Params     dc.TransportParams
	DTR, RTS   bool
	FlushCalls []dc.Queue
	Closed     bool
}

// New returns a Transport whose Read calls will drain inbound in order.
func New(inbound []byte) *Transport {
	return &Transport{Inbound: append([]byte(nil), inbound...)}
}

// Feed appends more bytes to the read queue, for tests that script a
// multi-step exchange (e.g. echo then answer) incrementally.
func (t *Transport) Feed(b []byte) { t.Inbound = append(t.Inbound, b...) }

func (t *Transport) Configure(p dc.TransportParams) error {
	t.Params = p
	return nil
}

func (t *Transport) SetTimeout(time.Duration) error { return nil }

func (t *Transport) Read(p []byte) (int, error) {
	if len(t.Inbound) < len(p) {
		return 0, &dc.Error{Status: dc.StatusTimeout, Op: "mock.Read", Err: fmt.Errorf("want %d bytes, have %d queued", len(p), len(t.Inbound))}
	}
	n := copy(p, t.Inbound[:len(p)])
	t.Inbound = t.Inbound[len(p):]
	return n, nil
}

func (t *Transport) Write(p []byte) (int, error) {
	t.Outbound = append(t.Outbound, p...)
	return len(p), nil
}

func (t *Transport) Flush(q dc.Queue) error {
	t.FlushCalls = append(t.FlushCalls, q)
	return nil
}

func (t *Transport) SetDTR(level bool) error { t.DTR = level; return nil }
func (t *Transport) SetRTS(level bool) error { t.RTS = level; return nil }

func (t *Transport) GetLine(dc.Line) (bool, error) { return false, nil }

func (t *Transport) Available() (int, error) { return len(t.Inbound), nil }

func (t *Transport) Sleep(time.Duration) error { return nil }

func (t *Transport) Close() error { t.Closed = true; return nil }

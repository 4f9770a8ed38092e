// Package serial adapts go.bug.st/serial to the divecomputer.Transport
// interface. It is the library's one concrete, OS-level transport; the core
// package never imports it, mirroring how the teacher's ECU/GPS providers
// reach for go.bug.st/serial directly at the edge rather than through a
// shared abstraction.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	dc "github.com/shaunagostinho/divecomputer"
)

// Transport is a dc.Transport backed by an open OS serial port.
type Transport struct {
	port serial.Port
}

// Open opens portName and returns a Transport configured per params.
func Open(portName string, params dc.TransportParams) (*Transport, error) {
	mode := toMode(params)
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", portName, err)
	}
	return &Transport{port: port}, nil
}

func toMode(p dc.TransportParams) *serial.Mode {
	mode := &serial.Mode{BaudRate: p.BaudRate, DataBits: p.DataBits}
	switch p.Parity {
	case dc.ParityEven:
		mode.Parity = serial.EvenParity
	case dc.ParityOdd:
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	switch p.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	return mode
}

func (t *Transport) Configure(p dc.TransportParams) error {
	if err := t.port.SetMode(toMode(p)); err != nil {
		return fmt.Errorf("serial: configure: %w", err)
	}
	return nil
}

func (t *Transport) SetTimeout(d time.Duration) error {
	if err := t.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("serial: set timeout: %w", err)
	}
	return nil
}

// Read fills p completely or returns StatusTimeout, matching the
// deadline-based semantics go.bug.st/serial's ReadTimeout gives a single
// underlying Read call rather than the whole buffer.
func (t *Transport) Read(p []byte) (int, error) {
	got := 0
	for got < len(p) {
		n, err := t.port.Read(p[got:])
		if err != nil {
			return got, fmt.Errorf("serial: read: %w", err)
		}
		if n == 0 {
			return got, &dc.Error{Status: dc.StatusTimeout, Op: "serial.Read", Err: fmt.Errorf("short read: got %d of %d bytes", got, len(p))}
		}
		got += n
	}
	return got, nil
}

func (t *Transport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial: write: %w", err)
	}
	return n, nil
}

func (t *Transport) Flush(q dc.Queue) error {
	var err error
	switch q {
	case dc.QueueInput:
		err = t.port.ResetInputBuffer()
	case dc.QueueOutput:
		err = t.port.ResetOutputBuffer()
	case dc.QueueBoth:
		if e := t.port.ResetInputBuffer(); e != nil {
			err = e
		}
		if e := t.port.ResetOutputBuffer(); e != nil {
			err = e
		}
	}
	if err != nil {
		return fmt.Errorf("serial: flush: %w", err)
	}
	return nil
}

func (t *Transport) SetDTR(level bool) error {
	if err := t.port.SetDTR(level); err != nil {
		return fmt.Errorf("serial: set dtr: %w", err)
	}
	return nil
}

func (t *Transport) SetRTS(level bool) error {
	if err := t.port.SetRTS(level); err != nil {
		return fmt.Errorf("serial: set rts: %w", err)
	}
	return nil
}

func (t *Transport) GetLine(line dc.Line) (bool, error) {
	bits, err := t.port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("serial: get line: %w", err)
	}
	switch line {
	case dc.LineCTS:
		return bits.CTS, nil
	case dc.LineDSR:
		return bits.DSR, nil
	case dc.LineRNG:
		return bits.RI, nil
	case dc.LineDCD:
		return bits.DCD, nil
	default:
		return false, fmt.Errorf("serial: unknown line %v", line)
	}
}

// Available is not exposed by go.bug.st/serial, so it always returns
// StatusUnsupported here; family/hwfrog and family/hwostc3, which use it
// only as a read-size hint, then fall back to their minimum chunk size.
func (t *Transport) Available() (int, error) {
	return 0, &dc.Error{Status: dc.StatusUnsupported, Op: "serial.Available"}
}

func (t *Transport) Sleep(d time.Duration) error {
	time.Sleep(d)
	return nil
}

func (t *Transport) Close() error {
	return t.port.Close()
}

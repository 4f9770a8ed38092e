package divecomputer

import "time"

// Parity is the transport's parity setting.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// FlowControl is the transport's flow-control setting.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

// Queue selects which direction Flush acts on.
type Queue int

const (
	QueueInput Queue = iota
	QueueOutput
	QueueBoth
)

// Line identifies a modem-control line Transport.GetLine can query.
type Line int

const (
	LineDCD Line = iota
	LineCTS
	LineDSR
	LineRNG
)

// TransportParams configures Transport.Configure. Databits is typically 7
// or 8, stopbits 1 or 2, baudrate in the range a family's layout table
// specifies (2400-115200 across the supported families).
type TransportParams struct {
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    int
	FlowControl FlowControl
}

// Transport is the byte-oriented full-duplex channel the Device core talks
// over. It is deliberately out of core scope per spec §1: the core depends
// only on this interface, never on a concrete serial implementation. See
// transport/serial for a go.bug.st/serial-backed adapter and
// transport/mock for the in-memory fixture used by family backend tests.
type Transport interface {
	// Configure sets baud rate, data bits, parity, stop bits and flow
	// control. May be called again after Open to change baud rate (used
	// by the baudrate-autodetect framing discipline).
	Configure(TransportParams) error

	// SetTimeout sets the read deadline. d < 0 blocks until n bytes have
	// arrived; d == 0 is non-blocking; d > 0 is a deadline.
	SetTimeout(d time.Duration) error

	// Read blocks (subject to the configured timeout) until len(p) bytes
	// have been read, returning the number actually read and StatusTimeout
	// wrapped as an error on a short read within the deadline.
	Read(p []byte) (int, error)

	// Write writes all of p or returns an error.
	Write(p []byte) (int, error)

	// Flush discards buffered bytes in the given queue direction.
	Flush(q Queue) error

	// SetDTR sets the DTR line.
	SetDTR(level bool) error
	// SetRTS sets the RTS line.
	SetRTS(level bool) error
	// GetLine reads a modem-control input line.
	GetLine(line Line) (bool, error)

	// Available returns the number of bytes currently buffered and ready
	// to read without blocking.
	Available() (int, error)

	// Sleep pauses for d, observing Transport-level cancellation only (the
	// Device core itself polls its own cancellation flag around calls to
	// Sleep per spec §4.1.1).
	Sleep(d time.Duration) error

	// Close releases the underlying channel.
	Close() error
}

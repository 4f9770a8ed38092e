package suuntod9

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

const (
	opVersion byte = 0x0F
	opRead    byte = 0x05
	opWrite   byte = 0x06

	fingerprintSize = 4
	recordMarkerHi  = 0x82
	recordMarkerLo  = 0x80
)

var autodetectBauds = [2]int{9600, 115200}

// device is the suuntod9 DeviceBackend. It implements the echo-framed
// packet protocol verbatim from suunto_d9_device_packet, including the
// RTS-gated write/read halves and the exact header/size/params/checksum
// verification sequence.
type device struct {
	layout      Layout
	model       uint32
	fingerprint []byte
}

// Open opens a serial connection to a D9-family device, autodetecting the
// baud rate the way suunto_d9_device_open does: DTR set, 100ms settle,
// flush both queues, then cycle {9600,115200} (hinted toward 115200 for
// the D4i/D6i/D9tx/DX sub-models) probing a version query until one
// succeeds.
func Open(ctx *dc.Context, transport dc.Transport, modelHint uint32) (*dc.Device, error) {
	const op = "suuntod9.Open"

	if err := transport.Configure(dc.TransportParams{
		BaudRate: 9600, DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
	}); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetTimeout(3000 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetDTR(true); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Sleep(100 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Flush(dc.QueueBoth); err != nil {
		return nil, newIOErr(op, err)
	}

	be := &device{}
	d := dc.NewDevice(ctx, transport, be)

	version, err := be.autodetect(d, modelHint)
	if err != nil {
		return nil, err
	}

	be.model = uint32(version[0])
	be.layout = layoutForModel(be.model)
	d.EmitDevInfo(dc.DevInfo{Model: be.model})

	return d, nil
}

func (be *device) Family() dc.Family { return dc.FamilySuuntoD9 }

// autodetect cycles the baud list, starting from the hinted index, probing
// a harmless version query at each rate until one succeeds.
func (be *device) autodetect(d *dc.Device, modelHint uint32) ([]byte, error) {
	const op = "suuntod9.autodetect"

	hint := 0
	if usesHighBaudHint(modelHint) {
		hint = 1
	}

	var lastErr error
	for i := 0; i < len(autodetectBauds); i++ {
		idx := (hint + i) % len(autodetectBauds)
		if err := d.Transport().Configure(dc.TransportParams{
			BaudRate: autodetectBauds[idx], DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
		}); err != nil {
			return nil, newIOErr(op, err)
		}

		version, err := be.version(d)
		if err == nil {
			return version, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// version issues the VERSION query used both by autodetection and by
// library consumers that want the raw identity bytes.
func (be *device) version(d *dc.Device) ([]byte, error) {
	return be.packet(d, opVersion, nil, 4)
}

// packet implements the echo-framed exchange exactly as
// suunto_d9_device_packet does: write command, read+verify the echo,
// read the answer, verify its header/size/params/checksum.
func (be *device) packet(d *dc.Device, opcode byte, params []byte, payloadSize int) ([]byte, error) {
	const op = "suuntod9.packet"

	if d.Cancelled() {
		return nil, cancelErr(op)
	}

	cmd := make([]byte, 3+len(params))
	cmd[0] = opcode
	total := uint16(len(params) + payloadSize)
	cmd[1] = byte(total >> 8)
	cmd[2] = byte(total)
	copy(cmd[3:], params)

	if err := d.Transport().SetRTS(false); err != nil {
		return nil, newIOErr(op, err)
	}
	if _, err := d.Transport().Write(cmd); err != nil {
		return nil, newIOErr(op, err)
	}

	echo := make([]byte, len(cmd))
	if _, err := d.Transport().Read(echo); err != nil {
		return nil, newTimeoutErr(op, err)
	}
	for i := range cmd {
		if echo[i] != cmd[i] {
			return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected echo"))
		}
	}

	if err := d.Transport().SetRTS(true); err != nil {
		return nil, newIOErr(op, err)
	}

	asize := 3 + len(params) + payloadSize + 1
	answer := make([]byte, asize)
	if _, err := d.Transport().Read(answer); err != nil {
		return nil, newTimeoutErr(op, err)
	}

	if answer[0] != cmd[0] {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer header"))
	}
	if int(byteutil.U16BE(answer[1:3]))+4 != asize {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer size"))
	}
	paramsLen := len(params)
	for i := 0; i < paramsLen; i++ {
		if cmd[3+i] != answer[3+i] {
			return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer parameters"))
		}
	}

	crc := answer[asize-1]
	ccrc := byteutil.ChecksumXOR(answer[:asize-1], 0x00)
	if crc != ccrc {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer checksum"))
	}

	return answer[3+paramsLen : 3+paramsLen+payloadSize], nil
}

func (be *device) SetFingerprint(d *dc.Device, data []byte) error {
	if len(data) != 0 && len(data) != fingerprintSize {
		return newErr(dc.StatusInvalidArgs, "suuntod9.SetFingerprint", nil)
	}
	be.fingerprint = append([]byte(nil), data...)
	return nil
}

func (be *device) Read(d *dc.Device, addr, length uint32) ([]byte, error) {
	params := []byte{byte(addr >> 8), byte(addr), byte(length)}
	return be.packet(d, opRead, params, int(length))
}

func (be *device) Write(d *dc.Device, addr uint32, data []byte) error {
	params := append([]byte{byte(addr >> 8), byte(addr)}, data...)
	_, err := be.packet(d, opWrite, params, 0)
	return err
}

func (be *device) Dump(d *dc.Device, buf *buffer.Buffer) error {
	const op = "suuntod9.Dump"
	buf.Clear()
	buf.Reserve(int(be.layout.MemSize))

	const chunk = 0x80
	d.EmitProgress(0, be.layout.MemSize)
	for addr := uint32(0); addr < be.layout.MemSize; addr += chunk {
		if d.Cancelled() {
			return cancelErr(op)
		}
		n := uint32(chunk)
		if addr+n > be.layout.MemSize {
			n = be.layout.MemSize - addr
		}
		page, err := be.Read(d, addr, n)
		if err != nil {
			return err
		}
		buf.Append(page)
		d.EmitProgress(addr+n, be.layout.MemSize)
	}
	return nil
}

// Foreach downloads the profile ring and extracts dive records newest
// first. Each record is [0x82][0x80][payload...][length_be_u16], the
// trailing length counting the whole record, and is found by reading that
// length backward from the end of the previous (newer) one; the
// fingerprint lives fingerprintSize bytes starting at
// layout.FingerprintOffset within the record. The authoritative
// suunto_common2 extraction routine was not present in the retrieved
// source tree; this reconstruction follows spec §4.1.2's generic
// dump-then-extract shape against the concrete layout and marker bytes
// suunto_d9.c does expose.
func (be *device) Foreach(d *dc.Device, cb dc.DiveCallback) error {
	const op = "suuntod9.Foreach"

	buf := buffer.New(int(be.layout.MemSize))
	if err := be.Dump(d, buf); err != nil {
		return err
	}
	mem := buf.Bytes()

	begin, end := be.layout.ProfileBegin, be.layout.ProfileEnd
	if end > uint32(len(mem)) {
		end = uint32(len(mem))
	}

	pos := end
	for pos > begin+2 {
		if d.Cancelled() {
			return cancelErr(op)
		}

		length := uint32(byteutil.U16BE(mem[pos-2 : pos]))
		recStart := pos - length
		if length < 4 || recStart < begin {
			break
		}
		record := mem[recStart:pos]
		if record[0] != recordMarkerHi || record[1] != recordMarkerLo {
			break
		}

		var fp []byte
		if int(be.layout.FingerprintOffset)+fingerprintSize <= len(record) {
			fp = record[be.layout.FingerprintOffset : be.layout.FingerprintOffset+fingerprintSize]
		}

		if be.fingerprint != nil && fp != nil && bytesEqual(fp, be.fingerprint) {
			return nil
		}

		if !cb(record, fp) {
			return nil
		}

		pos = recStart
	}

	return nil
}

func (be *device) Close(d *dc.Device) error {
	return d.Transport().Close()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}
func newIOErr(op string, cause error) error      { return newErr(dc.StatusIO, op, cause) }
func newTimeoutErr(op string, cause error) error { return newErr(dc.StatusTimeout, op, cause) }
func cancelErr(op string) error                  { return newErr(dc.StatusCancelled, op, nil) }

// Package hwfrog implements the Device and Parser for the Heinrichs
// Weikamp Frog, grounded directly on hw_frog.c's single-byte-command
// echo-framed protocol and ring-buffer logbook/profile download shape.
package hwfrog

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/ringbuffer"
)

const (
	ready      = 0x4D
	cmdHeader  = 0x61
	cmdClock   = 0x62
	customText = 0x63
	cmdDive    = 0x66
	identity   = 0x69
	display    = 0x6E
	cmdInit    = 0xBB
	exit       = 0xFF

	szDisplay    = 15
	szCustomText = 13
	szVersion    = szCustomText + 4

	fingerprintSize = 5

	rbLogbookSize  = 256
	rbLogbookCount = 256
	rbProfileBegin = 0x000000
	rbProfileEnd   = 0x200000
)

type device struct {
	fingerprint []byte
}

// diveSlot is one entry in the backward-order download list computed by
// planDownload.
type diveSlot struct {
	idx, offset, length int
}

// scanLogbook implements hw_frog_device_foreach's first loop: walk the
// header table from index 0, stopping at the first uninitialized
// (all-0xFF) entry, and remember which populated entry carries the
// highest internal dive counter (offset 52, 16-bit LE).
func scanLogbook(header []byte) (count, latest int) {
	maximum := uint32(0)
	for i := 0; i < rbLogbookCount; i++ {
		offset := i * rbLogbookSize
		if byteutil.IsAll(header[offset:offset+rbLogbookSize], 0xFF) {
			break
		}
		current := uint32(byteutil.U16LE(header[offset+52:]))
		if current > maximum {
			maximum = current
			latest = i
		}
		count++
	}
	return count, latest
}

// planDownload implements hw_frog_device_foreach's second loop: walk
// backward from latest through count entries, computing each dive's
// profile length from its ring-buffer begin/end pointers (offsets 2 and
// 5, 24-bit LE) via ringbuffer.Distance, stopping early once a header's
// fingerprint (offset 9) matches the caller-supplied one.
func planDownload(header []byte, count, latest int, fingerprint []byte) ([]diveSlot, error) {
	const op = "hwfrog.planDownload"

	var dives []diveSlot
	for i := 0; i < count; i++ {
		idx := (latest + rbLogbookCount - i) % rbLogbookCount
		offset := idx * rbLogbookSize

		begin := uint32(byteutil.U24LE(header[offset+2:]))
		end := uint32(byteutil.U24LE(header[offset+5:]))
		if begin < rbProfileBegin || begin >= rbProfileEnd || end < rbProfileBegin || end >= rbProfileEnd {
			return nil, newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid ring buffer pointer"))
		}

		if fingerprint != nil && bytesEqual(header[offset+9:offset+9+fingerprintSize], fingerprint) {
			break
		}

		dist := ringbuffer.Distance(begin, end, ringbuffer.ModeEmpty, rbProfileBegin, rbProfileEnd)
		length := rbLogbookSize + int(dist) - 6
		dives = append(dives, diveSlot{idx: idx, offset: offset, length: length})
	}
	return dives, nil
}

// Open opens the serial connection the way hw_frog_device_open does:
// 115200 8N1, 3000ms timeout, 300ms settle, flush both queues, then send
// the INIT command (no echo or ready byte expected for INIT).
func Open(ctx *dc.Context, transport dc.Transport) (*dc.Device, error) {
	const op = "hwfrog.Open"

	if err := transport.Configure(dc.TransportParams{
		BaudRate: 115200, DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
	}); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetTimeout(3000 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Sleep(300 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Flush(dc.QueueBoth); err != nil {
		return nil, newIOErr(op, err)
	}

	be := &device{}
	d := dc.NewDevice(ctx, transport, be)

	if _, err := be.transfer(d, nil, cmdInit, nil, 0); err != nil {
		return nil, err
	}

	return d, nil
}

func (be *device) Family() dc.Family { return dc.FamilyHWFrog }

// transfer implements hw_frog_transfer: write the single command byte,
// read+verify its echo (skipped for INIT and HEADER, which answer with
// data instead of an echo), write any input packet, read any output
// payload in opportunistically-sized chunks, then read the trailing
// READY byte (skipped for EXIT, which closes the link instead).
func (be *device) transfer(d *dc.Device, progress *dc.Progress, cmd byte, input []byte, outputSize int) ([]byte, error) {
	const op = "hwfrog.transfer"

	if d.Cancelled() {
		return nil, cancelErr(op)
	}

	if _, err := d.Transport().Write([]byte{cmd}); err != nil {
		return nil, newIOErr(op, err)
	}

	if cmd != cmdInit && cmd != cmdHeader {
		echo := make([]byte, 1)
		if _, err := d.Transport().Read(echo); err != nil {
			return nil, newTimeoutErr(op, err)
		}
		if echo[0] != cmd {
			return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected echo"))
		}
	}

	if input != nil {
		if _, err := d.Transport().Write(input); err != nil {
			return nil, newIOErr(op, err)
		}
	}

	var output []byte
	if outputSize > 0 {
		output = make([]byte, outputSize)
		nbytes := 0
		for nbytes < outputSize {
			chunk := 1024
			if available, err := d.Transport().Available(); err == nil && available > chunk {
				chunk = available
			}
			if nbytes+chunk > outputSize {
				chunk = outputSize - nbytes
			}
			if _, err := d.Transport().Read(output[nbytes : nbytes+chunk]); err != nil {
				return nil, newTimeoutErr(op, err)
			}
			if progress != nil {
				progress.Current += uint32(chunk)
				d.EmitProgress(progress.Current, progress.Maximum)
			}
			nbytes += chunk
		}
	}

	if cmd != exit {
		answer := make([]byte, 1)
		if _, err := d.Transport().Read(answer); err != nil {
			return nil, newTimeoutErr(op, err)
		}
		if answer[0] != ready {
			return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected ready byte"))
		}
	}

	return output, nil
}

func (be *device) SetFingerprint(d *dc.Device, data []byte) error {
	if len(data) != 0 && len(data) != fingerprintSize {
		return newErr(dc.StatusInvalidArgs, "hwfrog.SetFingerprint", nil)
	}
	be.fingerprint = append([]byte(nil), data...)
	return nil
}

func (be *device) Read(d *dc.Device, addr, length uint32) ([]byte, error) {
	return nil, newErr(dc.StatusUnsupported, "hwfrog.Read", nil)
}

func (be *device) Write(d *dc.Device, addr uint32, data []byte) error {
	return newErr(dc.StatusUnsupported, "hwfrog.Write", nil)
}

func (be *device) Dump(d *dc.Device, buf *buffer.Buffer) error {
	return newErr(dc.StatusUnsupported, "hwfrog.Dump", nil)
}

// Version reads the IDENTITY block: 2 bytes LE serial, 2 bytes BE
// firmware, szCustomText bytes of custom text.
func (be *device) Version(d *dc.Device) ([]byte, error) {
	return be.transfer(d, nil, identity, nil, szVersion)
}

// Foreach implements hw_frog_device_foreach: download the full
// logbook-header table in one shot, pick the most recently written entry
// by its internal dive counter (field at offset 52), then walk backward
// through the ring of headers computing each dive's profile length from
// its begin/end ring pointers (offsets 2 and 5, 24-bit LE) via
// ringbuffer.Distance, downloading each dive by index until the stored
// fingerprint (at header offset 9) is matched.
func (be *device) Foreach(d *dc.Device, cb dc.DiveCallback) error {
	const op = "hwfrog.Foreach"

	progress := &dc.Progress{Maximum: uint32(rbLogbookSize*rbLogbookCount) + uint32(rbProfileEnd-rbProfileBegin)}
	d.EmitProgress(progress.Current, progress.Maximum)

	id, err := be.Version(d)
	if err != nil {
		return err
	}
	d.EmitDevInfo(dc.DevInfo{
		Serial:   uint32(byteutil.U16LE(id[0:])),
		Firmware: uint32(byteutil.U16BE(id[2:])),
	})

	header, err := be.transfer(d, progress, cmdHeader, nil, rbLogbookSize*rbLogbookCount)
	if err != nil {
		return err
	}

	count, latest := scanLogbook(header)

	dives, err := planDownload(header, count, latest, be.fingerprint)
	if err != nil {
		return err
	}
	size := 0
	for _, slot := range dives {
		size += slot.length
	}

	progress.Maximum = uint32(rbLogbookSize*rbLogbookCount) + uint32(size)
	d.EmitProgress(progress.Current, progress.Maximum)

	for _, slot := range dives {
		if d.Cancelled() {
			return cancelErr(op)
		}

		profile, err := be.transfer(d, progress, cmdDive, []byte{byte(slot.idx)}, slot.length)
		if err != nil {
			return err
		}
		if !bytesEqual(profile[:rbLogbookSize], header[slot.offset:slot.offset+rbLogbookSize]) {
			return newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected profile header"))
		}

		fp := profile[9 : 9+fingerprintSize]
		if !cb(profile, fp) {
			return nil
		}
	}

	return nil
}

func (be *device) Close(d *dc.Device) error {
	if _, err := be.transfer(d, nil, exit, nil, 0); err != nil {
		return err
	}
	return d.Transport().Close()
}

// Clock sets the device's onboard clock.
func (be *device) Clock(d *dc.Device, t dc.DateTime) error {
	packet := []byte{byte(t.Hour), byte(t.Minute), byte(t.Second), byte(t.Month), byte(t.Day), byte(t.Year - 2000)}
	_, err := be.transfer(d, nil, cmdClock, packet, 0)
	return err
}

// Display sets the device's custom display text, padded with spaces.
func (be *device) Display(d *dc.Device, text string) error {
	packet, err := padASCII(text, szDisplay)
	if err != nil {
		return newErr(dc.StatusInvalidArgs, "hwfrog.Display", err)
	}
	_, err = be.transfer(d, nil, display, packet, 0)
	return err
}

// CustomText sets the device's custom text field, padded with spaces.
func (be *device) CustomText(d *dc.Device, text string) error {
	packet, err := padASCII(text, szCustomText)
	if err != nil {
		return newErr(dc.StatusInvalidArgs, "hwfrog.CustomText", err)
	}
	_, err = be.transfer(d, nil, customText, packet, 0)
	return err
}

func padASCII(text string, size int) ([]byte, error) {
	if len(text) > size {
		return nil, fmt.Errorf("text too long: %d bytes, max %d", len(text), size)
	}
	packet := make([]byte, size)
	copy(packet, text)
	for i := len(text); i < size; i++ {
		packet[i] = ' '
	}
	return packet, nil
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

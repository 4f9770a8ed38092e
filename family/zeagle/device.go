// Package zeagle implements the Device and Parser for the Zeagle
// N2iTion 3 (and the Cressi Edy, which shares the same wire protocol in
// upstream but whose parser source could not be located in this pack's
// retrieved tree — see DESIGN.md), grounded on zeagle_n2ition3.c's
// length-and-checksum-framed packet protocol and dual-ring traversal.
package zeagle

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/ringbuffer"
)

const (
	szMemory = 0x8000
	szPacket = 64

	rbProfileBegin = 0x3FA0
	rbProfileEnd   = 0x7EC0

	rbLogbookOffset = 0x7EC0
	rbLogbookBegin  = 0
	rbLogbookEnd    = 60

	fingerprintSize = 16
)

type device struct {
	fingerprint [fingerprintSize]byte
}

// Open opens the serial connection the way zeagle_n2ition3_device_open
// does: 4800 8N1, 1000ms timeout, flush both queues, then send the init
// command. The original discards init's result rather than failing Open
// on it; this is preserved here.
func Open(ctx *dc.Context, transport dc.Transport) (*dc.Device, error) {
	const op = "zeagle.Open"

	if err := transport.Configure(dc.TransportParams{
		BaudRate: 4800, DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
	}); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetTimeout(1000 * time.Millisecond); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.Flush(dc.QueueBoth); err != nil {
		return nil, newIOErr(op, err)
	}

	be := &device{}
	d := dc.NewDevice(ctx, transport, be)

	be.init(d)

	return d, nil
}

func (be *device) Family() dc.Family { return dc.FamilyZeagleN2ition3 }

// packet implements zeagle_n2ition3_packet: write command, read exactly
// asize bytes of answer, verify the echoed command prefix, the 0x02/0x03
// header/trailer bytes, the little-endian size field, and the
// one's-complement additive checksum trailing the payload.
//
// The header/trailer check below reproduces the original's `&&` exactly:
// it only flags an error when BOTH the header and trailer byte disagree,
// not when either one alone is wrong.
func (be *device) packet(d *dc.Device, command []byte, asize int) ([]byte, error) {
	const op = "zeagle.packet"
	csize := len(command)

	if d.Cancelled() {
		return nil, cancelErr(op)
	}

	if _, err := d.Transport().Write(command); err != nil {
		return nil, newIOErr(op, err)
	}

	answer := make([]byte, asize)
	if _, err := d.Transport().Read(answer); err != nil {
		return nil, newTimeoutErr(op, err)
	}

	if !bytesEqual(answer[:csize], command) {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected echo"))
	}

	if answer[csize] != 0x02 && answer[asize-1] != 0x03 {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer header/trailer byte"))
	}

	if int(byteutil.U16LE(answer[csize+1:]))+csize+5 != asize {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer size"))
	}

	crc := answer[asize-2]
	ccrc := byteutil.OnesComplementAdd(answer[csize+3 : asize-2])
	if crc != ccrc {
		return nil, newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer checksum"))
	}

	return answer, nil
}

func (be *device) init(d *dc.Device) error {
	command := []byte{0x02, 0x01, 0x00, 0x41, 0xBF, 0x03}
	_, err := be.packet(d, command, 6+13)
	return err
}

func (be *device) SetFingerprint(d *dc.Device, data []byte) error {
	if len(data) != 0 && len(data) != fingerprintSize {
		return newErr(dc.StatusInvalidArgs, "zeagle.SetFingerprint", nil)
	}
	if len(data) == 0 {
		be.fingerprint = [fingerprintSize]byte{}
	} else {
		copy(be.fingerprint[:], data)
	}
	return nil
}

// Read implements zeagle_n2ition3_device_read: a 13-byte command framing
// a 0x4D (read memory) opcode, address, and count, checksummed with
// byteutil.OnesComplementAdd, paged at szPacket bytes per transfer.
func (be *device) Read(d *dc.Device, address, length uint32) ([]byte, error) {
	data := make([]byte, length)
	nbytes := uint32(0)
	for nbytes < length {
		chunkLen := length - nbytes
		if chunkLen > szPacket {
			chunkLen = szPacket
		}

		command := make([]byte, 13)
		command[0], command[1], command[2], command[3] = 0x02, 0x08, 0x00, 0x4D
		command[4] = byte(address)
		command[5] = byte(address >> 8)
		command[6] = byte(chunkLen)
		command[11] = byteutil.OnesComplementAdd(command[3:11])
		command[12] = 0x03

		answer, err := be.packet(d, command, 13+int(chunkLen)+6)
		if err != nil {
			return nil, err
		}

		copy(data[nbytes:], answer[17:17+chunkLen])

		nbytes += chunkLen
		address += chunkLen
	}

	return data, nil
}

func (be *device) Write(d *dc.Device, addr uint32, data []byte) error {
	return newErr(dc.StatusUnsupported, "zeagle.Write", nil)
}

func (be *device) Dump(d *dc.Device, buf *buffer.Buffer) error {
	buf.Clear()
	buf.Resize(szMemory)

	data, err := be.Read(d, 0, szMemory)
	if err != nil {
		return err
	}
	copy(buf.Bytes(), data)
	return nil
}

// scanLogbook implements the pointer half of zeagle_n2ition3_device_foreach:
// extract the logbook ring's last/first slots and end-of-profile pointer
// from the 0x7C/0x7D/0x7E config fields, and the logbook ring's item count
// via ringbuffer.Distance. last == 0xFF (an out-of-range last pointer) is
// the original's "ring is empty" sentinel, reported via ok == false with a
// nil error rather than StatusDataFormat.
func scanLogbook(config []byte) (last, first, count int, eop uint32, ok bool, err error) {
	const op = "zeagle.scanLogbook"

	last = int(config[0x7C])
	first = int(config[0x7D])
	if first < rbLogbookBegin || first >= rbLogbookEnd || last < rbLogbookBegin || last >= rbLogbookEnd {
		if last == 0xFF {
			return 0, 0, 0, 0, false, nil
		}
		return 0, 0, 0, 0, false, newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid ring buffer pointer"))
	}

	count = int(ringbuffer.Distance(uint32(first), uint32(last), ringbuffer.ModeEmpty, rbLogbookBegin, rbLogbookEnd)) + 1

	eop = uint32(byteutil.U16LE(config[0x7E:]))
	if eop < rbProfileBegin || eop >= rbProfileEnd {
		return 0, 0, 0, 0, false, newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid ring buffer pointer"))
	}

	return last, first, count, eop, true, nil
}

// planLengths implements zeagle_n2ition3_device_foreach's first backward
// pass: walk the logbook ring from last through count entries, computing
// each dive's profile length against the profile ring via
// ringbuffer.Distance, truncating count the moment the running total would
// exceed the profile region's size — the ring-overflow guard spec.md §8
// Testable Properties scenario 5 names.
func planLengths(config []byte, last, count int, eop uint32) (truncated int, total uint32, err error) {
	const op = "zeagle.planLengths"

	idx := last
	previous := eop
	for i := 0; i < count; i++ {
		current := uint32(byteutil.U16LE(config[2*idx:]))
		if current < rbProfileBegin || current >= rbProfileEnd {
			return 0, 0, newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid ring buffer pointer"))
		}

		length := ringbuffer.Distance(current, previous, ringbuffer.ModeFull, rbProfileBegin, rbProfileEnd)

		if total+length > rbProfileEnd-rbProfileBegin {
			return i, total, nil
		}

		total += length
		previous = current

		if idx == rbLogbookBegin {
			idx = rbLogbookEnd
		}
		idx--
	}

	return count, total, nil
}

// Foreach implements zeagle_n2ition3_device_foreach: read the
// logbook-pointer configuration block, plan which dives fit the profile
// ring via scanLogbook/planLengths, then download and deliver each
// surviving dive newest-first.
func (be *device) Foreach(d *dc.Device, cb dc.DiveCallback) error {
	const op = "zeagle.Foreach"

	progress := &dc.Progress{Maximum: uint32((rbLogbookEnd-rbLogbookBegin)*2+8) + uint32(rbProfileEnd-rbProfileBegin)}
	d.EmitProgress(progress.Current, progress.Maximum)

	config, err := be.Read(d, rbLogbookOffset, uint32((rbLogbookEnd-rbLogbookBegin)*2+8))
	if err != nil {
		return err
	}

	last, _, count, eop, ok, err := scanLogbook(config)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	count, total, err := planLengths(config, last, count, eop)
	if err != nil {
		return err
	}

	progress.Current += uint32(len(config))
	progress.Maximum = uint32((rbLogbookEnd-rbLogbookBegin)*2+8) + total
	d.EmitProgress(progress.Current, progress.Maximum)

	profile := make([]byte, rbProfileEnd-rbProfileBegin)

	available := uint32(0)
	remaining := total
	offset := uint32(rbProfileEnd - rbProfileBegin)

	idx := last
	previous := eop
	address := previous
	for i := 0; i < count; i++ {
		current := uint32(byteutil.U16LE(config[2*idx:]))
		length := ringbuffer.Distance(current, previous, ringbuffer.ModeFull, rbProfileBegin, rbProfileEnd)

		nbytes := available
		for nbytes < length {
			if address == rbProfileBegin {
				address = rbProfileEnd
			}

			chunkLen := uint32(szPacket)
			if rbProfileBegin+chunkLen > address {
				chunkLen = address - rbProfileBegin
			}
			if nbytes+chunkLen > remaining {
				chunkLen = remaining - nbytes
			}

			address -= chunkLen
			offset -= chunkLen

			page, err := be.Read(d, address, chunkLen)
			if err != nil {
				return err
			}
			copy(profile[offset:], page)

			progress.Current += chunkLen
			d.EmitProgress(progress.Current, progress.Maximum)

			nbytes += chunkLen
		}

		remaining -= length
		available = nbytes - length
		previous = current

		p := profile[offset+available:]
		dive := p[:length]

		if bytesEqual(dive[:fingerprintSize], be.fingerprint[:]) {
			return nil
		}

		if !cb(dive, dive[:fingerprintSize]) {
			return nil
		}

		if idx == rbLogbookBegin {
			idx = rbLogbookEnd
		}
		idx--
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

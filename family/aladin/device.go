// Package aladin implements the Device and Parser for the Uwatec Aladin
// family, grounded on uwatec_aladin.c: a one-shot infrared dump of the
// whole 2048-byte memory image (bit-reversed on the wire), followed by a
// backward walk of two independent ring buffers — a 37-entry logbook ring
// and a profile ring — to split the image into per-dive blobs.
package aladin

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/ringbuffer"
)

const (
	szMemory = 2048
	header   = 4

	rbProfileBegin = 0x000
	rbProfileEnd   = 0x600

	logbookCount = 37
)

type device struct {
	timestamp uint32
}

// Open opens a serial connection the way uwatec_aladin_device_open does:
// 19200 8N1, infinite read timeout, DTR set and RTS cleared — the Aladin's
// IR interface powers the link off the DTR line rather than a command.
func Open(ctx *dc.Context, transport dc.Transport) (*dc.Device, error) {
	const op = "aladin.Open"

	if err := transport.Configure(dc.TransportParams{
		BaudRate: 19200, DataBits: 8, Parity: dc.ParityNone, StopBits: 1, FlowControl: dc.FlowNone,
	}); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetTimeout(-1); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetDTR(true); err != nil {
		return nil, newIOErr(op, err)
	}
	if err := transport.SetRTS(false); err != nil {
		return nil, newIOErr(op, err)
	}

	be := &device{}
	return dc.NewDevice(ctx, transport, be), nil
}

func (be *device) Family() dc.Family { return dc.FamilyUwatecAladin }

func (be *device) SetFingerprint(d *dc.Device, data []byte) error {
	if len(data) != 0 && len(data) != 4 {
		return newErr(dc.StatusInvalidArgs, "aladin.SetFingerprint", nil)
	}
	if len(data) == 0 {
		be.timestamp = 0
	} else {
		be.timestamp = byteutil.U32LE(data)
	}
	return nil
}

func (be *device) Read(d *dc.Device, addr, length uint32) ([]byte, error) {
	return nil, newErr(dc.StatusUnsupported, "aladin.Read", nil)
}

func (be *device) Write(d *dc.Device, addr uint32, data []byte) error {
	return newErr(dc.StatusUnsupported, "aladin.Write", nil)
}

// Dump implements uwatec_aladin_device_dump: wait for the three-byte
// 0x55 0x55 0x55 sync pattern followed by a 0x00 marker (re-synchronizing
// on any mismatch and emitting a waiting event), then read the remaining
// szMemory+2-4 bytes, reverse every bit in the whole answer, and verify
// the trailing 16-bit additive checksum.
func (be *device) Dump(d *dc.Device, buf *buffer.Buffer) error {
	const op = "aladin.Dump"

	buf.Clear()
	buf.Reserve(szMemory)

	d.EmitProgress(0, szMemory+2)

	answer := make([]byte, szMemory+2)
	one := make([]byte, 1)
	for i := 0; i < 4; {
		if d.Cancelled() {
			return cancelErr(op)
		}
		if _, err := d.Transport().Read(one); err != nil {
			return newTimeoutErr(op, err)
		}
		answer[i] = one[0]

		want := byte(0x55)
		if i == 3 {
			want = 0x00
		}
		if answer[i] == want {
			i++
		} else {
			i = 0
			d.EmitWaiting()
		}
	}

	now := time.Now().Unix()
	d.EmitProgress(4, szMemory+2)

	if _, err := d.Transport().Read(answer[4:]); err != nil {
		return newTimeoutErr(op, err)
	}
	d.EmitProgress(uint32(szMemory+2), szMemory+2)

	byteutil.ReverseBits(answer)

	crc := byteutil.U16LE(answer[szMemory:])
	ccrc := byteutil.ChecksumAddU16(answer[:szMemory], 0x0000)
	if ccrc != crc {
		return newErr(dc.StatusProtocol, op, fmt.Errorf("unexpected answer checksum"))
	}

	devtime := byteutil.U32BE(answer[header+0x7f8:])
	d.EmitClock(dc.Clock{SysTime: now, DevTime: int64(devtime)})

	buf.Append(answer[:szMemory])
	return nil
}

// Foreach implements uwatec_aladin_device_foreach + the extraction in
// uwatec_aladin_extract_dives: dump the memory image, emit a device-info
// event from the fixed identity offsets, then hand the image to
// extractDives for the ring walk.
func (be *device) Foreach(d *dc.Device, cb dc.DiveCallback) error {
	buf := buffer.New(szMemory)
	if err := be.Dump(d, buf); err != nil {
		return err
	}
	data := buf.Bytes()

	d.EmitDevInfo(dc.DevInfo{
		Model:  uint32(data[header+0x7bc]),
		Serial: byteutil.U24BE(data[header+0x7ed:]),
	})

	return extractDives(data, be.timestamp, cb)
}

// extractDives walks the two rings backward exactly as
// uwatec_aladin_extract_dives does, producing one buffer per dive laid
// out as 3 bytes serial + 1 byte model + 12 bytes logbook + 2 bytes
// profile length + the profile bytes themselves (the "Memomouse format"
// the original converts each entry's timestamp into).
func extractDives(data []byte, timestamp uint32, cb dc.DiveCallback) error {
	if len(data) < szMemory {
		return newErr(dc.StatusDataFormat, "aladin.extractDives", fmt.Errorf("short memory image"))
	}

	ndives := int(byteutil.U16BE(data[header+0x7f2:]))
	if ndives > logbookCount {
		ndives = logbookCount
	}

	eol := (int(data[header+0x7f4]) + logbookCount - 1) % logbookCount

	eop := ringbuffer.Increment(
		uint32(data[header+0x7f6])+((uint32(data[header+0x7f7]&0x0F)>>1)<<8),
		1, rbProfileBegin, rbProfileEnd)

	profiles := true
	previous := eop
	current := eop

	for i := 0; i < ndives; i++ {
		dive := make([]byte, 18+(rbProfileEnd-rbProfileBegin))

		offset := uint32((eol+logbookCount-i)%logbookCount)*12 + rbProfileEnd

		copy(dive[0:3], data[header+0x07ed:header+0x07ed+3])
		dive[3] = data[header+0x07bc]
		copy(dive[4:16], data[header+int(offset):header+int(offset)+12])
		dive[16], dive[17] = 0, 0

		byteutil.ReverseBytes(dive[11:15])

		length := uint32(0)
		if profiles {
			found := false
			for {
				if current == rbProfileBegin {
					current = rbProfileEnd
				}
				current--

				if data[header+current] == 0xFF {
					length = ringbuffer.Distance(current, previous, ringbuffer.ModeEmpty, rbProfileBegin, rbProfileEnd)
					previous = current
					found = true
					break
				}
				if current == eop {
					break
				}
			}

			if found && length >= 1 {
				length--
				begin := ringbuffer.Increment(current, 1, rbProfileBegin, rbProfileEnd)
				dive[16] = byte(length)
				dive[17] = byte(length >> 8)
				if begin+length > rbProfileEnd {
					a := rbProfileEnd - begin
					b := (begin + length) - rbProfileEnd
					copy(dive[18:18+a], data[header+begin:header+rbProfileEnd])
					copy(dive[18+a:18+a+b], data[header:header+b])
				} else {
					copy(dive[18:18+length], data[header+begin:header+begin+length])
				}
			}

			if current == eop {
				profiles = false
			}
		}

		dive = dive[:18+length]

		ts := byteutil.U32LE(dive[11:15])
		if ts <= timestamp {
			return nil
		}

		if cb != nil && !cb(dive, dive[11:15]) {
			return nil
		}
	}

	return nil
}

func (be *device) Close(d *dc.Device) error {
	return d.Transport().Close()
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}
func newIOErr(op string, cause error) error      { return newErr(dc.StatusIO, op, cause) }
func newTimeoutErr(op string, cause error) error { return newErr(dc.StatusTimeout, op, cause) }
func cancelErr(op string) error                  { return newErr(dc.StatusCancelled, op, nil) }

package zeagle

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/transport/mock"
)

// TestScanLogbookParsesPointers exercises the basic last/first/count/eop
// extraction out of the 0x7C/0x7D/0x7E config fields.
func TestScanLogbookParsesPointers(t *testing.T) {
	config := make([]byte, 128)
	config[0x7C] = 8
	config[0x7D] = 3
	byteutil.PutU16LE(config[0x7E:], 0x4000)

	last, first, count, eop, ok, err := scanLogbook(config)
	if err != nil {
		t.Fatalf("scanLogbook: %v", err)
	}
	if !ok {
		t.Fatalf("ok = false, want true")
	}
	if last != 8 || first != 3 {
		t.Fatalf("last,first = %d,%d, want 8,3", last, first)
	}
	if count != 6 {
		t.Fatalf("count = %d, want 6", count)
	}
	if eop != 0x4000 {
		t.Fatalf("eop = %#x, want 0x4000", eop)
	}
}

// TestScanLogbookEmptyRingSentinel exercises the original's last==0xFF
// "ring is empty" sentinel: an out-of-range last pointer with value 0xFF
// reports ok=false, nil error rather than StatusDataFormat.
func TestScanLogbookEmptyRingSentinel(t *testing.T) {
	config := make([]byte, 128)
	config[0x7C] = 0xFF
	config[0x7D] = 0

	_, _, _, _, ok, err := scanLogbook(config)
	if err != nil {
		t.Fatalf("scanLogbook: %v", err)
	}
	if ok {
		t.Fatalf("ok = true, want false")
	}
}

// TestScanLogbookRejectsOutOfRangePointer exercises the DataFormat guard
// for any other out-of-range last/first pointer.
func TestScanLogbookRejectsOutOfRangePointer(t *testing.T) {
	config := make([]byte, 128)
	config[0x7C] = 60 // equal to rbLogbookEnd, one past the last valid slot
	config[0x7D] = 0

	_, _, _, _, _, err := scanLogbook(config)
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

// TestPlanLengthsTruncatesRingOverflow is spec.md §8 Testable Properties
// scenario 5: a logbook ring whose entries' summed profile lengths exceed
// RB_PROFILE_END-RB_PROFILE_BEGIN (0x3F20 = 16160) truncates count to the
// newest k entries that fit. Nine entries are wired at 2000 bytes apiece:
// the first eight sum to 16000 (fits), the ninth would bring the running
// total to 18000 (overflows), so planLengths must stop at k=8.
func TestPlanLengthsTruncatesRingOverflow(t *testing.T) {
	const eop = 32288 // rbProfileBegin + 16000

	config := make([]byte, 128)
	config[0x7C] = 8 // last
	config[0x7D] = 0 // first
	byteutil.PutU16LE(config[0x7E:], eop)

	// pointers spaced 2000 bytes apart walking backward from eop, the
	// ninth wrapping once past rbProfileBegin back toward rbProfileEnd.
	pointers := map[int]uint16{
		8: 30288,
		7: 28288,
		6: 26288,
		5: 24288,
		4: 22288,
		3: 20288,
		2: 18288,
		1: 16288,
		0: 30448,
	}
	for idx, p := range pointers {
		byteutil.PutU16LE(config[2*idx:], p)
	}

	last, first, count, gotEop, ok, err := scanLogbook(config)
	if err != nil {
		t.Fatalf("scanLogbook: %v", err)
	}
	if !ok {
		t.Fatalf("ok = false, want true")
	}
	if last != 8 || first != 0 || count != 9 || gotEop != eop {
		t.Fatalf("scanLogbook = (%d,%d,%d,%d), want (8,0,9,%d)", last, first, count, gotEop, eop)
	}

	truncated, total, err := planLengths(config, last, count, gotEop)
	if err != nil {
		t.Fatalf("planLengths: %v", err)
	}
	if truncated != 8 {
		t.Fatalf("truncated = %d, want 8", truncated)
	}
	if total != 16000 {
		t.Fatalf("total = %d, want 16000", total)
	}
}

// TestPacketRejectsUnexpectedEcho exercises packet's echo check.
func TestPacketRejectsUnexpectedEcho(t *testing.T) {
	command := []byte{0x02, 0x01, 0x00, 0x41, 0xBF, 0x03}
	answer := append([]byte(nil), command...)
	answer[0] = 0x00 // corrupt the echo
	answer = append(answer, make([]byte, 13)...)

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	_, err := be.packet(d, command, len(command)+13)
	if dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

// TestPacketAcceptsValidAnswer builds a real answer (echo, 0x02/0x03
// header/trailer, little-endian size, one's-complement checksum) and
// verifies packet accepts it.
func TestPacketAcceptsValidAnswer(t *testing.T) {
	command := []byte{0x02, 0x01, 0x00, 0x41, 0xBF, 0x03}

	payload := []byte{0xAA, 0xBB, 0xCC}
	asize := len(command) + 3 + len(payload) + 2

	answer := make([]byte, asize)
	copy(answer, command)
	answer[len(command)] = 0x02
	byteutil.PutU16LE(answer[len(command)+1:], uint16(len(payload)))
	copy(answer[len(command)+3:], payload)
	answer[asize-2] = byteutil.OnesComplementAdd(answer[len(command)+3 : asize-2])
	answer[asize-1] = 0x03

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	got, err := be.packet(d, command, asize)
	if err != nil {
		t.Fatalf("packet: %v", err)
	}
	if string(got) != string(answer) {
		t.Fatalf("answer mismatch")
	}
}

// TestReadPagesAndAssemblesPayload verifies Read frames a correct
// checksummed command and reassembles the payload from a single
// szPacket-sized page.
func TestReadPagesAndAssemblesPayload(t *testing.T) {
	address := uint32(0x1000)
	length := uint32(16)

	command := make([]byte, 13)
	command[0], command[1], command[2], command[3] = 0x02, 0x08, 0x00, 0x4D
	command[4], command[5] = byte(address), byte(address>>8)
	command[6] = byte(length)
	command[11] = byteutil.OnesComplementAdd(command[3:11])
	command[12] = 0x03

	payload := make([]byte, length)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	// the device's declared size field is one byte larger than the actual
	// payload length, and the payload itself starts one byte past where
	// that would suggest (answer+17, not answer+16) — ported verbatim
	// from zeagle_n2ition3_device_read/zeagle_n2ition3_packet.
	asize := 13 + int(length) + 6
	answer := make([]byte, asize)
	copy(answer, command)
	answer[13] = 0x02
	byteutil.PutU16LE(answer[14:], uint16(length)+1)
	copy(answer[17:], payload)
	answer[asize-2] = byteutil.OnesComplementAdd(answer[16 : asize-2])
	answer[asize-1] = 0x03

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	got, err := be.Read(d, address, length)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", got, payload)
	}
}

func TestSetFingerprintRejectsWrongLength(t *testing.T) {
	be := &device{}
	err := be.SetFingerprint(nil, make([]byte, fingerprintSize-1))
	if dc.StatusOf(err) != dc.StatusInvalidArgs {
		t.Fatalf("status = %v, want StatusInvalidArgs", dc.StatusOf(err))
	}
}

package hwfrog

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/transport/mock"
)

// logbookEntry builds one rbLogbookSize-byte header record with a begin/end
// ring-pointer pair, a monotonic counter, and a fingerprint, the fields
// hw_frog_device_foreach reads out of the header table.
func logbookEntry(begin, end uint32, counter uint16, fingerprint byte) []byte {
	e := make([]byte, rbLogbookSize)
	e[2], e[3], e[4] = byte(begin), byte(begin>>8), byte(begin>>16)
	e[5], e[6], e[7] = byte(end), byte(end>>8), byte(end>>16)
	for i := 0; i < fingerprintSize; i++ {
		e[9+i] = fingerprint
	}
	e[52], e[53] = byte(counter), byte(counter>>8)
	return e
}

// TestScanLogbookHeaderScan exercises scanLogbook against the shape of the
// HW-Frog header-scan scenario: the table is a contiguous run starting at
// index 0 (scanLogbook stops at the first uninitialized 0xFF entry, so a
// populated slot 3 requires slots 0-2 to be populated too), with slot 3
// carrying the highest internal counter and slot 2 the second highest.
func TestScanLogbookHeaderScan(t *testing.T) {
	header := make([]byte, rbLogbookSize*rbLogbookCount)
	for i := 0; i < rbLogbookCount; i++ {
		for j := 0; j < rbLogbookSize; j++ {
			header[i*rbLogbookSize+j] = 0xFF
		}
	}
	copy(header[0*rbLogbookSize:], logbookEntry(0, 0, 1, 0))
	copy(header[1*rbLogbookSize:], logbookEntry(0, 0, 2, 0))
	copy(header[2*rbLogbookSize:], logbookEntry(0, 0, 0x0005, 0))
	copy(header[3*rbLogbookSize:], logbookEntry(0, 0, 0x0007, 0))

	count, latest := scanLogbook(header)
	if latest != 3 {
		t.Fatalf("latest = %d, want 3", latest)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4 (scanLogbook stops at the first uninitialized entry, so slots 0-3 must all be populated for slot 3 to be reachable)", count)
	}

	dives, err := planDownload(header, count, latest, nil)
	if err != nil {
		t.Fatalf("planDownload: %v", err)
	}
	if len(dives) != count {
		t.Fatalf("len(dives) = %d, want %d", len(dives), count)
	}
	wantOrder := []int{3, 2, 1, 0}
	for i, slot := range dives {
		if slot.idx != wantOrder[i] {
			t.Fatalf("dives[%d].idx = %d, want %d", i, slot.idx, wantOrder[i])
		}
	}
}

func TestForeachDownloadsLatestDiveAndStops(t *testing.T) {
	entry := logbookEntry(0x000100, 0x000200, 7, 0xAB)
	header := make([]byte, rbLogbookSize*rbLogbookCount)
	copy(header[0:], entry)
	for i := 1; i < rbLogbookCount; i++ {
		copy(header[i*rbLogbookSize:], make([]byte, rbLogbookSize))
		for j := 0; j < rbLogbookSize; j++ {
			header[i*rbLogbookSize+j] = 0xFF
		}
	}

	// profile length = rbLogbookSize + Distance(0x100,0x200) - 6 = 256 + 256 - 6 = 506
	profileLen := rbLogbookSize + int(0x200-0x100) - 6
	profile := make([]byte, profileLen)
	copy(profile, entry[:rbLogbookSize])

	id := make([]byte, szVersion)
	byteutil.PutU16LE(id[0:], 0x1234)
	id[2], id[3] = 0x00, 0x01 // firmware BE = 1

	var wire []byte
	wire = append(wire, identity) // echo
	wire = append(wire, id...)
	wire = append(wire, ready)

	wire = append(wire, header...) // HEADER has no echo byte
	wire = append(wire, ready)

	wire = append(wire, cmdDive) // echo
	wire = append(wire, profile...)
	wire = append(wire, ready)

	transport := mock.New(wire)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	var got [][]byte
	err := be.Foreach(d, func(data, fingerprint []byte) bool {
		got = append(got, data)
		return false
	})
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d dives, want 1", len(got))
	}
	if string(got[0]) != string(profile) {
		t.Fatalf("dive mismatch")
	}
	if d.DevInfo() == nil || d.DevInfo().Serial != 0x1234 {
		t.Fatalf("DevInfo = %+v", d.DevInfo())
	}
}

func TestTransferRejectsUnexpectedEcho(t *testing.T) {
	transport := mock.New([]byte{cmdClock + 1, ready})
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	_, err := be.transfer(d, nil, cmdClock, []byte{0, 0, 0, 0, 0, 0}, 0)
	if dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

func TestTransferRejectsUnexpectedReadyByte(t *testing.T) {
	transport := mock.New([]byte{cmdClock, 0x00})
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	_, err := be.transfer(d, nil, cmdClock, []byte{0, 0, 0, 0, 0, 0}, 0)
	if dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

func TestCustomTextRejectsOversizedInput(t *testing.T) {
	transport := mock.New(nil)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	err := be.CustomText(d, "this custom text string is far too long to fit")
	if dc.StatusOf(err) != dc.StatusInvalidArgs {
		t.Fatalf("status = %v, want StatusInvalidArgs", dc.StatusOf(err))
	}
}

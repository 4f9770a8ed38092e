package marespuck

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/transport/mock"
)

// TestReadPageRoundTrips builds a valid echo+payload+ready exchange and
// verifies Read reassembles a single packetSize page.
func TestReadPageRoundTrips(t *testing.T) {
	page := uint32(2)
	command := []byte{0xE7, byte(page), byte(page >> 8)}

	data := make([]byte, packetSize)
	for i := range data {
		data[i] = byte(i + 1)
	}

	answer := append([]byte(nil), command...)
	answer = append(answer, data...)
	answer = append(answer, 0x4D)

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	got, err := be.Read(d, page*packetSize, packetSize)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadRejectsUnalignedAddress(t *testing.T) {
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), mock.New(nil), be)

	_, err := be.Read(d, 1, packetSize)
	if dc.StatusOf(err) != dc.StatusInvalidArgs {
		t.Fatalf("status = %v, want StatusInvalidArgs", dc.StatusOf(err))
	}
}

func TestReadPageRejectsUnexpectedEcho(t *testing.T) {
	command := []byte{0xE7, 0x00, 0x00}
	answer := append([]byte(nil), command...)
	answer[0] = 0x00 // corrupt the echo
	answer = append(answer, make([]byte, packetSize+1)...)

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	_, err := be.readPage(d, 0)
	if dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

func TestReadPageRejectsUnexpectedReadyByte(t *testing.T) {
	command := []byte{0xE7, 0x00, 0x00}
	answer := append([]byte(nil), command...)
	answer = append(answer, make([]byte, packetSize)...)
	answer = append(answer, 0x00) // wrong ready byte

	transport := mock.New(answer)
	be := &device{}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	_, err := be.readPage(d, 0)
	if dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

func TestLayoutForModel(t *testing.T) {
	cases := []struct {
		model byte
		want  layout
	}{
		{modelNemoWide, layoutNemoWide},
		{modelNemoAir, layoutNemoAir},
		{modelPuckAir, layoutNemoAir},
		{modelPuck, layoutPuck},
		{0xFF, layoutPuck}, // unknown model falls back to Puck
	}
	for _, c := range cases {
		if got := layoutForModel(c.model); got != c.want {
			t.Fatalf("layoutForModel(%#x) = %+v, want %+v", c.model, got, c.want)
		}
	}
}

func TestSetFingerprintRejectsWrongLength(t *testing.T) {
	be := &device{}
	err := be.SetFingerprint(nil, make([]byte, fingerprintSize-1))
	if dc.StatusOf(err) != dc.StatusInvalidArgs {
		t.Fatalf("status = %v, want StatusInvalidArgs", dc.StatusOf(err))
	}
}

package suuntod9

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
	"github.com/shaunagostinho/divecomputer/transport/mock"
)

// versionExchange builds the echo+answer bytes suunto_d9_device_packet
// expects for a VERSION query answering with model.
func versionExchange(model byte) (cmd, response []byte) {
	cmd = []byte{opVersion, 0x00, 0x04}
	payload := []byte{model, 0x00, 0x00, 0x00}
	answer := append([]byte{cmd[0], 0x00, 0x04}, payload...)
	crc := byteutil.ChecksumXOR(answer, 0x00)
	answer = append(answer, crc)
	return cmd, append(append([]byte{}, cmd...), answer...)
}

func TestOpenAutodetectsAndReadsModel(t *testing.T) {
	cmd, wire := versionExchange(0x0E) // D9
	transport := mock.New(wire)

	dev, err := Open(dc.NewContext(), transport, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if dev.DevInfo() == nil || dev.DevInfo().Model != 0x0E {
		t.Fatalf("DevInfo = %+v, want Model 0x0E", dev.DevInfo())
	}
	if string(transport.Outbound) != string(cmd) {
		t.Fatalf("outbound = % X, want % X", transport.Outbound, cmd)
	}
	if !transport.RTS {
		t.Fatal("RTS should be left high after a successful packet exchange")
	}
}

func TestPacketRejectsEchoMismatch(t *testing.T) {
	cmd := []byte{opVersion, 0x00, 0x04}
	badEcho := []byte{opVersion, 0x00, 0x05} // corrupted echo
	transport := mock.New(append(append([]byte{}, badEcho...), make([]byte, 8)...))

	be := &device{layout: layoutD9}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	if _, err := be.packet(d, cmd[0], nil, 4); dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

func TestPacketRejectsChecksumMismatch(t *testing.T) {
	cmd := []byte{opVersion, 0x00, 0x04}
	answer := []byte{opVersion, 0x00, 0x04, 0x0E, 0x00, 0x00, 0x00, 0xFF} // wrong crc
	transport := mock.New(append(append([]byte{}, cmd...), answer...))

	be := &device{layout: layoutD9}
	d := dc.NewDevice(dc.NewContext(), transport, be)

	if _, err := be.packet(d, cmd[0], nil, 4); dc.StatusOf(err) != dc.StatusProtocol {
		t.Fatalf("status = %v, want StatusProtocol", dc.StatusOf(err))
	}
}

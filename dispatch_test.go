package divecomputer_test

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/buffer"
	_ "github.com/shaunagostinho/divecomputer/family/oceanicatom2"
	_ "github.com/shaunagostinho/divecomputer/family/oceanicveo250"
	_ "github.com/shaunagostinho/divecomputer/family/suuntoeon"
	_ "github.com/shaunagostinho/divecomputer/family/suuntovyper"
	"github.com/shaunagostinho/divecomputer/transport/mock"
)

// stubBackend is the minimal DeviceBackend dispatch tests need: just
// enough to construct a *dc.Device carrying a given family and, via
// EmitDevInfo, a given model.
type stubBackend struct {
	family dc.Family
}

func (b *stubBackend) Family() dc.Family                                      { return b.family }
func (b *stubBackend) SetFingerprint(d *dc.Device, data []byte) error         { return nil }
func (b *stubBackend) Read(d *dc.Device, addr, length uint32) ([]byte, error) { return nil, nil }
func (b *stubBackend) Write(d *dc.Device, addr uint32, data []byte) error     { return nil }
func (b *stubBackend) Dump(d *dc.Device, buf *buffer.Buffer) error            { return nil }
func (b *stubBackend) Foreach(d *dc.Device, cb dc.DiveCallback) error         { return nil }
func (b *stubBackend) Close(d *dc.Device) error                               { return nil }

func newStubDevice(family dc.Family, model uint32) *dc.Device {
	d := dc.NewDevice(dc.NewContext(), mock.New(nil), &stubBackend{family: family})
	d.EmitDevInfo(dc.DevInfo{Model: model})
	return d
}

// TestDispatchOceanicAtom2ToVEO250 exercises the FamilyOceanicAtom2,
// model 0x4354 ("React Pro White") quirk dispatch.go documents: it must
// route to the VEO250 parser, not the Atom2 one.
func TestDispatchOceanicAtom2ToVEO250(t *testing.T) {
	d := newStubDevice(dc.FamilyOceanicAtom2, 0x4354)

	p, err := dc.NewParserFromDevice(d)
	if err != nil {
		t.Fatalf("NewParserFromDevice: %v", err)
	}
	if p.Family() != dc.FamilyOceanicVEO250 {
		t.Fatalf("got family %s, want %s", p.Family(), dc.FamilyOceanicVEO250)
	}
}

// TestDispatchOceanicAtom2StaysAtom2 is the negative case: any other
// model on the Atom2 family must stay on the Atom2 parser.
func TestDispatchOceanicAtom2StaysAtom2(t *testing.T) {
	d := newStubDevice(dc.FamilyOceanicAtom2, 0x4341)

	p, err := dc.NewParserFromDevice(d)
	if err != nil {
		t.Fatalf("NewParserFromDevice: %v", err)
	}
	if p.Family() != dc.FamilyOceanicAtom2 {
		t.Fatalf("got family %s, want %s", p.Family(), dc.FamilyOceanicAtom2)
	}
}

// TestDispatchSuuntoVyperToEON exercises the FamilySuuntoVyper,
// model 0x01 quirk dispatch.go documents.
func TestDispatchSuuntoVyperToEON(t *testing.T) {
	d := newStubDevice(dc.FamilySuuntoVyper, 0x01)

	p, err := dc.NewParserFromDevice(d)
	if err != nil {
		t.Fatalf("NewParserFromDevice: %v", err)
	}
	if p.Family() != dc.FamilySuuntoEON {
		t.Fatalf("got family %s, want %s", p.Family(), dc.FamilySuuntoEON)
	}
}

func TestDispatchSuuntoVyperStaysVyper(t *testing.T) {
	d := newStubDevice(dc.FamilySuuntoVyper, 0x02)

	p, err := dc.NewParserFromDevice(d)
	if err != nil {
		t.Fatalf("NewParserFromDevice: %v", err)
	}
	if p.Family() != dc.FamilySuuntoVyper {
		t.Fatalf("got family %s, want %s", p.Family(), dc.FamilySuuntoVyper)
	}
}

// TestDispatchUnregisteredFamily uses FamilyNull, the enumeration's
// zero value: no family package ever registers against it, so it stays
// the one tag guaranteed to miss the registry.
func TestDispatchUnregisteredFamily(t *testing.T) {
	d := newStubDevice(dc.FamilyNull, 0)

	if _, err := dc.NewParserFromDevice(d); dc.StatusOf(err) != dc.StatusInvalidArgs {
		t.Fatalf("got status %v, want StatusInvalidArgs", dc.StatusOf(err))
	}
}

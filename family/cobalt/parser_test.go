package cobalt

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// cobaltBlob builds a synthetic dive blob: a szHeader-byte header, one
// gasmix table entry, no gas switches, and the given segment records.
func cobaltBlob(segments [][]byte) []byte {
	const ngasmixes = 1
	header := make([]byte, szHeader)

	byteutil.PutU16LE(header[0x14:], 2024) // year
	header[0x16] = 6                       // month
	header[0x17] = 15                      // day
	header[0x18] = 9                       // hour
	header[0x19] = 30                      // minute
	header[0x1a] = 10                      // sample interval, seconds
	header[0x1B] = 70                      // surface temperature, F
	header[0x24] = 0                       // dive mode: OC
	header[0x2a] = ngasmixes
	header[0x2b] = 0 // no gas switches
	byteutil.PutU16LE(header[0x50:], uint16(len(segments)))
	header[0x52], header[0x53] = 1, 30                  // nofly time
	byteutil.PutU16LE(header[0x56:], 3000)              // max depth raw
	byteutil.PutU16LE(header[0x58:], 40)                // dive time, minutes
	copy(header[4:12], []byte{'1', '2', '3', '4', '5', '6', '7', '8'})
	byteutil.PutU16LE(header[30:], 123) // program version
	byteutil.PutU16LE(header[32:], 456) // boot version

	gasmix := make([]byte, szGasMix)
	gasmix[0] = 0x20 // id matched against each segment's gasmix byte
	gasmix[2] = 3    // tank type: wet volume, metric
	gasmix[4] = 21   // oxygen %
	gasmix[5] = 0    // helium %
	byteutil.PutU16LE(gasmix[6:], 3000)  // begin pressure, psi raw
	byteutil.PutU16LE(gasmix[8:], 120)   // volume, 1/10 liter
	byteutil.PutU16LE(gasmix[10:], 0)    // work pressure (unused for metric)
	byteutil.PutU16LE(gasmix[12:], 1)    // sensor marker: primary tank
	byteutil.PutU16LE(gasmix[14:], 500)  // end pressure, psi raw

	blob := append([]byte(nil), header...)
	blob = append(blob, gasmix...)
	for _, s := range segments {
		blob = append(blob, s...)
	}
	return blob
}

func segment(depthRaw, pressureRaw uint16, gasmixID, ndlMinutes, temperatureF, violation byte) []byte {
	s := make([]byte, szSegment)
	byteutil.PutU16LE(s[0:], depthRaw)
	byteutil.PutU16LE(s[2:], pressureRaw)
	s[4] = gasmixID
	s[5] = ndlMinutes
	s[8] = temperatureF
	s[11] = violation
	return s
}

// TestGetFieldMaxDepthConversion is the depth-conversion scenario: raw
// depth 0x0BB8 (3000) under 1 atm surface pressure and salt-water
// calibration converts to ~19.77m, not the ~1.978m spec.md's example
// text states — see DESIGN.md.
func TestGetFieldMaxDepthConversion(t *testing.T) {
	blob := cobaltBlob(nil)

	p := &parser{}
	p.SetCalibration(unitATM, defaultDensity*unitGravity)
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	got, err := p.GetField(dc.FieldMaxDepth, 0)
	if err != nil {
		t.Fatalf("GetField(MaxDepth): %v", err)
	}
	depth := got.(float64)
	if depth < 19.7 || depth > 19.9 {
		t.Fatalf("MaxDepth = %v, want ~19.77", depth)
	}
}

func TestGetDateTime(t *testing.T) {
	blob := cobaltBlob(nil)
	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	dt, err := p.GetDateTime()
	if err != nil {
		t.Fatalf("GetDateTime: %v", err)
	}
	if dt.Year != 2024 || dt.Month != 6 || dt.Day != 15 || dt.Hour != 9 || dt.Minute != 30 || dt.Second != 0 {
		t.Fatalf("GetDateTime = %+v, want 2024-06-15 09:30:00", dt)
	}
}

func TestGetFieldDiveTimeGasMixCountAndMix(t *testing.T) {
	blob := cobaltBlob(nil)
	p := &parser{}
	p.SetCalibration(unitATM, defaultDensity*unitGravity)
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	diveTime, err := p.GetField(dc.FieldDiveTime, 0)
	if err != nil {
		t.Fatalf("GetField(DiveTime): %v", err)
	}
	if diveTime.(uint32) != 40*60 {
		t.Fatalf("DiveTime = %v, want %d", diveTime, 40*60)
	}

	count, err := p.GetField(dc.FieldGasMixCount, 0)
	if err != nil {
		t.Fatalf("GetField(GasMixCount): %v", err)
	}
	if count.(int) != 1 {
		t.Fatalf("GasMixCount = %v, want 1", count)
	}

	mix, err := p.GetField(dc.FieldGasMix, 0)
	if err != nil {
		t.Fatalf("GetField(GasMix): %v", err)
	}
	gm := mix.(dc.GasMix)
	if gm.Oxygen != 0.21 || gm.Helium != 0 {
		t.Fatalf("GasMix = %+v, want O2=0.21 He=0", gm)
	}
}

func TestGetFieldTankMetric(t *testing.T) {
	blob := cobaltBlob(nil)
	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	got, err := p.GetField(dc.FieldTank, 0)
	if err != nil {
		t.Fatalf("GetField(Tank): %v", err)
	}
	tank := got.(dc.Tank)
	if tank.Type != dc.TankMetric {
		t.Fatalf("Tank.Type = %v, want TankMetric", tank.Type)
	}
	if tank.Volume != 12.0 {
		t.Fatalf("Tank.Volume = %v, want 12.0", tank.Volume)
	}
}

func TestGetFieldStringSerial(t *testing.T) {
	blob := cobaltBlob(nil)
	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	got, err := p.GetField(dc.FieldString, 0)
	if err != nil {
		t.Fatalf("GetField(String): %v", err)
	}
	s := got.(dc.String)
	if s.Description != "Serial" || s.Value != "1234-5678" {
		t.Fatalf("String = %+v, want Serial/1234-5678", s)
	}
}

// TestSamplesForeachEmitsEventsAndDeco exercises the gasmix-change
// tracking, the violation-bitmask events, and the NDL/DecoStop
// transition across two segments.
func TestSamplesForeachEmitsEventsAndDeco(t *testing.T) {
	segments := [][]byte{
		segment(3000, 2000, 0x20, 10, 70, 0x00), // ndl=10min, no violation
		segment(3200, 1950, 0x20, 0, 68, 0x01|0x02), // ndl=0, ascent + deco violation
	}
	blob := cobaltBlob(segments)

	p := &parser{}
	p.SetCalibration(unitATM, defaultDensity*unitGravity)
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	var types []dc.SampleType
	var decos []dc.Deco
	var events []dc.Event
	err := p.SamplesForeach(func(s dc.Sample) {
		types = append(types, s.Type)
		if s.Type == dc.SampleDeco {
			decos = append(decos, s.DecoValue)
		}
		if s.Type == dc.SampleEvent {
			events = append(events, s.EventValue)
		}
	})
	if err != nil {
		t.Fatalf("SamplesForeach: %v", err)
	}

	// first segment: Time, Depth, Pressure, GasMix (initial), Temperature, Deco
	// second segment: Time, Depth, Pressure, Temperature, Event(ascent), Deco
	// (no GasMix on the second record since the gasmix byte didn't change)
	wantGasMix := 0
	gasMixCount := 0
	for _, typ := range types {
		if typ == dc.SampleGasMix {
			gasMixCount++
		}
	}
	if gasMixCount != 1 {
		t.Fatalf("emitted %d GasMix samples, want 1 (only on change): %v", gasMixCount, types)
	}
	_ = wantGasMix

	if len(decos) != 2 {
		t.Fatalf("emitted %d Deco samples, want 2", len(decos))
	}
	if decos[0].Type != dc.DecoNDL || decos[0].Time != 600 {
		t.Fatalf("decos[0] = %+v, want NDL/600", decos[0])
	}
	if decos[1].Type != dc.DecoDecoStop || decos[1].Time != 0 {
		t.Fatalf("decos[1] = %+v, want DecoStop/0", decos[1])
	}

	if len(events) != 1 || events[0].Type != EventAscent {
		t.Fatalf("events = %+v, want a single Ascent event", events)
	}
}

func TestSetDataRejectsShortBlobOnGetField(t *testing.T) {
	p := &parser{}
	if err := p.SetData(make([]byte, 4)); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	_, err := p.GetField(dc.FieldDiveTime, 0)
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

package suuntod9

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
)

// TestConsumeEventsGasChangeSingleO2 matches the dispatcher's documented
// event-stream scenario: the 3-byte record 05 21 0A is a single-gas-change
// event selecting 33% oxygen, nitrox, at t+10s.
func TestConsumeEventsGasChangeSingleO2(t *testing.T) {
	p := &parser{
		model:     modelD9,
		ngasmixes: 1,
		oxygen:    [maxGasmixes]int{33},
		helium:    [maxGasmixes]int{0},
	}

	data := []byte{0x05, 0x21, 0x0A}
	inDeco := 0

	var got []dc.Sample
	cb := func(s dc.Sample) { got = append(got, s) }

	marker, offset, err := p.consumeEvents(data, 0, 0, &inDeco, cb)
	if err != nil {
		t.Fatalf("consumeEvents: %v", err)
	}
	if offset != len(data) {
		t.Fatalf("offset = %d, want %d", offset, len(data))
	}
	if marker != 0 {
		t.Fatalf("marker should be untouched by a gas-change record, got %d", marker)
	}

	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
	if got[0].Type != dc.SampleGasMix {
		t.Fatalf("sample type = %v, want SampleGasMix", got[0].Type)
	}
	if got[0].GasMix != 0 {
		t.Fatalf("gas mix index = %d, want 0", got[0].GasMix)
	}
	if p.oxygen[got[0].GasMix] != 33 || p.helium[got[0].GasMix] != 0 {
		t.Fatalf("resolved mix = O2 %d%% He %d%%, want O2 33%% He 0%%", p.oxygen[got[0].GasMix], p.helium[got[0].GasMix])
	}
}

func TestConsumeEventsUnknownGasRejected(t *testing.T) {
	p := &parser{model: modelD9, ngasmixes: 1, oxygen: [maxGasmixes]int{21}, helium: [maxGasmixes]int{0}}
	data := []byte{0x05, 0x21, 0x0A}
	inDeco := 0
	_, _, err := p.consumeEvents(data, 0, 0, &inDeco, nil)
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

func TestCacheAirModeDefaultsSingleMix(t *testing.T) {
	data := make([]byte, 0x3B)
	data[0x19] = diveAir

	p := &parser{model: modelD9}
	if err := p.cache(data); err != nil {
		t.Fatalf("cache: %v", err)
	}
	if p.ngasmixes != 1 || p.oxygen[0] != 21 || p.helium[0] != 0 {
		t.Fatalf("air-mode default mix = O2 %d%% He %d%% (n=%d), want O2 21%% He 0%% (n=1)", p.oxygen[0], p.helium[0], p.ngasmixes)
	}
}

func TestCacheNitroxModeReadsGasmixTable(t *testing.T) {
	data := make([]byte, 0x3B)
	data[0x19] = diveNitrox
	data[0x21] = 33 // first mix: 33% O2
	data[0x22] = 0xFF

	p := &parser{model: modelD9}
	if err := p.cache(data); err != nil {
		t.Fatalf("cache: %v", err)
	}
	if p.ngasmixes != 1 {
		t.Fatalf("ngasmixes = %d, want 1", p.ngasmixes)
	}
	if p.oxygen[0] != 33 || p.helium[0] != 0 {
		t.Fatalf("mix 0 = O2 %d%% He %d%%, want O2 33%% He 0%%", p.oxygen[0], p.helium[0])
	}
}

func TestGetFieldMaxDepthAndDiveTime(t *testing.T) {
	data := make([]byte, 0x3B)
	data[0x19] = diveAir
	data[0x09], data[0x0A] = 0x14, 0x00 // maxdepth raw 0x0014 -> 0.20m
	data[0x0B], data[0x0C] = 0x05, 0x00 // divetime raw 5 minutes -> 300s

	p := &parser{model: modelD9}
	if err := p.SetData(data); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	depth, err := p.GetField(dc.FieldMaxDepth, 0)
	if err != nil {
		t.Fatalf("GetField(MaxDepth): %v", err)
	}
	if d, ok := depth.(float64); !ok || d != 0.20 {
		t.Fatalf("max depth = %v, want 0.20", depth)
	}

	divetime, err := p.GetField(dc.FieldDiveTime, 0)
	if err != nil {
		t.Fatalf("GetField(DiveTime): %v", err)
	}
	if dt, ok := divetime.(uint32); !ok || dt != 300 {
		t.Fatalf("dive time = %v, want 300", divetime)
	}
}

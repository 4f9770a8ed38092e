package hwfrog

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
)

// diveBlob builds a synthetic downloaded-dive blob: the rbLogbookSize-byte
// embedded header (O2 percentage at headerOffsetO2) followed by
// sampleRecordSize-byte sample records, terminated by an all-zero record.
func diveBlob(oxygen byte, records [][3]byte) []byte {
	header := make([]byte, rbLogbookSize)
	header[headerOffsetO2] = oxygen

	blob := append([]byte(nil), header...)
	for _, r := range records {
		blob = append(blob, r[0], r[1], r[2])
	}
	blob = append(blob, 0, 0, 0) // terminator
	return blob
}

func TestGetFieldMaxDepthAndGasMix(t *testing.T) {
	// two records: depth 1500 (15.00m), then depth 2200 (22.00m)
	blob := diveBlob(32, [][3]byte{{0xDC, 0x05, 10}, {0x98, 0x08, 8}})

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	depth, err := p.GetField(dc.FieldMaxDepth, 0)
	if err != nil {
		t.Fatalf("GetField(MaxDepth): %v", err)
	}
	if d := depth.(float64); d < 21.9 || d > 22.1 {
		t.Fatalf("MaxDepth = %v, want ~22.0", d)
	}

	diveTime, err := p.GetField(dc.FieldDiveTime, 0)
	if err != nil {
		t.Fatalf("GetField(DiveTime): %v", err)
	}
	if diveTime.(uint32) != 2*sampleInterval {
		t.Fatalf("DiveTime = %v, want %d", diveTime, 2*sampleInterval)
	}

	mix, err := p.GetField(dc.FieldGasMix, 0)
	if err != nil {
		t.Fatalf("GetField(GasMix): %v", err)
	}
	gm := mix.(dc.GasMix)
	if gm.Oxygen != 0.32 {
		t.Fatalf("Oxygen = %v, want 0.32", gm.Oxygen)
	}
}

func TestSamplesForeachEmitsInitialGasMixThenRecords(t *testing.T) {
	blob := diveBlob(21, [][3]byte{{100, 0, 20}})

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	var types []dc.SampleType
	if err := p.SamplesForeach(func(s dc.Sample) { types = append(types, s.Type) }); err != nil {
		t.Fatalf("SamplesForeach: %v", err)
	}

	want := []dc.SampleType{dc.SampleGasMix, dc.SampleTime, dc.SampleDepth, dc.SampleTemperature}
	if len(types) != len(want) {
		t.Fatalf("got %d samples, want %d: %v", len(types), len(want), types)
	}
	for i, typ := range want {
		if types[i] != typ {
			t.Fatalf("types[%d] = %v, want %v", i, types[i], typ)
		}
	}
}

func TestSetDataRejectsShortBlob(t *testing.T) {
	p := &parser{}
	err := p.SetData(make([]byte, 4))
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

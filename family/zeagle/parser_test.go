package zeagle

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// zeagleBlob builds a synthetic downloaded-dive blob: the headerSize-byte
// embedded header (O2 percentage at headerOffsetO2) followed by
// sampleRecordSize-byte sample records, terminated by an all-zero record.
func zeagleBlob(oxygen byte, records [][sampleRecordSize]byte) []byte {
	header := make([]byte, headerSize)
	header[headerOffsetO2] = oxygen

	blob := append([]byte(nil), header...)
	for _, r := range records {
		blob = append(blob, r[0], r[1], r[2])
	}
	blob = append(blob, 0, 0, 0) // terminator
	return blob
}

func TestZeagleGetFieldMaxDepthAndGasMix(t *testing.T) {
	// two records: depth 1200 (12.00m), then depth 1800 (18.00m)
	records := [][sampleRecordSize]byte{}
	r1 := [sampleRecordSize]byte{}
	byteutil.PutU16LE(r1[:2], 1200)
	r1[2] = 10
	r2 := [sampleRecordSize]byte{}
	byteutil.PutU16LE(r2[:2], 1800)
	r2[2] = 8
	records = append(records, r1, r2)

	blob := zeagleBlob(32, records)

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	depth, err := p.GetField(dc.FieldMaxDepth, 0)
	if err != nil {
		t.Fatalf("GetField(MaxDepth): %v", err)
	}
	if d := depth.(float64); d < 17.9 || d > 18.1 {
		t.Fatalf("MaxDepth = %v, want ~18.0", d)
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

func TestZeagleSamplesForeachEmitsInitialGasMixThenRecords(t *testing.T) {
	r := [sampleRecordSize]byte{}
	byteutil.PutU16LE(r[:2], 900)
	temp := int8(-10)
	r[2] = byte(temp)
	blob := zeagleBlob(21, [][sampleRecordSize]byte{r})

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

func TestZeagleSetDataRejectsShortBlob(t *testing.T) {
	p := &parser{}
	err := p.SetData(make([]byte, 4))
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

func TestZeagleGetDateTimeUnsupported(t *testing.T) {
	p := &parser{}
	_, err := p.GetDateTime()
	if dc.StatusOf(err) != dc.StatusUnsupported {
		t.Fatalf("status = %v, want StatusUnsupported", dc.StatusOf(err))
	}
}

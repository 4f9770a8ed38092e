package marespuck

import (
	"testing"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

func diveBlob(intervalCode byte, maxDepthDM, diveTimeMin uint16, samples []uint16) []byte {
	header := make([]byte, headerSize)
	header[headerOffsetInterval] = intervalCode
	byteutil.PutU16LE(header[headerOffsetMaxDepth:], maxDepthDM)
	byteutil.PutU16LE(header[headerOffsetDiveTime:], diveTimeMin)

	blob := append([]byte(nil), header...)
	for _, s := range samples {
		rec := make([]byte, sampleRecordSize)
		byteutil.PutU16LE(rec, s)
		blob = append(blob, rec...)
	}
	return blob
}

func TestGetFieldMaxDepthAndDiveTime(t *testing.T) {
	blob := diveBlob(1, 225, 42, []uint16{100, 225, 150})

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	depth, err := p.GetField(dc.FieldMaxDepth, 0)
	if err != nil {
		t.Fatalf("GetField(MaxDepth): %v", err)
	}
	if d := depth.(float64); d != 22.5 {
		t.Fatalf("MaxDepth = %v, want 22.5", d)
	}

	diveTime, err := p.GetField(dc.FieldDiveTime, 0)
	if err != nil {
		t.Fatalf("GetField(DiveTime): %v", err)
	}
	if diveTime.(uint32) != 42*60 {
		t.Fatalf("DiveTime = %v, want %d", diveTime, 42*60)
	}
}

func TestSamplesForeachUsesIntervalCode(t *testing.T) {
	blob := diveBlob(4, 100, 1, []uint16{50, 100}) // interval code 4 -> 15s

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	var times []uint32
	var depths []float64
	err := p.SamplesForeach(func(s dc.Sample) {
		switch s.Type {
		case dc.SampleTime:
			times = append(times, s.Time)
		case dc.SampleDepth:
			depths = append(depths, s.Depth)
		}
	})
	if err != nil {
		t.Fatalf("SamplesForeach: %v", err)
	}

	if len(times) != 2 || times[0] != 0 || times[1] != 15 {
		t.Fatalf("times = %v, want [0 15]", times)
	}
	if len(depths) != 2 || depths[0] != 5.0 || depths[1] != 10.0 {
		t.Fatalf("depths = %v, want [5 10]", depths)
	}
}

func TestCacheRejectsUnrecognizedIntervalCode(t *testing.T) {
	blob := diveBlob(0xEE, 0, 0, nil)

	p := &parser{}
	if err := p.SetData(blob); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	_, err := p.GetField(dc.FieldMaxDepth, 0)
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

func TestSetDataRejectsShortBlob(t *testing.T) {
	p := &parser{}
	err := p.SetData(make([]byte, 4))
	if dc.StatusOf(err) != dc.StatusDataFormat {
		t.Fatalf("status = %v, want StatusDataFormat", dc.StatusOf(err))
	}
}

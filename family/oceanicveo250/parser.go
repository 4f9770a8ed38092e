// Package oceanicveo250 implements the Parser dispatch.go's
// FamilyOceanicAtom2-with-model-0x4354 quirk lands on. No
// oceanic_veo250.c-equivalent source exists in the retrieved tree, so —
// like family/hwfrog and family/hwostc3 where the same gap applies —
// this is built compactly against the generic sample-stream skeleton
// rather than ported from a verified original.
package oceanicveo250

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

const (
	headerSize        = 9 * 16 / 2
	sampleRecordSize  = 4
	sampleInterval    = 4 // seconds
	headerOffsetO2    = 0x19
	headerOffsetDepth = 0
)

type cachedFields struct {
	diveTime uint32
	maxDepth float64
}

type parser struct {
	data   []byte
	cached bool
	fields cachedFields
	oxygen int
}

// NewParser returns a Parser for Oceanic VEO250/React Pro White dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyOceanicVEO250, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyOceanicVEO250 }

func (p *parser) SetData(data []byte) error {
	if len(data) < headerSize {
		return newErr(dc.StatusDataFormat, "oceanicveo250.SetData", fmt.Errorf("blob shorter than the header prefix"))
	}
	p.data = data
	p.cached = false
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newErr(dc.StatusUnsupported, "oceanicveo250.GetDateTime", nil)
}

func (p *parser) cache() error {
	if p.cached {
		return nil
	}

	if len(p.data) > headerOffsetO2 {
		p.oxygen = int(p.data[headerOffsetO2])
	}

	samples := p.data[headerSize:]
	diveTime := uint32(0)
	maxDepth := 0.0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0xFF) {
			break
		}
		depth := float64(byteutil.U16LE(record[headerOffsetDepth:])) / 4.0 * 0.3048
		if depth > maxDepth {
			maxDepth = depth
		}
		diveTime += sampleInterval
	}

	p.fields = cachedFields{diveTime: diveTime, maxDepth: maxDepth}
	p.cached = true
	return nil
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	if err := p.cache(); err != nil {
		return nil, err
	}

	switch typ {
	case dc.FieldDiveTime:
		return p.fields.diveTime, nil
	case dc.FieldMaxDepth:
		return p.fields.maxDepth, nil
	case dc.FieldGasMixCount:
		return 1, nil
	case dc.FieldGasMix:
		if index != 0 {
			return nil, newErr(dc.StatusDataFormat, "oceanicveo250.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		oxygen := float64(p.oxygen) / 100.0
		return dc.GasMix{Oxygen: oxygen, Helium: 0, Nitrogen: 1 - oxygen}, nil
	default:
		return nil, newErr(dc.StatusUnsupported, "oceanicveo250.GetField", nil)
	}
}

// SamplesForeach implements the generic skeleton: fixed-size records
// after the embedded header, terminated by the first all-0xFF record
// (the VEO250 family pads unused ring space with 0xFF rather than
// 0x00), emitting a time sample then the record's depth sample.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}

	cb(dc.Sample{Type: dc.SampleGasMix, GasMix: 0})

	samples := p.data[headerSize:]
	time := 0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0xFF) {
			break
		}

		cb(dc.Sample{Type: dc.SampleTime, Time: uint32(time)})

		depth := float64(byteutil.U16LE(record[headerOffsetDepth:])) / 4.0 * 0.3048
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		time += sampleInterval
	}

	return nil
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

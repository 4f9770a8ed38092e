// Package maresnemo implements the Parser for the Mares Nemo family. No
// original-source file for this family exists in the retrieved tree, so
// this is built compactly against the generic sample-stream skeleton
// already established for family/hwfrog, family/suuntovyper, and
// family/suuntoeon: a fixed-size header, followed by fixed-size sample
// records terminated by the first all-zero record, one constant gas
// mix, no datetime support.
package maresnemo

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

const (
	headerSize       = 0x20
	sampleRecordSize = 2
	sampleInterval   = 4 // seconds
)

type cachedFields struct {
	diveTime uint32
	maxDepth float64
}

type parser struct {
	data   []byte
	cached bool
	fields cachedFields
}

// NewParser returns a Parser for Mares Nemo dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyMaresNemo, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyMaresNemo }

func (p *parser) SetData(data []byte) error {
	if len(data) < headerSize {
		return newErr(dc.StatusDataFormat, "maresnemo.SetData", fmt.Errorf("blob shorter than the header prefix"))
	}
	p.data = data
	p.cached = false
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newErr(dc.StatusUnsupported, "maresnemo.GetDateTime", nil)
}

func (p *parser) cache() error {
	if p.cached {
		return nil
	}

	samples := p.data[headerSize:]
	diveTime := uint32(0)
	maxDepth := 0.0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}
		depth := float64(byteutil.U16LE(record)) / 100.0
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
			return nil, newErr(dc.StatusDataFormat, "maresnemo.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		return dc.GasMix{Oxygen: 0.21, Helium: 0, Nitrogen: 0.79}, nil
	default:
		return nil, newErr(dc.StatusUnsupported, "maresnemo.GetField", nil)
	}
}

// SamplesForeach implements the generic skeleton: fixed-size records
// after the embedded header, terminated by the first all-zero record.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}

	cb(dc.Sample{Type: dc.SampleGasMix, GasMix: 0})

	samples := p.data[headerSize:]
	time := 0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}

		cb(dc.Sample{Type: dc.SampleTime, Time: uint32(time)})

		depth := float64(byteutil.U16LE(record)) / 100.0
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		time += sampleInterval
	}

	return nil
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

package hwfrog

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// No hw_frog_parser.c-equivalent source exists in the retrieved tree (see
// DESIGN.md), so this decoder is built compactly against the generic
// sample-stream skeleton rather than ported from a verified original: a
// fixed-size record immediately follows the rbLogbookSize-byte header
// prefix every downloaded dive blob carries, sampled at a fixed interval,
// carrying a raw depth word and a raw temperature byte, terminated by the
// first all-0x00 record.
const (
	sampleRecordSize  = 3
	sampleInterval    = 10 // seconds
	headerOffsetO2    = 20
	headerOffsetDepth = 0 // within each sample record
	headerOffsetTemp  = 2 // within each sample record
)

type cachedFields struct {
	diveTime uint32
	maxDepth float64
}

type parser struct {
	data    []byte
	cached  bool
	fields  cachedFields
	oxygen  int
	helium  int
}

// NewParser returns a Parser for HW Frog dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyHWFrog, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyHWFrog }

func (p *parser) SetData(data []byte) error {
	if len(data) < rbLogbookSize {
		return newParserErr(dc.StatusDataFormat, "hwfrog.SetData", fmt.Errorf("blob shorter than the header prefix"))
	}
	p.data = data
	p.cached = false
	return nil
}

func (p *parser) cache() error {
	if p.cached {
		return nil
	}

	p.oxygen = int(p.data[headerOffsetO2])
	p.helium = 0

	samples := p.data[rbLogbookSize:]
	diveTime := uint32(0)
	maxDepth := 0.0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}
		depth := float64(byteutil.U16LE(record[headerOffsetDepth:])) / 100.0
		if depth > maxDepth {
			maxDepth = depth
		}
		diveTime += sampleInterval
	}

	p.fields = cachedFields{diveTime: diveTime, maxDepth: maxDepth}
	p.cached = true
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newParserErr(dc.StatusUnsupported, "hwfrog.GetDateTime", nil)
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
			return nil, newParserErr(dc.StatusDataFormat, "hwfrog.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		return dc.GasMix{Oxygen: float64(p.oxygen) / 100.0, Helium: float64(p.helium) / 100.0, Nitrogen: 1 - float64(p.oxygen)/100.0 - float64(p.helium)/100.0}, nil
	default:
		return nil, newParserErr(dc.StatusUnsupported, "hwfrog.GetField", nil)
	}
}

// SamplesForeach implements the generic skeleton (spec §4.2.2 steps 1-5):
// fixed-size records immediately after the embedded header, stopping at
// the first all-zero record, emitting a time sample then the record's
// depth and temperature samples, and a synthetic initial gasmix sample before the first time
// sample the way families that store their gas mix in the header do.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}

	cb(dc.Sample{Type: dc.SampleGasMix, GasMix: 0})

	samples := p.data[rbLogbookSize:]
	time := 0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}

		cb(dc.Sample{Type: dc.SampleTime, Time: uint32(time)})

		depth := float64(byteutil.U16LE(record[headerOffsetDepth:])) / 100.0
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		temp := float64(int8(record[headerOffsetTemp])) / 2.0
		cb(dc.Sample{Type: dc.SampleTemperature, Temperature: temp})

		time += sampleInterval
	}

	return nil
}

func newParserErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

package hwostc3

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// No hw_ostc3_parser.c-equivalent source exists in the retrieved tree
// (see DESIGN.md), so the sample-stream decode is built compactly
// against the generic skeleton, the same approach already taken for
// family/hwfrog's parser: a fixed-size record immediately follows each
// downloaded dive's rbLogbookSizeFull-byte header prefix, sampled at a
// fixed interval, carrying a raw depth word and a raw temperature word,
// terminated by the first all-0x00 record. The header fields device.go
// reads (fingerprint, dive number, profile length) are grounded on
// hw_ostc3.c's logbook layout even though the profile body itself isn't.
const (
	sampleRecordSize  = 4
	sampleInterval    = 10 // seconds
	headerOffsetO2    = 0x61
	headerOffsetDepth = 0 // within each sample record
	headerOffsetTemp  = 2 // within each sample record
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

// NewParser returns a Parser for HW OSTC3/OSTC Sport dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyHWOSTC3, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyHWOSTC3 }

func (p *parser) SetData(data []byte) error {
	if len(data) < rbLogbookSizeFull {
		return newParserErr(dc.StatusDataFormat, "hwostc3.SetData", fmt.Errorf("blob shorter than the header prefix"))
	}
	p.data = data
	p.cached = false
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newParserErr(dc.StatusUnsupported, "hwostc3.GetDateTime", nil)
}

func (p *parser) cache() error {
	if p.cached {
		return nil
	}

	if len(p.data) > headerOffsetO2 {
		p.oxygen = int(p.data[headerOffsetO2])
	}

	samples := p.data[rbLogbookSizeFull:]
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
			return nil, newParserErr(dc.StatusDataFormat, "hwostc3.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		oxygen := float64(p.oxygen) / 100.0
		return dc.GasMix{Oxygen: oxygen, Helium: 0, Nitrogen: 1 - oxygen}, nil
	default:
		return nil, newParserErr(dc.StatusUnsupported, "hwostc3.GetField", nil)
	}
}

// SamplesForeach implements the generic skeleton: fixed-size records
// immediately after the embedded full-size header, stopping at the
// first all-zero record, emitting a time sample then the record's depth and
// temperature samples, and a synthetic initial gasmix sample the way
// families that store their gas mix in the header do.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}

	cb(dc.Sample{Type: dc.SampleGasMix, GasMix: 0})

	samples := p.data[rbLogbookSizeFull:]
	time := 0
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}

		cb(dc.Sample{Type: dc.SampleTime, Time: uint32(time)})

		depth := float64(byteutil.U16LE(record[headerOffsetDepth:])) / 100.0
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		temp := float64(int16(byteutil.U16LE(record[headerOffsetTemp:]))) / 10.0
		cb(dc.Sample{Type: dc.SampleTemperature, Temperature: temp})

		time += sampleInterval
	}

	return nil
}

func newParserErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

package zeagle

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// cressi_edy_parser.c, the file upstream's family dispatcher actually
// routes both DC_FAMILY_ZEAGLE_N2ITION3 and DC_FAMILY_CRESSI_EDY to, is
// not present anywhere in the retrieved source tree (see DESIGN.md). This
// decoder is therefore built compactly against spec §4.2.2's generic
// sample-stream skeleton instead of being ported from a verified original:
// a small dive header (O2 percentage, dive length in seconds) at the
// start of each downloaded dive blob, followed by fixed-size depth/
// temperature records at a fixed sample interval, terminated by the
// first all-0x00 record.
const (
	headerSize       = 16
	headerOffsetO2   = 0
	headerOffsetTime = 1 // 16-bit LE seconds
	sampleRecordSize = 3
	sampleInterval   = 20 // seconds
)

type parser struct {
	data     []byte
	cached   bool
	oxygen   int
	diveTime uint32
	maxDepth float64
}

// NewParser returns a Parser for Zeagle N2iTion 3 dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyZeagleN2ition3, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyZeagleN2ition3 }

func (p *parser) SetData(data []byte) error {
	if len(data) < headerSize {
		return newParserErr(dc.StatusDataFormat, "zeagle.SetData", fmt.Errorf("blob shorter than the header"))
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

	samples := p.data[headerSize:]
	maxDepth := 0.0
	diveTime := uint32(0)
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}
		depth := float64(byteutil.U16LE(record[0:])) / 100.0
		if depth > maxDepth {
			maxDepth = depth
		}
		diveTime += sampleInterval
	}

	p.maxDepth = maxDepth
	p.diveTime = diveTime
	p.cached = true
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newParserErr(dc.StatusUnsupported, "zeagle.GetDateTime", nil)
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	if err := p.cache(); err != nil {
		return nil, err
	}

	switch typ {
	case dc.FieldDiveTime:
		return p.diveTime, nil
	case dc.FieldMaxDepth:
		return p.maxDepth, nil
	case dc.FieldGasMixCount:
		return 1, nil
	case dc.FieldGasMix:
		if index != 0 {
			return nil, newParserErr(dc.StatusDataFormat, "zeagle.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		o2 := float64(p.oxygen) / 100.0
		return dc.GasMix{Oxygen: o2, Helium: 0, Nitrogen: 1 - o2}, nil
	default:
		return nil, newParserErr(dc.StatusUnsupported, "zeagle.GetField", nil)
	}
}

func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	if err := p.cache(); err != nil {
		return err
	}

	cb(dc.Sample{Type: dc.SampleGasMix, GasMix: 0})

	samples := p.data[headerSize:]
	t := uint32(0)
	for offset := 0; offset+sampleRecordSize <= len(samples); offset += sampleRecordSize {
		record := samples[offset : offset+sampleRecordSize]
		if byteutil.IsAll(record, 0x00) {
			break
		}

		cb(dc.Sample{Type: dc.SampleTime, Time: t})

		depth := float64(byteutil.U16LE(record[0:])) / 100.0
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		temp := float64(int8(record[2])) / 2.0
		cb(dc.Sample{Type: dc.SampleTemperature, Temperature: temp})

		t += sampleInterval
	}

	return nil
}

func newParserErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

package marespuck

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// No mares_puck parser source (or the mares_common decoder it would
// delegate to) exists anywhere in the retrieved source tree — see
// device.go's package doc comment. This decoder is built compactly
// against spec §4.2.2's generic sample-stream skeleton: a small fixed
// header (sample interval code, max depth, dive time) immediately
// following the 6-byte ring-link prologue and 5-byte fingerprint that
// Foreach's ring walk already accounts for, followed by fixed-size depth
// samples running to the end of the (exactly ring-buffer-bounded) blob.
const (
	headerSize           = 16
	headerOffsetInterval = 11
	headerOffsetMaxDepth = 12 // 1/10 m, 16-bit LE
	headerOffsetDiveTime = 14 // minutes, 16-bit LE
	sampleRecordSize     = 2  // 1/10 m, 16-bit LE
)

// intervalSeconds maps the Mares sample-interval code (byte 11 of the
// dive header) to its sample period, the same small lookup table every
// Mares family shares.
var intervalSeconds = map[byte]uint32{
	0: 2, 1: 1, 2: 5, 3: 10, 4: 15, 5: 30, 6: 60,
}

type parser struct {
	data     []byte
	cached   bool
	maxDepth float64
	diveTime uint32
	interval uint32
}

// NewParser returns a Parser for Mares Puck/Nemo dive blobs.
func NewParser() dc.ParserBackend {
	return &parser{}
}

func init() {
	dc.RegisterFamily(dc.FamilyMaresPuck, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyMaresPuck }

func (p *parser) SetData(data []byte) error {
	if len(data) < headerSize {
		return newErr(dc.StatusDataFormat, "marespuck.SetData", fmt.Errorf("blob shorter than the header"))
	}
	p.data = data
	p.cached = false
	return nil
}

func (p *parser) cache() error {
	if p.cached {
		return nil
	}

	code := p.data[headerOffsetInterval]
	interval, ok := intervalSeconds[code]
	if !ok {
		return newErr(dc.StatusDataFormat, "marespuck.cache", fmt.Errorf("unrecognized sample interval code %#x", code))
	}
	p.interval = interval

	p.maxDepth = float64(byteutil.U16LE(p.data[headerOffsetMaxDepth:])) / 10.0
	p.diveTime = uint32(byteutil.U16LE(p.data[headerOffsetDiveTime:])) * 60

	p.cached = true
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	return dc.DateTime{}, newErr(dc.StatusUnsupported, "marespuck.GetDateTime", nil)
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
			return nil, newErr(dc.StatusDataFormat, "marespuck.GetField", fmt.Errorf("gasmix index %d out of range", index))
		}
		return dc.GasMix{Oxygen: 0.21, Helium: 0, Nitrogen: 0.79}, nil
	default:
		return nil, newErr(dc.StatusUnsupported, "marespuck.GetField", nil)
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

		cb(dc.Sample{Type: dc.SampleTime, Time: t})

		depth := float64(byteutil.U16LE(record)) / 10.0
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		t += p.interval
	}

	return nil
}

package suuntod9

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// Model bytes beyond the three layout.go already names, needed to drive
// the gas-mix/config offset table below.
const (
	modelD9       = 0x0E
	modelD6       = 0x0F
	modelVyper2   = 0x10
	modelCobra2   = 0x11
	modelD4       = 0x12
	modelVyperAir = 0x13
	modelCobra3   = 0x14
	modelHELO2    = 0x15
)

// dive-mode byte values as stored in the blob.
const (
	diveAir      = 0
	diveNitrox   = 1
	diveGauge    = 2
	diveFreedive = 3
	diveMixed    = 4
	diveCCR      = 5
)

const (
	inDecoSafetyStop = 1 << 0
	inDecoDecoStop   = 1 << 1
	inDecoDeepStop   = 1 << 2
)

const maxGasmixes = 11
const maxParams = 3

type sampleInfo struct {
	typ      byte
	size     int
	interval int
	divisor  int
}

var sampleDivisors = [8]int{1, 2, 4, 5, 10, 50, 100, 1000}

// parser is the suuntod9 ParserBackend, mirroring suunto_d9_parser.c's
// per-model gas-mix/config offset table and marker-driven event stream.
type parser struct {
	model  uint32
	serial uint32

	lastData []byte

	cached    bool
	mode      int
	oxygen    [maxGasmixes]int
	helium    [maxGasmixes]int
	ngasmixes int
	gasmix    int
	config    int
}

// NewParser returns a ParserBackend bound to model/serial, the same pair
// the dispatcher extracts from the Device's devinfo.
func NewParser(model, serial uint32) dc.ParserBackend {
	return &parser{model: model, serial: serial, mode: diveAir}
}

func init() {
	dc.RegisterFamily(dc.FamilySuuntoD9, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(info.Model, info.Serial), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilySuuntoD9 }

func (p *parser) SetData(data []byte) error {
	p.lastData = data
	p.cached = false
	p.mode = diveAir
	for i := range p.oxygen {
		p.oxygen[i] = 0
		p.helium[i] = 0
	}
	p.ngasmixes = 0
	p.gasmix = 0
	p.config = 0
	return nil
}

// cache lazily computes the gas-mix table, dive mode, and the offset of
// the sample-configuration block, exactly as suunto_d9_parser_cache does.
func (p *parser) cache(data []byte) error {
	if p.cached {
		return nil
	}

	gasmodeOffset, gasmixOffset, gasmixCount := 0x19, 0x21, 3
	switch p.model {
	case modelHELO2:
		gasmodeOffset, gasmixOffset, gasmixCount = 0x1F, 0x54, 8
	case ModelD4i:
		gasmodeOffset, gasmixOffset, gasmixCount = 0x1D, 0x5F, 1
	case ModelD6i:
		gasmodeOffset, gasmixOffset = 0x1D, 0x5F
		if len(data) > 1 && data[1] == 0x63 {
			gasmixCount = 3
		} else {
			gasmixCount = 2
		}
	case ModelD9tx:
		gasmodeOffset, gasmixOffset, gasmixCount = 0x1D, 0x87, 8
	case ModelDX:
		gasmodeOffset, gasmixOffset, gasmixCount = 0x21, 0xC1, 11
	}

	config := 0x3A
	switch p.model {
	case modelD4:
		config++
	case modelHELO2, ModelD4i, ModelD6i, ModelD9tx, ModelDX:
		config = gasmixOffset + gasmixCount*6
	}
	if config+1 > len(data) {
		return newParserErr(dc.StatusDataFormat, "cache", nil)
	}

	if gasmodeOffset >= len(data) {
		return newParserErr(dc.StatusDataFormat, "cache", nil)
	}
	p.mode = int(data[gasmodeOffset])
	p.gasmix = 0

	switch p.mode {
	case diveGauge, diveFreedive:
		p.ngasmixes = 0
	case diveAir:
		p.oxygen[0], p.helium[0] = 21, 0
		p.ngasmixes = 1
	default:
		p.ngasmixes = 0
		for i := 0; i < gasmixCount; i++ {
			switch p.model {
			case modelHELO2, ModelD4i, ModelD6i, ModelD9tx, ModelDX:
				if gasmixOffset+6*i+2 >= len(data) {
					return newParserErr(dc.StatusDataFormat, "cache", nil)
				}
				p.oxygen[i] = int(data[gasmixOffset+6*i+1])
				p.helium[i] = int(data[gasmixOffset+6*i+2])
			default:
				if gasmixOffset+i >= len(data) {
					return newParserErr(dc.StatusDataFormat, "cache", nil)
				}
				oxygen := int(data[gasmixOffset+i])
				if oxygen == 0x00 || oxygen == 0xFF {
					goto doneMixes
				}
				p.oxygen[i] = oxygen
				p.helium[i] = 0
			}
			p.ngasmixes++
		}
	doneMixes:
		switch p.model {
		case modelHELO2:
			if 0x26 < len(data) {
				p.gasmix = int(data[0x26])
			}
		case ModelD4i, ModelD6i, ModelD9tx:
			if 0x28 < len(data) {
				p.gasmix = int(data[0x28])
			}
		}
	}

	p.config = config
	p.cached = true
	return nil
}

func (p *parser) findGasmix(o2, he int) int {
	for i := 0; i < p.ngasmixes; i++ {
		if p.oxygen[i] == o2 && p.helium[i] == he {
			return i
		}
	}
	return p.ngasmixes
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	data := p.lastData
	offset := 0x11
	switch p.model {
	case modelHELO2, ModelDX:
		offset = 0x17
	case ModelD4i, ModelD6i, ModelD9tx:
		offset = 0x13
	}
	if len(data) < offset+7 {
		return dc.DateTime{}, newParserErr(dc.StatusDataFormat, "GetDateTime", nil)
	}
	b := data[offset : offset+7]

	var dt dc.DateTime
	switch p.model {
	case ModelD4i, ModelD6i, ModelD9tx, ModelDX:
		dt.Year = int(b[0]) + int(b[1])<<8
		dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second = int(b[2]), int(b[3]), int(b[4]), int(b[5]), int(b[6])
	default:
		dt.Hour, dt.Minute, dt.Second = int(b[0]), int(b[1]), int(b[2])
		dt.Year = int(b[3]) + int(b[4])<<8
		dt.Month, dt.Day = int(b[5]), int(b[6])
	}
	return dt, nil
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	data := p.lastData
	if err := p.cache(data); err != nil {
		return nil, err
	}

	switch typ {
	case dc.FieldDiveTime:
		switch p.model {
		case modelD4:
			return uint32(byteutil.U16LE(data[0x0B:])), nil
		case ModelD4i, ModelD6i, ModelD9tx, ModelDX:
			return uint32(byteutil.U16LE(data[0x0D:])), nil
		case modelHELO2:
			return uint32(byteutil.U16LE(data[0x0D:])) * 60, nil
		default:
			return uint32(byteutil.U16LE(data[0x0B:])) * 60, nil
		}
	case dc.FieldMaxDepth:
		return float64(byteutil.U16LE(data[0x09:])) / 100.0, nil
	case dc.FieldGasMixCount:
		return p.ngasmixes, nil
	case dc.FieldGasMix:
		if index < 0 || index >= p.ngasmixes {
			return nil, newParserErr(dc.StatusInvalidArgs, "GetField", nil)
		}
		he := float64(p.helium[index]) / 100.0
		o2 := float64(p.oxygen[index]) / 100.0
		return dc.GasMix{Helium: he, Oxygen: o2, Nitrogen: 1.0 - o2 - he}, nil
	case dc.FieldDiveMode:
		switch p.mode {
		case diveAir, diveNitrox, diveMixed:
			return dc.DiveModeOC, nil
		case diveGauge:
			return dc.DiveModeGauge, nil
		case diveFreedive:
			return dc.DiveModeFreedive, nil
		case diveCCR:
			return dc.DiveModeCC, nil
		default:
			return nil, newParserErr(dc.StatusDataFormat, "GetField", nil)
		}
	case dc.FieldString:
		if index == 0 {
			return dc.String{Description: "Serial", Value: fmt.Sprintf("%08d", p.serial)}, nil
		}
		return nil, newParserErr(dc.StatusUnsupported, "GetField", nil)
	default:
		return nil, newParserErr(dc.StatusUnsupported, "GetField", nil)
	}
}

// lastData is set by the embedding Parser via SetData; ParserBackend only
// receives SetData(data) without storing it, so we keep our own copy here
// (mirrors parser->base.data in the C struct).
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	data := p.lastData
	if err := p.cache(data); err != nil {
		return err
	}

	if p.config >= len(data) {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
	}
	nparams := int(data[p.config])
	if nparams == 0 || nparams > maxParams {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", fmt.Errorf("invalid number of parameters"))
	}

	info := make([]sampleInfo, nparams)
	for i := 0; i < nparams; i++ {
		idx := p.config + 2 + i*3
		if idx+2 >= len(data) {
			return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
		}
		info[i].typ = data[idx]
		info[i].interval = int(data[idx+1])
		info[i].divisor = sampleDivisors[(data[idx+2]&0x1C)>>2]
		switch info[i].typ {
		case 0x64, 0x68:
			info[i].size = 2
		case 0x74:
			info[i].size = 1
		default:
			return newParserErr(dc.StatusDataFormat, "SamplesForeach", fmt.Errorf("unknown sample type 0x%02x", info[i].typ))
		}
	}

	profile := p.config + 2 + nparams*3
	if profile+5 > len(data) {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
	}

	if p.model == modelHELO2 {
		seq := []byte{0x01, 0x00, 0x00}
		if profile+3 > len(data) || !bytesEqual(data[profile:profile+3], seq) {
			profile += 12
		}
	}
	if profile+5 > len(data) {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
	}

	intervalSampleOffset := 0x18
	switch p.model {
	case modelHELO2, ModelD4i, ModelD6i, ModelD9tx:
		intervalSampleOffset = 0x1E
	case ModelDX:
		intervalSampleOffset = 0x22
	}
	if intervalSampleOffset >= len(data) {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
	}
	intervalSample := int(data[intervalSampleOffset])
	if intervalSample == 0 {
		return newParserErr(dc.StatusDataFormat, "SamplesForeach", fmt.Errorf("invalid sample interval"))
	}

	marker := int(byteutil.U16LE(data[profile+3:]))

	inDeco := 0
	t := uint32(0)
	nsamples := 0
	offset := profile + 5

	for offset < len(data) {
		if cb != nil {
			cb(dc.Sample{Type: dc.SampleTime, Time: t})
		}

		for i := 0; i < nparams; i++ {
			if info[i].interval == 0 || nsamples%info[i].interval != 0 {
				continue
			}
			if offset+info[i].size > len(data) {
				return newParserErr(dc.StatusDataFormat, "SamplesForeach", nil)
			}
			switch info[i].typ {
			case 0x64:
				v := byteutil.U16LE(data[offset:])
				if cb != nil {
					cb(dc.Sample{Type: dc.SampleDepth, Depth: float64(v) / float64(info[i].divisor)})
				}
			case 0x68:
				v := byteutil.U16LE(data[offset:])
				if v != 0xFFFF && cb != nil {
					cb(dc.Sample{Type: dc.SamplePressure, Pressure: dc.Pressure{Tank: 0, Bar: float64(v) / float64(info[i].divisor)}})
				}
			case 0x74:
				v := int8(data[offset])
				if cb != nil {
					cb(dc.Sample{Type: dc.SampleTemperature, Temperature: float64(v) / float64(info[i].divisor)})
				}
			}
			offset += info[i].size
		}

		if t == 0 && p.ngasmixes > 0 {
			if p.gasmix >= p.ngasmixes {
				return newParserErr(dc.StatusDataFormat, "SamplesForeach", fmt.Errorf("invalid initial gas mix"))
			}
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleGasMix, GasMix: p.gasmix})
			}
		}

		if nsamples+1 == marker {
			var err error
			marker, offset, err = p.consumeEvents(data, offset, marker, &inDeco, cb)
			if err != nil {
				return err
			}
		}

		decoSample := dc.Sample{Type: dc.SampleDeco}
		switch {
		case inDeco&inDecoDeepStop != 0:
			decoSample.DecoValue.Type = dc.DecoDeepStop
		case inDeco&inDecoDecoStop != 0:
			decoSample.DecoValue.Type = dc.DecoDecoStop
		case inDeco&inDecoSafetyStop != 0:
			decoSample.DecoValue.Type = dc.DecoSafetyStop
		default:
			decoSample.DecoValue.Type = dc.DecoNDL
		}
		if cb != nil {
			cb(decoSample)
		}

		t += uint32(intervalSample)
		nsamples++
	}

	return nil
}

// consumeEvents parses the event records at the current marker position,
// exactly mirroring suunto_d9_parser_samples_foreach's inner while loop:
// one 1-byte tag per iteration, each with its own fixed or model-dependent
// payload size, terminating as soon as a 0x01 "next marker" record is
// consumed.
func (p *parser) consumeEvents(data []byte, offset, marker int, inDeco *int, cb dc.SampleCallback) (int, int, error) {
	for offset < len(data) {
		event := data[offset]
		offset++

		switch event {
		case 0x01: // next event marker
			if offset+4 > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			current := int(byteutil.U16LE(data[offset:]))
			next := int(byteutil.U16LE(data[offset+2:]))
			if marker != current {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", fmt.Errorf("unexpected event marker"))
			}
			marker += next
			offset += 4
			return marker, offset, nil

		case 0x02: // surfaced
			if offset+2 > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			seconds := uint32(data[offset+1])
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleEvent, EventValue: dc.Event{TimeOffset: seconds}})
			}
			offset += 2

		case 0x03: // event
			if offset+2 > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			typ := data[offset]
			seconds := uint32(data[offset+1])
			switch typ & 0x7F {
			case 0x01, 0x03, 0x14:
				toggle(inDeco, inDecoDecoStop, typ&0x80 != 0)
			case 0x00:
				toggle(inDeco, inDecoSafetyStop, typ&0x80 != 0)
			case 0x02, 0x13:
				toggle(inDeco, inDecoDeepStop, typ&0x80 != 0)
			}
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleEvent, EventValue: dc.Event{
					Type: dc.EventType(typ & 0x7F), TimeOffset: seconds,
					Begin: typ&0x80 == 0, End: typ&0x80 != 0,
				}})
			}
			offset += 2

		case 0x04: // bookmark/heading
			if offset+4 > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			seconds := uint32(data[offset+1])
			heading := byteutil.U16LE(data[offset+2:])
			ev := dc.Event{TimeOffset: seconds}
			if heading != 0xFFFF {
				ev.Value = uint32(heading) / 2
			}
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleEvent, EventValue: ev})
			}
			offset += 4

		case 0x05: // gas change (O2 only)
			if offset+2 > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			o2 := int(data[offset])
			idx := p.findGasmix(o2, 0)
			if idx >= p.ngasmixes {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", fmt.Errorf("invalid gas mix"))
			}
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleGasMix, GasMix: idx})
			}
			offset += 2

		case 0x06: // gas change (O2+He)
			length := 4
			if p.model == ModelDX {
				length = 5
			}
			if offset+length > len(data) {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", nil)
			}
			he := int(data[offset+1])
			o2 := int(data[offset+2])
			idx := p.findGasmix(o2, he)
			if idx >= p.ngasmixes {
				return marker, offset, newParserErr(dc.StatusDataFormat, "consumeEvents", fmt.Errorf("invalid gas mix"))
			}
			if cb != nil {
				cb(dc.Sample{Type: dc.SampleGasMix, GasMix: idx})
			}
			offset += length

		default:
			// Unknown event tag: stop scanning, matching the C code's
			// WARNING-and-fall-through (the loop only ever breaks on 0x01).
			return marker, offset, nil
		}
	}
	return marker, offset, nil
}

func toggle(mask *int, bit int, clear bool) {
	if clear {
		*mask &^= bit
	} else {
		*mask |= bit
	}
}

func newParserErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: "suuntod9." + op, Err: cause}
}

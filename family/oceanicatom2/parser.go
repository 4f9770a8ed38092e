// Package oceanicatom2 implements the Parser for the Oceanic Atom 2
// family, grounded on oceanic_atom2_parser.c. Only the parser exists in
// the retrieved source tree for this family — oceanic_atom2.c (the
// device-side open/dump/foreach over the common Oceanic page protocol)
// and oceanic_common.c are both absent, so this package registers no
// DeviceBackend, the same parser-only exception already documented for
// family/cobalt.
//
// oceanic_atom2_parser.c dispatches dozens of per-model quirks off a
// 16-bit model code (the PIC's own self-reported model byte pair); this
// port covers the models whose quirk branches are fully shown by the
// file (Atom 2, Geo/Geo 2.0, Veo 2.0/3.0, DataMask/CompuMask, the OC1
// family, A300/A300CS/VTX, and the F10/F11/TX1/VT4 special-cased sizes)
// and falls through to the original's own `default:` branch — the
// generic ATOM2-style layout — for every other model code, rather than
// silently guessing at undocumented ones.
package oceanicatom2

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

// Model codes, named exactly as oceanic_atom2_parser.c's #defines.
const (
	ModelATOM1     = 0x4250
	ModelEPICA     = 0x4257
	ModelVT3       = 0x4258
	ModelT3A       = 0x4259
	ModelATOM2     = 0x4342
	ModelGEO       = 0x4344
	ModelMANTA     = 0x4345
	ModelDATAMASK  = 0x4347
	ModelCOMPUMASK = 0x4348
	ModelOC1A      = 0x434E
	ModelF10       = 0x434D
	ModelWISDOM2   = 0x4350
	ModelINSIGHT2  = 0x4353
	ModelELEMENT2  = 0x4357
	ModelVEO20     = 0x4359
	ModelVEO30     = 0x435A
	ModelZEN       = 0x4441
	ModelZENAIR    = 0x4442
	ModelATMOSAI2  = 0x4443
	ModelPROPLUS21 = 0x4444
	ModelGEO20     = 0x4446
	ModelVT4       = 0x4447
	ModelOC1B      = 0x4449
	ModelVOYAGER2G = 0x444B
	ModelATOM3     = 0x444C
	ModelDG03      = 0x444D
	ModelOCS       = 0x4450
	ModelOC1C      = 0x4451
	ModelVT41      = 0x4452
	ModelEPICB     = 0x4453
	ModelT3B       = 0x4455
	ModelATOM31    = 0x4456
	ModelA300AI    = 0x4457
	ModelWISDOM3   = 0x4458
	ModelA300      = 0x445A
	ModelTX1       = 0x4542
	ModelAMPHOS    = 0x4545
	ModelAMPHOSAIR = 0x4546
	ModelPROPLUS3  = 0x4548
	ModelF11A      = 0x4549
	ModelOCI       = 0x454B
	ModelA300CS    = 0x454C
	ModelF11B      = 0x4554
	ModelVTX       = 0x4557
)

const (
	pageSize  = 16
	ngasmixes = 6

	modeNormal   = 0
	modeGauge    = 1
	modeFreeDive = 2
)

type parser struct {
	model      uint32
	serial     uint32
	headerSize int
	footerSize int

	cached        bool
	profileCached bool
	header   int
	footer   int
	mode     int
	nmixes   int
	oxygen   [ngasmixes]int
	helium   [ngasmixes]int
	diveTime uint32
	maxDepth float64

	data []byte
}

// NewParser returns a Parser for Oceanic Atom 2 family dive blobs. model
// and serial come from the device-info event a dc.Device would have
// emitted; consumers without a live Device pass the value they already
// know out-of-band.
func NewParser(model, serial uint32) dc.ParserBackend {
	p := &parser{model: model, serial: serial}
	p.resizeForModel()
	return p
}

func timeNowYear() int { return time.Now().Year() }

func init() {
	dc.RegisterFamily(dc.FamilyOceanicAtom2, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(info.Model, info.Serial), nil
	})
}

func (p *parser) resizeForModel() {
	p.headerSize = 9 * pageSize / 2
	p.footerSize = 2 * pageSize / 2

	switch p.model {
	case ModelDATAMASK, ModelCOMPUMASK, ModelGEO, ModelGEO20,
		ModelVEO20, ModelVEO30, ModelOCS, ModelPROPLUS3,
		ModelA300, ModelMANTA, ModelINSIGHT2, ModelZEN:
		p.headerSize -= pageSize
	case ModelVT4, ModelVT41:
		p.headerSize += pageSize
	case ModelTX1:
		p.headerSize += 2 * pageSize
	case ModelATOM1:
		p.headerSize -= 2 * pageSize
	case ModelF10:
		p.headerSize = 3 * pageSize
		p.footerSize = 0
	case ModelF11A, ModelF11B:
		p.headerSize = 5 * pageSize
		p.footerSize = 0
	case ModelA300CS, ModelVTX:
		p.headerSize = 5 * pageSize
	}
}

func (p *parser) Family() dc.Family { return dc.FamilyOceanicAtom2 }

func (p *parser) SetData(data []byte) error {
	p.data = data
	p.cached = false
	p.profileCached = false
	p.header, p.footer, p.mode, p.nmixes = 0, 0, modeNormal, 0
	for i := range p.oxygen {
		p.oxygen[i], p.helium[i] = 0, 0
	}
	p.diveTime = 0
	p.maxDepth = 0
	return nil
}

// GetDateTime ports the model-specific bit layouts
// oceanic_atom2_parser_get_datetime switches on, including its year-2010
// decade-guessing workaround (applied here using the current wall-clock
// year rather than a frozen "now", matching the original's intent).
func (p *parser) GetDateTime() (dc.DateTime, error) {
	const op = "oceanicatom2.GetDateTime"

	headerOffset := 8
	if p.model == ModelF10 || p.model == ModelF11A || p.model == ModelF11B {
		headerOffset = 32
	}
	if len(p.data) < headerOffset {
		return dc.DateTime{}, newErr(dc.StatusDataFormat, op, nil)
	}

	d := p.data
	pm := d[1]&0x80 != 0
	var dt dc.DateTime

	switch p.model {
	case ModelOC1A, ModelOC1B, ModelOC1C, ModelOCS, ModelVT4, ModelVT41,
		ModelATOM3, ModelATOM31, ModelA300AI, ModelOCI:
		dt.Year = int((d[5]&0xE0)>>5) + int((d[7]&0xE0)>>2) + 2000
		dt.Month = int(d[3] & 0x0F)
		dt.Day = int((d[0]&0x80)>>3) + int((d[3]&0xF0)>>4)
		dt.Hour = byteutil.BCD(d[1] & 0x1F)
		dt.Minute = byteutil.BCD(d[0] & 0x7F)
	case ModelVT3, ModelVEO20, ModelVEO30, ModelDG03, ModelT3A, ModelT3B,
		ModelGEO20, ModelPROPLUS3:
		dt.Year = int((d[3]&0xE0)>>1) + int(d[4]&0x0F) + 2000
		dt.Month = int((d[4] & 0xF0) >> 4)
		dt.Day = int(d[3] & 0x1F)
		dt.Hour = byteutil.BCD(d[1] & 0x1F)
		dt.Minute = byteutil.BCD(d[0])
	case ModelZENAIR, ModelAMPHOS, ModelAMPHOSAIR, ModelVOYAGER2G:
		dt.Year = int(d[3]&0x0F) + 2000
		dt.Month = int((d[7] & 0xF0) >> 4)
		dt.Day = int((d[3]&0x80)>>3) + int((d[5]&0xF0)>>4)
		dt.Hour = byteutil.BCD(d[1] & 0x1F)
		dt.Minute = byteutil.BCD(d[0])
	case ModelF10, ModelF11A, ModelF11B:
		dt.Year = byteutil.BCD(d[6]) + 2000
		dt.Month = byteutil.BCD(d[7])
		dt.Day = byteutil.BCD(d[8])
		dt.Hour = byteutil.BCD(d[13] & 0x7F)
		dt.Minute = byteutil.BCD(d[12])
		pm = d[13]&0x80 != 0
	case ModelTX1:
		dt.Year = byteutil.BCD(d[13]) + 2000
		dt.Month = byteutil.BCD(d[14])
		dt.Day = byteutil.BCD(d[15])
		dt.Hour = int(d[11])
		dt.Minute = int(d[10])
	case ModelA300CS, ModelVTX:
		dt.Year = int(d[10]) + 2000
		dt.Month = int(d[8])
		dt.Day = int(d[9])
		dt.Hour = byteutil.BCD(d[1] & 0x1F)
		dt.Minute = byteutil.BCD(d[0])
	default:
		dt.Year = byteutil.BCD(((d[3]&0xC0)>>2)+(d[4]&0x0F)) + 2000
		dt.Month = int((d[4] & 0xF0) >> 4)
		dt.Day = byteutil.BCD(d[3] & 0x3F)
		dt.Hour = byteutil.BCD(d[1] & 0x1F)
		dt.Minute = byteutil.BCD(d[0])
	}
	dt.Second = 0

	dt.Hour %= 12
	if pm {
		dt.Hour += 12
	}

	if dt.Year < 2010 {
		now := timeNowYear()
		if now >= 2010 {
			decade := (now / 10) * 10
			if dt.Year%10 > now%10 {
				decade -= 10
			}
			dt.Year += decade - 2000
		}
	}

	return dt, nil
}

// cache ports oceanic_atom2_parser_cache: header/footer offsets, dive
// mode, and the per-model gas-mix table.
func (p *parser) cache() error {
	const op = "oceanicatom2.cache"
	if p.cached {
		return nil
	}

	data := p.data
	size := len(data)
	if size < p.headerSize+p.footerSize {
		return newErr(dc.StatusDataFormat, op, fmt.Errorf("blob shorter than header+footer"))
	}

	header := p.headerSize - pageSize/2
	footer := size - p.footerSize
	if p.model == ModelVT4 || p.model == ModelVT41 || p.model == ModelA300AI {
		header = 3 * pageSize
	}

	mode := modeNormal
	switch p.model {
	case ModelF10, ModelF11A, ModelF11B:
		mode = modeFreeDive
	case ModelT3B, ModelVT3, ModelDG03:
		mode = int((data[2] & 0xC0) >> 6)
	case ModelVEO20, ModelVEO30:
		mode = int((data[1] & 0x60) >> 5)
	}

	nmixes := 0
	o2Offset, heOffset := 0, 0
	switch {
	case mode == modeFreeDive:
		nmixes = 0
	case p.model == ModelDATAMASK || p.model == ModelCOMPUMASK:
		nmixes = 1
		o2Offset = header + 3
	case p.model == ModelVT4 || p.model == ModelVT41 || p.model == ModelA300AI:
		o2Offset = header + 4
		nmixes = 4
	case p.model == ModelOCI:
		o2Offset = 0x28
		nmixes = 4
	case p.model == ModelTX1:
		o2Offset = 0x3E
		heOffset = 0x48
		nmixes = 6
	case p.model == ModelA300CS || p.model == ModelVTX:
		o2Offset = 0x2A
		switch {
		case data[0x39]&0x04 != 0:
			nmixes = 1
		case data[0x39]&0x08 != 0:
			nmixes = 2
		case data[0x39]&0x10 != 0:
			nmixes = 3
		default:
			nmixes = 4
		}
	default:
		o2Offset = header + 4
		nmixes = 3
	}

	p.header = header
	p.footer = footer
	p.mode = mode
	p.nmixes = nmixes
	for i := 0; i < nmixes; i++ {
		if data[o2Offset+i] != 0 {
			p.oxygen[i] = int(data[o2Offset+i])
		} else {
			p.oxygen[i] = 21
		}
		if heOffset != 0 {
			p.helium[i] = int(data[heOffset+i])
		}
	}
	p.cached = true
	return nil
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	const op = "oceanicatom2.GetField"
	if err := p.cache(); err != nil {
		return nil, err
	}

	if !p.profileCached {
		if err := p.cacheProfile(); err != nil {
			return nil, err
		}
		p.profileCached = true
	}

	data := p.data

	switch typ {
	case dc.FieldDiveTime:
		if p.model == ModelF10 || p.model == ModelF11A || p.model == ModelF11B {
			return uint32(byteutil.BCD(data[2])) + uint32(byteutil.BCD(data[3]))*60, nil
		}
		return p.diveTime, nil
	case dc.FieldMaxDepth:
		if p.model == ModelF10 || p.model == ModelF11A || p.model == ModelF11B {
			return float64(byteutil.U16LE(data[4:])) / 16.0 * feetToMeters, nil
		}
		return float64(byteutil.U16LE(data[p.footer+4:])) / 16.0 * feetToMeters, nil
	case dc.FieldGasMixCount:
		return p.nmixes, nil
	case dc.FieldGasMix:
		if index < 0 || index >= p.nmixes {
			return nil, newErr(dc.StatusDataFormat, op, fmt.Errorf("gasmix index %d out of range", index))
		}
		oxygen := float64(p.oxygen[index]) / 100.0
		helium := float64(p.helium[index]) / 100.0
		return dc.GasMix{Oxygen: oxygen, Helium: helium, Nitrogen: 1.0 - oxygen - helium}, nil
	case dc.FieldSalinity:
		if p.model == ModelA300CS || p.model == ModelVTX {
			t := dc.SalinitySalt
			if data[0x18]&0x80 != 0 {
				t = dc.SalinityFresh
			}
			return dc.Salinity{Type: t}, nil
		}
		return nil, newErr(dc.StatusUnsupported, op, nil)
	case dc.FieldDiveMode:
		switch p.mode {
		case modeNormal:
			return dc.DiveModeOC, nil
		case modeGauge:
			return dc.DiveModeGauge, nil
		case modeFreeDive:
			return dc.DiveModeFreedive, nil
		default:
			return nil, newErr(dc.StatusDataFormat, op, nil)
		}
	case dc.FieldString:
		if index == 0 {
			return dc.String{Description: "Serial", Value: fmt.Sprintf("%06d", p.serial)}, nil
		}
		return nil, newErr(dc.StatusUnsupported, op, nil)
	default:
		return nil, newErr(dc.StatusUnsupported, op, nil)
	}
}

const feetToMeters = 0.3048

// cacheProfile runs SamplesForeach once purely to collect max depth and
// dive time, exactly as oceanic_atom2_parser_get_field's DC_FIELD_* path
// feeds sample_statistics_cb.
func (p *parser) cacheProfile() error {
	var maxDepth float64
	var diveTime uint32
	err := p.samplesForeach(func(s dc.Sample) {
		switch s.Type {
		case dc.SampleTime:
			diveTime = s.Time
		case dc.SampleDepth:
			if s.Depth > maxDepth {
				maxDepth = s.Depth
			}
		}
	})
	if err != nil {
		return err
	}
	p.maxDepth = maxDepth
	p.diveTime = diveTime
	return nil
}

func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	return p.samplesForeach(cb)
}

// samplesForeach ports oceanic_atom2_parser_samples_foreach: the
// interval/samplerate table, the samplesize/have_temperature/
// have_pressure model switches, the 0xAA tank-switch and 0xBB
// surface-interval sample types, and the temperature/pressure/depth/
// gasmix/deco decode for the models this port covers (falling through to
// the original's shared `else` branch for every other model).
func (p *parser) samplesForeach(cb dc.SampleCallback) error {
	const op = "oceanicatom2.SamplesForeach"
	if err := p.cache(); err != nil {
		return err
	}

	data := p.data
	size := len(data)

	time := uint32(0)
	interval := uint32(1)
	samplerate := 1

	if p.mode != modeFreeDive {
		idx := 0x17
		if p.model == ModelA300CS || p.model == ModelVTX {
			idx = 0x1F
		}
		switch data[idx] & 0x03 {
		case 0:
			interval = 2
		case 1:
			interval = 15
		case 2:
			interval = 30
		case 3:
			interval = 60
		}
	} else if p.model == ModelF11A || p.model == ModelF11B {
		idx := 0x29
		switch data[idx] & 0x03 {
		case 0:
			interval, samplerate = 1, 4
		case 1:
			interval, samplerate = 1, 2
		case 2:
			interval = 1
		case 3:
			interval = 2
		}
	}

	sampleSize := pageSize / 2
	switch {
	case p.mode == modeFreeDive:
		if p.model == ModelF10 || p.model == ModelF11A || p.model == ModelF11B {
			sampleSize = 2
		} else {
			sampleSize = 4
		}
	case p.model == ModelOC1A || p.model == ModelOC1B || p.model == ModelOC1C ||
		p.model == ModelOCI || p.model == ModelTX1 || p.model == ModelA300CS || p.model == ModelVTX:
		sampleSize = pageSize
	}

	haveTemperature, havePressure := true, true
	switch {
	case p.mode == modeFreeDive:
		haveTemperature, havePressure = false, false
	case p.model == ModelVEO30 || p.model == ModelOCS || p.model == ModelELEMENT2 ||
		p.model == ModelVEO20 || p.model == ModelA300 || p.model == ModelZEN ||
		p.model == ModelGEO || p.model == ModelGEO20 || p.model == ModelMANTA:
		havePressure = false
	}

	temperature := 0
	if haveTemperature {
		temperature = int(data[p.header+7])
	}

	tank := 0
	pressure := 0
	if havePressure {
		idx := 2
		if p.model == ModelA300CS || p.model == ModelVTX {
			idx = 16
		}
		pressure = int(byteutil.U16LE(data[p.header+idx:]))
		if pressure == 10000 {
			havePressure = false
		}
	}

	gasmixPrevious := -1
	complete := true
	offset := p.headerSize

	for offset+sampleSize <= size-p.footerSize {
		if (p.mode != modeFreeDive && byteutil.IsAll(data[offset:offset+sampleSize], 0x00)) ||
			byteutil.IsAll(data[offset:offset+sampleSize], 0xFF) {
			offset += sampleSize
			continue
		}

		if complete {
			time += interval
			cb(dc.Sample{Type: dc.SampleTime, Time: time})
			complete = false
		}

		sampleType := data[offset]
		if p.mode == modeFreeDive {
			sampleType = 0
		}

		length := sampleSize * samplerate
		if sampleType == 0xBB {
			length = pageSize
			if offset+length > size-pageSize {
				return newErr(dc.StatusDataFormat, op, fmt.Errorf("truncated 0xBB surface-interval record"))
			}
		}

		cb(dc.Sample{Type: dc.SampleVendor, VendorValue: dc.VendorSample{Type: 0, Data: data[offset : offset+length]}})

		switch sampleType {
		case 0xAA:
			switch {
			case p.model == ModelDATAMASK || p.model == ModelCOMPUMASK:
				tank = 0
				pressure = int((uint16(data[offset+7])<<8 | uint16(data[offset+6])) & 0x0FFF)
			case p.model == ModelA300CS || p.model == ModelVTX:
				tank = int(data[offset+1]&0x03) - 1
				pressure = int((uint16(data[offset+7])<<8 | uint16(data[offset+6])) & 0x0FFF)
			default:
				tank = int(data[offset+1]&0x03) - 1
				if p.model == ModelATOM2 || p.model == ModelEPICA || p.model == ModelEPICB {
					pressure = int((uint16(data[offset+3])<<8|uint16(data[offset+4]))&0x0FFF) * 2
				} else {
					pressure = int((uint16(data[offset+4])<<8|uint16(data[offset+5]))&0x0FFF) * 2
				}
			}
		case 0xBB:
			surfTime := 60*uint32(byteutil.BCD(data[offset+1])) + uint32(byteutil.BCD(data[offset+2]))
			nsamples := surfTime / interval
			for i := uint32(0); i < nsamples; i++ {
				if complete {
					time += interval
					cb(dc.Sample{Type: dc.SampleTime, Time: time})
				}
				cb(dc.Sample{Type: dc.SampleDepth, Depth: 0})
				complete = true
			}
		default:
			if haveTemperature {
				switch {
				case p.model == ModelGEO || p.model == ModelATOM1 || p.model == ModelELEMENT2 ||
					p.model == ModelMANTA || p.model == ModelZEN:
					temperature = int(data[offset+6])
				case p.model == ModelGEO20 || p.model == ModelVEO20 || p.model == ModelVEO30 ||
					p.model == ModelOC1A || p.model == ModelOC1B || p.model == ModelOC1C ||
					p.model == ModelOCI || p.model == ModelA300:
					temperature = int(data[offset+3])
				case p.model == ModelOCS || p.model == ModelTX1:
					temperature = int(data[offset+1])
				case p.model == ModelVT4 || p.model == ModelVT41 || p.model == ModelATOM3 ||
					p.model == ModelATOM31 || p.model == ModelA300AI:
					temperature = int((data[offset+7]&0xF0)>>4) | int((data[offset+7]&0x0C)<<2) | int((data[offset+5]&0x0C)<<4)
				case p.model == ModelA300CS || p.model == ModelVTX:
					temperature = int(data[offset+11])
				default:
					var sign int
					switch {
					case p.model == ModelDG03 || p.model == ModelPROPLUS3:
						sign = int(^data[offset+5]&0x04) >> 2
					case p.model == ModelVOYAGER2G || p.model == ModelAMPHOS || p.model == ModelAMPHOSAIR:
						sign = int(data[offset+5]&0x04) >> 2
					case p.model == ModelATOM2 || p.model == ModelPROPLUS21 || p.model == ModelEPICA ||
						p.model == ModelEPICB || p.model == ModelATMOSAI2 || p.model == ModelWISDOM2 || p.model == ModelWISDOM3:
						sign = int(data[offset]&0x80) >> 7
					default:
						sign = int(^data[offset]&0x80) >> 7
					}
					if sign != 0 {
						temperature -= int(data[offset+7]&0x0C) >> 2
					} else {
						temperature += int(data[offset+7]&0x0C) >> 2
					}
				}
				cb(dc.Sample{Type: dc.SampleTemperature, Temperature: (float64(temperature) - 32.0) * (5.0 / 9.0)})
			}

			if havePressure {
				switch {
				case p.model == ModelOC1A || p.model == ModelOC1B || p.model == ModelOC1C || p.model == ModelOCI:
					pressure = int((uint16(data[offset+11])<<8 | uint16(data[offset+10])) & 0x0FFF)
				case p.model == ModelVT4 || p.model == ModelVT41 || p.model == ModelATOM3 || p.model == ModelATOM31 ||
					p.model == ModelZENAIR || p.model == ModelA300AI || p.model == ModelDG03 ||
					p.model == ModelPROPLUS3 || p.model == ModelAMPHOSAIR:
					pressure = (int(data[offset]&0x03)<<8 + int(data[offset+1])) * 5
				case p.model == ModelTX1 || p.model == ModelA300CS || p.model == ModelVTX:
					pressure = int(byteutil.U16LE(data[offset+4:]))
				default:
					pressure -= int(data[offset+1])
				}
				const psiToBar = 0.0689476
				cb(dc.Sample{Type: dc.SamplePressure, Pressure: dc.Pressure{Tank: tank, Bar: float64(pressure) * psiToBar}})
			}

			var depth int
			switch {
			case p.mode == modeFreeDive:
				depth = int(byteutil.U16LE(data[offset:]))
			case p.model == ModelGEO20 || p.model == ModelVEO20 || p.model == ModelVEO30 ||
				p.model == ModelOC1A || p.model == ModelOC1B || p.model == ModelOC1C ||
				p.model == ModelOCI || p.model == ModelA300:
				depth = int((uint16(data[offset+4]) + uint16(data[offset+5])<<8) & 0x0FFF)
			case p.model == ModelATOM1:
				depth = int(data[offset+3]) * 16
			default:
				depth = int((uint16(data[offset+2]) + uint16(data[offset+3])<<8) & 0x0FFF)
			}
			cb(dc.Sample{Type: dc.SampleDepth, Depth: float64(depth) / 16.0 * feetToMeters})

			if p.model == ModelTX1 {
				gasmix := int(data[offset] & 0x07)
				if gasmix != gasmixPrevious {
					if gasmix < 1 || gasmix > p.nmixes {
						return newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid gas mix index %d", gasmix))
					}
					cb(dc.Sample{Type: dc.SampleGasMix, GasMix: gasmix - 1})
					gasmixPrevious = gasmix
				}
			}

			haveDeco := false
			decoStop, decoTime := 0, uint32(0)
			switch {
			case p.model == ModelA300CS || p.model == ModelVTX:
				decoStop = int((data[offset+15] & 0x70) >> 4)
				decoTime = uint32(byteutil.U16LE(data[offset+6:])) & 0x03FF
				haveDeco = true
			case p.model == ModelZEN:
				decoStop = int((data[offset+5] & 0xF0) >> 4)
				decoTime = uint32(byteutil.U16LE(data[offset+4:])) & 0x0FFF
				haveDeco = true
			case p.model == ModelTX1:
				decoStop = int(data[offset+10])
				decoTime = uint32(byteutil.U16LE(data[offset+6:]))
				haveDeco = true
			}
			if haveDeco {
				d := dc.Deco{Time: decoTime * 60}
				if decoStop != 0 {
					d.Type = dc.DecoDecoStop
					d.Depth = float64(decoStop) * 10 * feetToMeters
				} else {
					d.Type = dc.DecoNDL
				}
				cb(dc.Sample{Type: dc.SampleDeco, DecoValue: d})
			}

			complete = true
		}

		offset += length
	}

	return nil
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

// Package shearwater implements the Parser shared by the Shearwater
// Predator and Petrel families, grounded on
// shearwater_predator_parser.c — both families drive the identical
// 128-byte block format and decode logic, differing only in sample size
// (0x10 vs 0x20) and a handful of Petrel-only fields (setpoint offset,
// CNS). The real transfer protocol (Bluetooth SLIP framing) has no
// source file in the retrieved tree, so — like family/cobalt and
// family/oceanicatom2 — this package registers no DeviceBackend.
package shearwater

import (
	"fmt"
	"time"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

const (
	szBlock          = 0x80
	szSamplePredator = 0x10
	szSamplePetrel   = 0x20

	statusOC = 0x10

	unitsImperial = 1

	ngasmixes = 10
)

const feetToMeters = 0.3048

type parser struct {
	petrel     bool
	samplesize int
	serial     uint32

	cached     bool
	headerSize int
	footerSize int
	ngasmixes  int
	oxygen     [ngasmixes]int
	helium     [ngasmixes]int
	mode       dc.DiveMode
	sensorCal  [3]int

	data []byte
}

// NewPredatorParser returns a Parser for Shearwater Predator dive blobs.
func NewPredatorParser(serial uint32) dc.ParserBackend {
	return &parser{petrel: false, samplesize: szSamplePredator, serial: serial, mode: dc.DiveModeOC}
}

// NewPetrelParser returns a Parser for Shearwater Petrel (and later
// NERD/Perdix, which share the Petrel block format) dive blobs.
func NewPetrelParser(serial uint32) dc.ParserBackend {
	return &parser{petrel: true, samplesize: szSamplePetrel, serial: serial, mode: dc.DiveModeOC}
}

func init() {
	dc.RegisterFamily(dc.FamilyShearwaterPredator, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewPredatorParser(info.Serial), nil
	})
	dc.RegisterFamily(dc.FamilyShearwaterPetrel, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewPetrelParser(info.Serial), nil
	})
}

func (p *parser) Family() dc.Family {
	if p.petrel {
		return dc.FamilyShearwaterPetrel
	}
	return dc.FamilyShearwaterPredator
}

func (p *parser) SetData(data []byte) error {
	p.data = data
	p.cached = false
	p.headerSize, p.footerSize, p.ngasmixes = 0, 0, 0
	for i := range p.oxygen {
		p.oxygen[i], p.helium[i] = 0, 0
	}
	p.mode = dc.DiveModeOC
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	const op = "shearwater.GetDateTime"
	if len(p.data) < 2*szBlock {
		return dc.DateTime{}, newErr(dc.StatusDataFormat, op, nil)
	}

	ticks := byteutil.U32BE(p.data[12:])
	t := time.Unix(int64(ticks), 0).UTC()
	return dc.DateTime{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
	}, nil
}

// cache ports shearwater_predator_parser_cache: block footer-size
// detection (Petrel always has a second footer block; Predator only
// when the footer's first 16-bit word reads the 0xFFFD sentinel), the
// gas-mix table built while scanning every non-empty sample, and the
// three-channel sensor calibration/ADC-offset bytes, including the
// verbatim +1024 adjustment the original calls out as a documented
// guess rather than a known-correct constant.
func (p *parser) cache() error {
	const op = "shearwater.cache"
	if p.cached {
		return nil
	}

	data := p.data
	size := len(data)

	headerSize := szBlock
	footerSize := szBlock
	if size < headerSize+footerSize {
		return newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid data length"))
	}

	if p.petrel || byteutil.U16BE(data[size-footerSize:]) == 0xFFFD {
		footerSize += szBlock
		if size < headerSize+footerSize {
			return newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid data length"))
		}
	}

	mode := dc.DiveModeOC
	nmixes := 0
	var oxygen, helium [ngasmixes]int
	o2Previous, hePrevious := 0, 0

	offset := headerSize
	length := size - footerSize
	for offset < length {
		if offset+p.samplesize > len(data) {
			break
		}
		if byteutil.IsAll(data[offset:offset+p.samplesize], 0x00) {
			offset += p.samplesize
			continue
		}

		status := data[offset+11]
		if status&statusOC == 0 {
			mode = dc.DiveModeCC
		}

		o2 := int(data[offset+7])
		he := int(data[offset+8])
		if o2 != o2Previous || he != hePrevious {
			idx := 0
			for idx < nmixes {
				if o2 == oxygen[idx] && he == helium[idx] {
					break
				}
				idx++
			}
			if idx >= nmixes {
				if idx >= len(oxygen) {
					return newErr(dc.StatusNoMemory, op, fmt.Errorf("maximum number of gas mixes reached"))
				}
				oxygen[idx] = o2
				helium[idx] = he
				nmixes = idx + 1
			}
			o2Previous, hePrevious = o2, he
		}

		offset += p.samplesize
	}

	if len(data) > 92 {
		p.sensorCal[0] = int(byteutil.U16BE(data[87:])) + 1024
		p.sensorCal[1] = int(byteutil.U16BE(data[89:])) + 1024
		p.sensorCal[2] = int(byteutil.U16BE(data[91:])) + 1024
	}

	p.headerSize = headerSize
	p.footerSize = footerSize
	p.ngasmixes = nmixes
	p.oxygen = oxygen
	p.helium = helium
	p.mode = mode
	p.cached = true
	return nil
}

func (p *parser) findGasMix(o2, he int) int {
	for i := 0; i < p.ngasmixes; i++ {
		if o2 == p.oxygen[i] && he == p.helium[i] {
			return i
		}
	}
	return p.ngasmixes
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	const op = "shearwater.GetField"
	if err := p.cache(); err != nil {
		return nil, err
	}

	data := p.data
	footer := len(data) - p.footerSize
	units := data[8]

	switch typ {
	case dc.FieldDiveTime:
		return uint32(byteutil.U16BE(data[footer+6:])) * 60, nil
	case dc.FieldMaxDepth:
		v := float64(byteutil.U16BE(data[footer+4:]))
		if units == unitsImperial {
			v *= feetToMeters
		}
		return v, nil
	case dc.FieldGasMixCount:
		return p.ngasmixes, nil
	case dc.FieldGasMix:
		if index < 0 || index >= p.ngasmixes {
			return nil, newErr(dc.StatusDataFormat, op, fmt.Errorf("gasmix index %d out of range", index))
		}
		oxygen := float64(p.oxygen[index]) / 100.0
		helium := float64(p.helium[index]) / 100.0
		return dc.GasMix{Oxygen: oxygen, Helium: helium, Nitrogen: 1.0 - oxygen - helium}, nil
	case dc.FieldSalinity:
		density := float64(byteutil.U16BE(data[83:]))
		t := dc.SalinitySalt
		if density == 1000 {
			t = dc.SalinityFresh
		}
		return dc.Salinity{Type: t, Density: density}, nil
	case dc.FieldAtmospheric:
		return float64(byteutil.U16BE(data[47:])) / 1000.0, nil
	case dc.FieldDiveMode:
		return p.mode, nil
	case dc.FieldString:
		switch index {
		case 0:
			return dc.String{Description: "Battery at end", Value: fmt.Sprintf("%.1f", float64(data[9])/10.0)}, nil
		case 1:
			return dc.String{Description: "Serial", Value: fmt.Sprintf("%08x", p.serial)}, nil
		case 2:
			return dc.String{Description: "FW Version", Value: fmt.Sprintf("%02x", data[19])}, nil
		case 3:
			switch data[67] {
			case 0:
				return dc.String{Description: "Deco model", Value: "GF"}, nil
			case 1:
				return dc.String{Description: "Deco model", Value: "VPM-B"}, nil
			case 2:
				return dc.String{Description: "Deco model", Value: "VPM-B/GFS"}, nil
			default:
				return nil, newErr(dc.StatusDataFormat, op, nil)
			}
		case 4:
			switch data[67] {
			case 0:
				return dc.String{Description: "Deco model info", Value: fmt.Sprintf("GF %d/%d", data[4], data[5])}, nil
			case 1:
				return dc.String{Description: "Deco model info", Value: fmt.Sprintf("VPM-B +%d", data[68])}, nil
			case 2:
				return dc.String{Description: "Deco model info", Value: fmt.Sprintf("VPM-B/GFS +%d %d%%", data[68], data[85])}, nil
			default:
				return nil, newErr(dc.StatusDataFormat, op, nil)
			}
		default:
			return nil, newErr(dc.StatusUnsupported, op, nil)
		}
	default:
		return nil, newErr(dc.StatusUnsupported, op, nil)
	}
}

// SamplesForeach ports shearwater_predator_parser_samples_foreach: the
// fixed 10-second sample clock, depth/temperature decode (with the
// original's negative-temperature fixup), PPO2 derived from the raw ADC
// counts and calibration values when in closed-circuit mode (rather than
// the SENSOR_AVERAGE build variant, which this port doesn't carry),
// Petrel-only setpoint offset and CNS, gas-mix-change detection, and the
// NDL/deco-stop sample.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	const op = "shearwater.SamplesForeach"
	if err := p.cache(); err != nil {
		return err
	}

	data := p.data
	units := data[8]

	o2Previous, hePrevious := 0, 0
	elapsed := uint32(0)
	offset := p.headerSize
	length := len(data) - p.footerSize

	for offset < length {
		if offset+p.samplesize > len(data) {
			break
		}
		if byteutil.IsAll(data[offset:offset+p.samplesize], 0x00) {
			offset += p.samplesize
			continue
		}

		elapsed += 10
		cb(dc.Sample{Type: dc.SampleTime, Time: elapsed})

		depth := float64(byteutil.U16BE(data[offset:]))
		if units == unitsImperial {
			depth = depth * feetToMeters / 10.0
		} else {
			depth /= 10.0
		}
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		temperature := int(int8(data[offset+13]))
		if temperature < 0 {
			temperature += 102
			if temperature > 0 {
				temperature = 0
			}
		}
		tempC := float64(temperature)
		if units == unitsImperial {
			tempC = (tempC - 32.0) * (5.0 / 9.0)
		}
		cb(dc.Sample{Type: dc.SampleTemperature, Temperature: tempC})

		status := data[offset+11]
		if status&statusOC == 0 {
			if data[86]&0x01 != 0 {
				cb(dc.Sample{Type: dc.SamplePPO2, PPO2: float64(data[offset+12]) * float64(p.sensorCal[0]) / 100000.0})
			}
			if data[86]&0x02 != 0 {
				cb(dc.Sample{Type: dc.SamplePPO2, PPO2: float64(data[offset+14]) * float64(p.sensorCal[1]) / 100000.0})
			}
			if data[86]&0x04 != 0 {
				cb(dc.Sample{Type: dc.SamplePPO2, PPO2: float64(data[offset+15]) * float64(p.sensorCal[2]) / 100000.0})
			}

			var setpoint float64
			if p.petrel {
				setpoint = float64(data[offset+18]) / 100.0
			} else if status&0x04 != 0 { // SETPOINT_HIGH
				setpoint = float64(data[18]) / 100.0
			} else {
				setpoint = float64(data[17]) / 100.0
			}
			cb(dc.Sample{Type: dc.SampleSetpoint, Setpoint: setpoint})
		}

		if p.petrel {
			cb(dc.Sample{Type: dc.SampleCNS, CNS: float64(data[offset+22]) / 100.0})
		}

		o2 := int(data[offset+7])
		he := int(data[offset+8])
		if o2 != o2Previous || he != hePrevious {
			idx := p.findGasMix(o2, he)
			if idx >= p.ngasmixes {
				return newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid gas mix"))
			}
			cb(dc.Sample{Type: dc.SampleGasMix, GasMix: idx})
			o2Previous, hePrevious = o2, he
		}

		decoStop := byteutil.U16BE(data[offset+2:])
		d := dc.Deco{Time: uint32(data[offset+9]) * 60}
		if decoStop != 0 {
			d.Type = dc.DecoDecoStop
			depth := float64(decoStop)
			if units == unitsImperial {
				depth *= feetToMeters
			}
			d.Depth = depth
		} else {
			d.Type = dc.DecoNDL
		}
		cb(dc.Sample{Type: dc.SampleDeco, DecoValue: d})

		offset += p.samplesize
	}

	return nil
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

// Package cobalt implements the Parser for the Atomics Cobalt, grounded
// directly on atomics_cobalt_parser.c's fixed-header-plus-gasmix-table
// layout and its pressure/depth calibration.
//
// No atomics_cobalt.c (the device half) exists anywhere in the retrieved
// source tree — only the parser. The Cobalt talks over a USB HID report
// protocol rather than a plain serial byte stream, which this module's
// Transport interface does not model; Device support for this family is
// therefore out of scope here (see DESIGN.md), and only the Parser, which
// operates purely on an already-downloaded memory blob, is implemented.
package cobalt

import (
	"fmt"

	dc "github.com/shaunagostinho/divecomputer"
	"github.com/shaunagostinho/divecomputer/byteutil"
)

const (
	szHeader    = 228
	szGasMix    = 18
	szGasSwitch = 6
	szSegment   = 16

	// Physical unit constants the original expresses pressures and
	// volumes in terms of (atomics_cobalt.h/units.h).
	unitBar     = 100000.0                    // Pa per bar
	unitATM     = 101325.0                    // Pa per standard atmosphere
	unitPSI     = unitATM / 14.695948775221205 // Pa per psi
	unitCuft    = 28.316846592                 // liters per cubic foot
	unitGravity = 9.80665                      // m/s^2

	defaultDensity = 1025.0 // kg/m^3, salt water
)

// EventType values this family emits through SampleEvent.
const (
	EventAscent dc.EventType = iota
	EventCeiling
	EventPO2
)

type parser struct {
	data         []byte
	atmospheric  float64 // Pa, 0 means "derive from the dive header"
	hydrostatic  float64 // Pa per meter of seawater
}

// NewParser returns a Parser for Atomics Cobalt dive blobs. The hydrostatic
// calibration defaults to the original's salt-water constant; call
// SetCalibration to override either value the way
// atomics_cobalt_parser_set_calibration does for divers who log their own
// surface pressure or water density.
func NewParser() dc.ParserBackend {
	return &parser{hydrostatic: defaultDensity * unitGravity}
}

func init() {
	dc.RegisterFamily(dc.FamilyAtomicsCobalt, func(ctx *dc.Context, info dc.DevInfo) (dc.ParserBackend, error) {
		return NewParser(), nil
	})
}

func (p *parser) Family() dc.Family { return dc.FamilyAtomicsCobalt }

// SetCalibration overrides the surface pressure (Pa) and the water
// density*gravity constant (Pa/m) used to convert raw pressure samples to
// depth. A zero atmospheric value (the default) falls back to the value
// embedded in each dive's own header.
func (p *parser) SetCalibration(atmospheric, hydrostatic float64) {
	p.atmospheric = atmospheric
	p.hydrostatic = hydrostatic
}

func (p *parser) SetData(data []byte) error {
	p.data = data
	return nil
}

func (p *parser) GetDateTime() (dc.DateTime, error) {
	if len(p.data) < szHeader {
		return dc.DateTime{}, newErr(dc.StatusDataFormat, "cobalt.GetDateTime", nil)
	}
	d := p.data
	return dc.DateTime{
		Year:   int(byteutil.U16LE(d[0x14:])),
		Month:  int(d[0x16]),
		Day:    int(d[0x17]),
		Hour:   int(d[0x18]),
		Minute: int(d[0x19]),
		Second: 0,
	}, nil
}

func (p *parser) atmosphericPressure() float64 {
	if p.atmospheric != 0 {
		return p.atmospheric
	}
	return float64(byteutil.U16LE(p.data[0x26:])) * unitBar / 1000.0
}

func (p *parser) GetField(typ dc.FieldType, index int) (interface{}, error) {
	const op = "cobalt.GetField"
	if len(p.data) < szHeader {
		return nil, newErr(dc.StatusDataFormat, op, nil)
	}
	d := p.data

	switch typ {
	case dc.FieldDiveTime:
		return uint32(byteutil.U16LE(d[0x58:])) * 60, nil

	case dc.FieldMaxDepth:
		return (float64(byteutil.U16LE(d[0x56:]))*unitBar/1000.0 - p.atmosphericPressure()) / p.hydrostatic, nil

	case dc.FieldGasMixCount, dc.FieldTankCount:
		return int(d[0x2a]), nil

	case dc.FieldGasMix:
		base := szHeader + szGasMix*index
		if base+6 > len(d) {
			return nil, newErr(dc.StatusDataFormat, op, fmt.Errorf("gasmix index %d out of range", index))
		}
		helium := float64(d[base+5]) / 100.0
		oxygen := float64(d[base+4]) / 100.0
		return dc.GasMix{Helium: helium, Oxygen: oxygen, Nitrogen: 1.0 - oxygen - helium}, nil

	case dc.FieldTemperatureSurface:
		return (float64(d[0x1B]) - 32.0) * (5.0 / 9.0), nil

	case dc.FieldTank:
		return p.getTank(index)

	case dc.FieldDiveMode:
		switch d[0x24] {
		case 0, 2:
			return dc.DiveModeOC, nil
		case 1:
			return dc.DiveModeCC, nil
		default:
			return nil, newErr(dc.StatusDataFormat, op, fmt.Errorf("unrecognized dive mode byte %#x", d[0x24]))
		}

	case dc.FieldString:
		return p.getString(index)

	default:
		return nil, newErr(dc.StatusUnsupported, op, nil)
	}
}

func (p *parser) getTank(index int) (dc.Tank, error) {
	const op = "cobalt.getTank"
	d := p.data
	base := szHeader + szGasMix*index
	if base+16 > len(d) {
		return dc.Tank{}, newErr(dc.StatusDataFormat, op, fmt.Errorf("tank index %d out of range", index))
	}
	q := d[base:]

	tank := dc.Tank{GasMix: index}
	switch q[2] {
	case 1, 2: // cuft at psi / cuft at bar
		workpressure := float64(byteutil.U16LE(q[10:]))
		if workpressure == 0 {
			return dc.Tank{}, newErr(dc.StatusDataFormat, op, fmt.Errorf("zero work pressure"))
		}
		tank.Type = dc.TankImperial
		tank.Volume = float64(byteutil.U16LE(q[8:])) * unitCuft * 1000.0
		tank.Volume /= workpressure * unitPSI / unitATM
		tank.WorkPressure = workpressure * unitPSI / unitBar
	case 3: // wet volume, 1/10 liter
		tank.Type = dc.TankMetric
		tank.Volume = float64(byteutil.U16LE(q[8:])) / 10.0
		tank.WorkPressure = 0.0
	default:
		return dc.Tank{}, newErr(dc.StatusDataFormat, op, fmt.Errorf("unrecognized tank type byte %#x", q[2]))
	}
	tank.BeginBar = float64(byteutil.U16LE(q[6:])) * unitPSI / unitBar
	tank.EndBar = float64(byteutil.U16LE(q[14:])) * unitPSI / unitBar
	return tank, nil
}

func (p *parser) getString(index int) (dc.String, error) {
	d := p.data
	switch index {
	case 0:
		return dc.String{Description: "Serial", Value: fmt.Sprintf("%c%c%c%c-%c%c%c%c",
			d[4], d[5], d[6], d[7], d[8], d[9], d[10], d[11])}, nil
	case 1:
		return dc.String{Description: "Program Version", Value: fmt.Sprintf("%.2f", float64(byteutil.U16LE(d[30:]))/100.0)}, nil
	case 2:
		return dc.String{Description: "Boot Version", Value: fmt.Sprintf("%.2f", float64(byteutil.U16LE(d[32:]))/100.0)}, nil
	case 3:
		return dc.String{Description: "NoFly Time", Value: fmt.Sprintf("%d:%02d", d[0x52], d[0x53])}, nil
	default:
		return dc.String{}, newErr(dc.StatusUnsupported, "cobalt.getString", nil)
	}
}

// SamplesForeach implements atomics_cobalt_parser_samples_foreach: fixed
// szSegment-byte samples immediately after the header/gasmix/gasswitch
// tables, each carrying depth, tank pressure, current gas mix, temperature,
// a violation bitmask (ascent-rate, ceiling, PO2 events) and an NDL/deco
// countdown.
func (p *parser) SamplesForeach(cb dc.SampleCallback) error {
	const op = "cobalt.SamplesForeach"
	d := p.data
	size := len(d)
	if size < szHeader {
		return newErr(dc.StatusDataFormat, op, nil)
	}

	interval := int(d[0x1a])
	ngasmixes := int(d[0x2a])
	nswitches := int(d[0x2b])
	nsegments := int(byteutil.U16LE(d[0x50:]))

	header := szHeader + szGasMix*ngasmixes + szGasSwitch*nswitches
	if size < header+szSegment*nsegments {
		return newErr(dc.StatusDataFormat, op, nil)
	}

	atmospheric := p.atmosphericPressure()

	tank := 0
	for tank < ngasmixes {
		if byteutil.U16LE(d[szHeader+szGasMix*tank+12:]) == 1 {
			break
		}
		tank++
	}
	if tank >= ngasmixes {
		return newErr(dc.StatusDataFormat, op, fmt.Errorf("no primary tank found"))
	}

	const noGasMix = 0xFFFFFFFF
	gasmixPrevious := uint32(noGasMix)

	time := uint32(0)
	inDeco := false
	for offset := header; offset+szSegment <= size; offset += szSegment {
		time += uint32(interval)
		cb(dc.Sample{Type: dc.SampleTime, Time: time})

		depthRaw := byteutil.U16LE(d[offset:])
		depth := (float64(depthRaw)*unitBar/1000.0 - atmospheric) / p.hydrostatic
		cb(dc.Sample{Type: dc.SampleDepth, Depth: depth})

		pressureRaw := byteutil.U16LE(d[offset+2:])
		cb(dc.Sample{Type: dc.SamplePressure, Pressure: dc.Pressure{Tank: tank, Bar: float64(pressureRaw) * unitPSI / unitBar}})

		gasmix := uint32(d[offset+4])
		if gasmix != gasmixPrevious {
			idx := 0
			for idx < ngasmixes {
				if d[szHeader+szGasMix*idx] == byte(gasmix) {
					break
				}
				idx++
			}
			if idx >= ngasmixes {
				return newErr(dc.StatusDataFormat, op, fmt.Errorf("invalid gas mix index"))
			}
			cb(dc.Sample{Type: dc.SampleGasMix, GasMix: idx})
			gasmixPrevious = gasmix
		}

		temperature := float64(d[offset+8])
		cb(dc.Sample{Type: dc.SampleTemperature, Temperature: (temperature - 32.0) * (5.0 / 9.0)})

		violation := d[offset+11]
		if violation&0x01 != 0 {
			cb(dc.Sample{Type: dc.SampleEvent, EventValue: dc.Event{Type: EventAscent}})
		}
		if violation&0x04 != 0 {
			cb(dc.Sample{Type: dc.SampleEvent, EventValue: dc.Event{Type: EventCeiling}})
		}
		if violation&0x08 != 0 {
			cb(dc.Sample{Type: dc.SampleEvent, EventValue: dc.Event{Type: EventPO2}})
		}

		ndl := uint32(d[offset+5]) * 60
		if ndl > 0 {
			inDeco = false
		} else if ndl == 0 && violation&0x02 != 0 {
			inDeco = true
		}
		deco := dc.Deco{Time: ndl, Depth: 0.0}
		if inDeco {
			deco.Type = dc.DecoDecoStop
		} else {
			deco.Type = dc.DecoNDL
		}
		cb(dc.Sample{Type: dc.SampleDeco, DecoValue: deco})
	}

	return nil
}

func newErr(status dc.Status, op string, cause error) error {
	return &dc.Error{Status: status, Op: op, Err: cause}
}

package divecomputer

// SampleType tags the variant carried by a Sample (spec §3).
type SampleType int

const (
	SampleTime SampleType = iota
	SampleDepth
	SamplePressure
	SampleTemperature
	SampleEvent
	SampleRBT
	SampleHeartbeat
	SampleBearing
	SampleVendor
	SampleSetpoint
	SamplePPO2
	SampleCNS
	SampleDeco
	SampleGasMix
)

// EventType tags a Sample of type SampleEvent. The concrete values a
// family emits are family-specific; the begin/end convention is shared.
type EventType int

// DecoType tags a Sample of type SampleDeco.
type DecoType int

const (
	DecoNDL DecoType = iota
	DecoSafetyStop
	DecoDecoStop
	DecoDeepStop
)

// Pressure is the payload of a SamplePressure sample: tank index plus bar.
type Pressure struct {
	Tank int
	Bar  float64
}

// Event is the payload of a SampleEvent sample.
type Event struct {
	Type       EventType
	TimeOffset uint32
	Flags      uint32
	Value      uint32
	Begin      bool
	End        bool
}

// VendorSample is the payload of a SampleVendor sample: a vendor-specific
// tag plus raw bytes borrowed from the parser's blob (spec §9: canonical
// samples borrow from the blob; the blob's lifetime must cover the whole
// SamplesForeach invocation).
type VendorSample struct {
	Type int
	Data []byte
}

// Deco is the payload of a SampleDeco sample.
type Deco struct {
	Type  DecoType
	Time  uint32
	Depth float64
}

// Sample is the tagged variant emitted by Parser.SamplesForeach. Exactly
// one field group below is meaningful, selected by Type.
type Sample struct {
	Type SampleType

	Time        uint32 // SampleTime: seconds from dive start
	Depth       float64
	Pressure    Pressure
	Temperature float64
	EventValue  Event
	RBT         uint32
	Heartbeat   uint32
	Bearing     uint32
	VendorValue VendorSample
	Setpoint    float64
	PPO2        float64
	CNS         float64
	DecoValue   Deco
	GasMix      int
}

// SampleCallback receives one Sample per call during SamplesForeach.
type SampleCallback func(Sample)

// FieldType selects the variant addressed by Parser.GetField (spec §3).
type FieldType int

const (
	FieldDiveTime FieldType = iota
	FieldMaxDepth
	FieldAvgDepth
	FieldGasMixCount
	FieldGasMix
	FieldSalinity
	FieldAtmospheric
	FieldTemperatureSurface
	FieldTemperatureMin
	FieldTemperatureMax
	FieldTankCount
	FieldTank
	FieldDiveMode
	FieldString
)

// SalinityType selects fresh vs. salt water for the Salinity field.
type SalinityType int

const (
	SalinityFresh SalinityType = iota
	SalinitySalt
)

// Salinity is the FieldSalinity value.
type Salinity struct {
	Type    SalinityType
	Density float64 // kg/m^3
}

// GasMix is the FieldGasMix value for a given index.
type GasMix struct {
	Helium, Oxygen, Nitrogen float64 // fractions, sum to 1.0
}

// TankType selects the unit system a Tank's volume/pressure were recorded
// in on the wire.
type TankType int

const (
	TankNone TankType = iota
	TankMetric
	TankImperial
)

// Tank is the FieldTank value for a given index.
type Tank struct {
	GasMix       int // index into the dive's gas mix table, or -1 if unknown
	Type         TankType
	Volume       float64 // liters water
	WorkPressure float64 // bar
	BeginBar     float64
	EndBar       float64
}

// DiveMode selects the FieldDiveMode value.
type DiveMode int

const (
	DiveModeFreedive DiveMode = iota
	DiveModeGauge
	DiveModeOC
	DiveModeCC
)

// String is the FieldString value for a given index: a human-readable
// label plus its value, e.g. {"Serial", "123456"} or {"Battery", "3.1V"}.
type String struct {
	Description string
	Value       string
}

// DateTime is the broken-down time returned by Parser.GetDateTime.
type DateTime struct {
	Year, Month, Day        int
	Hour, Minute, Second    int
	// TimeZoneOffsetMinutes is 0 for families that only ever record local
	// time with no timezone information (the common case).
	TimeZoneOffsetMinutes int
}

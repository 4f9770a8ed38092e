package divecomputer

import "fmt"

// ParserFactory builds a family's ParserBackend. Families register one via
// RegisterFamily from their package's init(), the same registry idiom the
// standard library uses for image.RegisterFormat/sql.Register — required
// here because family packages import this package for DeviceBackend and
// ParserBackend, so this package cannot import them back without a cycle.
type ParserFactory func(ctx *Context, info DevInfo) (ParserBackend, error)

var parserRegistry = map[Family]ParserFactory{}

// RegisterFamily registers factory as the ParserFactory for family. Called
// from each family package's init(); panics on a duplicate registration,
// since that can only mean a programming error.
func RegisterFamily(family Family, factory ParserFactory) {
	if _, exists := parserRegistry[family]; exists {
		panic(fmt.Sprintf("divecomputer: family %s already registered", family))
	}
	parserRegistry[family] = factory
}

// NewParserFromDevice builds the correct Parser for dev's family and
// devinfo (spec §4.4). Two quirks live here exclusively, exactly as
// upstream's parser.c dispatcher: within the Oceanic Atom2 family, model
// 0x4354 ("React Pro White") dispatches to the VEO250 parser; the Suunto
// Vyper family routes model 0x01 to the EON parser.
func NewParserFromDevice(dev *Device) (*Parser, error) {
	family := dev.Family()
	info := DevInfo{}
	if dev.DevInfo() != nil {
		info = *dev.DevInfo()
	}

	switch family {
	case FamilyOceanicAtom2:
		if info.Model == 0x4354 {
			family = FamilyOceanicVEO250
		}
	case FamilySuuntoVyper:
		if info.Model == 0x01 {
			family = FamilySuuntoEON
		}
	}

	factory, ok := parserRegistry[family]
	if !ok {
		return nil, newErr(StatusInvalidArgs, "dispatch.NewParserFromDevice", fmt.Errorf("no parser registered for family %s", family))
	}

	backend, err := factory(dev.Context(), info)
	if err != nil {
		return nil, err
	}
	return NewParser(dev.Context(), backend), nil
}

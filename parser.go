package divecomputer

// ParserBackend is the per-family vtable a Parser drives (spec §4.2). A
// family that doesn't support a given query (e.g. no device clock, so no
// datetime) returns a StatusUnsupported *Error from that method.
type ParserBackend interface {
	Family() Family
	SetData(data []byte) error
	GetDateTime() (DateTime, error)
	GetField(typ FieldType, index int) (interface{}, error)
	SamplesForeach(cb SampleCallback) error
}

// Parser is a stateless-until-SetData decoder bound to one family (spec
// §4.2). It borrows the blob passed to SetData for the lifetime of all
// subsequent queries; the caller owns that memory.
type Parser struct {
	family  Family
	ctx     *Context
	backend ParserBackend
	data    []byte
}

// NewParser wires a family-specific backend into a Parser. NewParserFromDevice
// calls it with the backend a family's registered factory returns.
func NewParser(ctx *Context, backend ParserBackend) *Parser {
	if ctx == nil {
		ctx = NewContext()
	}
	return &Parser{family: backend.Family(), ctx: ctx, backend: backend}
}

// Family returns the parser's immutable family tag.
func (p *Parser) Family() Family { return p.family }

// Context returns the parser's Context.
func (p *Parser) Context() *Context { return p.ctx }

// Data returns the blob passed to the most recent SetData call.
func (p *Parser) Data() []byte { return p.data }

// SetData binds a new dive blob, invalidating any header cache the
// backend built for a previous blob.
func (p *Parser) SetData(data []byte) error {
	if err := p.backend.SetData(data); err != nil {
		return err
	}
	p.data = data
	return nil
}

// GetDateTime returns the dive's start time.
func (p *Parser) GetDateTime() (DateTime, error) {
	return p.backend.GetDateTime()
}

// GetField returns the typed value for (typ, index). The concrete type
// behind the returned interface{} matches the table in spec §3 (e.g.
// FieldMaxDepth -> float64, FieldGasMix -> GasMix, FieldTank -> Tank).
func (p *Parser) GetField(typ FieldType, index int) (interface{}, error) {
	return p.backend.GetField(typ, index)
}

// SamplesForeach walks the sample stream, invoking cb once per canonical
// sample in non-decreasing time order.
func (p *Parser) SamplesForeach(cb SampleCallback) error {
	return p.backend.SamplesForeach(cb)
}

// GetMaxDepth is a convenience wrapper over GetField(FieldMaxDepth, 0).
func (p *Parser) GetMaxDepth() (float64, error) {
	v, err := p.GetField(FieldMaxDepth, 0)
	if err != nil {
		return 0, err
	}
	f, _ := v.(float64)
	return f, nil
}

// GetDiveTime is a convenience wrapper over GetField(FieldDiveTime, 0).
func (p *Parser) GetDiveTime() (uint32, error) {
	v, err := p.GetField(FieldDiveTime, 0)
	if err != nil {
		return 0, err
	}
	u, _ := v.(uint32)
	return u, nil
}

package divecomputer

import (
	"fmt"
	"log"
)

// Severity is a Context logger level.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityDebug
)

// Logger is the logging half of a Context. The default implementation
// mirrors the teacher's log.Printf("[tag] ...") idiom; callers may supply
// their own to route library logs into an existing logging stack.
type Logger interface {
	Log(severity Severity, component, msg string)
}

// DevInfo is the device-identity event (§4.1): model byte, firmware word,
// and serial number, emitted once per session as soon as they are known.
type DevInfo struct {
	Model    uint32
	Firmware uint32
	Serial   uint32
}

// Clock is the device-clock-calibration event, emitted once per session by
// families that expose a device clock.
type Clock struct {
	SysTime  int64 // caller's wall clock at the moment devtime was read
	DevTime  int64 // the device's own clock reading
}

// Progress is the download-progress event. current and maximum are
// monotone non-decreasing within one foreach/dump session; maximum may be
// refined once after the logbook scan (spec §4.1.2 step 3).
type Progress struct {
	Current uint32
	Maximum uint32
}

// Vendor is a raw escape hatch for vendor-specific diagnostic payloads a
// caller may want to record (e.g. raw firmware blocks) without the core
// needing to understand their structure.
type Vendor struct {
	Data []byte
}

// EventSink receives the events a Device emits while downloading. All
// methods are optional: a caller only interested in progress embeds
// NopEventSink and overrides OnProgress.
type EventSink interface {
	OnWaiting()
	OnProgress(Progress)
	OnDevInfo(DevInfo)
	OnClock(Clock)
	OnVendor(Vendor)
}

// Context bundles a Logger and an EventSink and is threaded explicitly into
// every Device/Parser constructor, per spec §9's "avoid process-wide state"
// design note: no package-level logger or event bus exists anywhere in
// this library.
type Context struct {
	Logger Logger
	Events EventSink
}

// NewContext returns a Context using the default stdlib-log-backed Logger
// and a no-op EventSink. Callers typically replace Events with their own
// sink and may leave Logger as the default.
func NewContext() *Context {
	return &Context{Logger: NewStdLogger(), Events: NopEventSink{}}
}

func (c *Context) logf(severity Severity, component, format string, args ...interface{}) {
	if c == nil || c.Logger == nil {
		return
	}
	c.Logger.Log(severity, component, fmt.Sprintf(format, args...))
}

// NopEventSink discards every event; embed it to implement EventSink while
// only overriding the callbacks a caller cares about.
type NopEventSink struct{}

func (NopEventSink) OnWaiting()           {}
func (NopEventSink) OnProgress(Progress)  {}
func (NopEventSink) OnDevInfo(DevInfo)    {}
func (NopEventSink) OnClock(Clock)        {}
func (NopEventSink) OnVendor(Vendor)      {}

// StdLogger is the default Logger, backed by the standard library's log
// package using the teacher's bracket-tag idiom: "[component] message".
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger returns a StdLogger writing through the standard library's
// default logger.
func NewStdLogger() *StdLogger {
	return &StdLogger{logger: log.Default()}
}

func (l *StdLogger) Log(severity Severity, component, msg string) {
	l.logger.Printf("[%s] %s: %s", component, severityTag(severity), msg)
}

func severityTag(s Severity) string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARN"
	case SeverityInfo:
		return "INFO"
	case SeverityDebug:
		return "DEBUG"
	default:
		return "?"
	}
}

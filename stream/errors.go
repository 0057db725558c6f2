// Package stream implements the §7 error taxonomy, the per-stream
// diagnostic summary, and the run configuration that the StreamFacade
// (package stream/facade) resolves into the historic or live pipeline
// (spec §4.9, §7).
package stream

import "fmt"

// ErrorKind tags one of the six error kinds from spec §7.
type ErrorKind int

const (
	KindConfig ErrorKind = iota + 1
	KindBroker
	KindFetch
	KindParser
	KindRecord
	KindLive
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindBroker:
		return "BrokerError"
	case KindFetch:
		return "FetchError"
	case KindParser:
		return "ParserError"
	case KindRecord:
		return "RecordError"
	case KindLive:
		return "LiveError"
	default:
		return "UnknownError"
	}
}

// Error is the tagged wrapper used across the module for every error
// kind in spec §7, so the orchestrator can dispatch on Kind with one
// switch instead of six sentinel types.
type Error struct {
	Kind ErrorKind
	Err  error

	// Fatal marks an error that must abort the stream outright
	// (ConfigError, BrokerError always; Fetch/Parser only when they
	// empty an entire chunk; Live only after 5 failed reconnects in
	// 60s — spec §7).
	Fatal bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, fatal bool, err error) *Error {
	return &Error{Kind: kind, Err: err, Fatal: fatal}
}

// ConfigErrorf builds a fatal ConfigError (spec §7).
func ConfigErrorf(format string, args ...any) *Error {
	return newErr(KindConfig, true, fmt.Errorf(format, args...))
}

// BrokerErrorf builds a fatal BrokerError (spec §7).
func BrokerErrorf(format string, args ...any) *Error {
	return newErr(KindBroker, true, fmt.Errorf(format, args...))
}

// FetchErrorf builds a FetchError; fatal only escalates when the
// caller determines the owning chunk ended up with zero files.
func FetchErrorf(fatal bool, format string, args ...any) *Error {
	return newErr(KindFetch, fatal, fmt.Errorf(format, args...))
}

// ParserErrorf builds a ParserError; same escalation rule as FetchError.
func ParserErrorf(fatal bool, format string, args ...any) *Error {
	return newErr(KindParser, fatal, fmt.Errorf(format, args...))
}

// RecordErrorf builds a RecordError; never fatal, always counted.
func RecordErrorf(format string, args ...any) *Error {
	return newErr(KindRecord, false, fmt.Errorf(format, args...))
}

// LiveErrorf builds a LiveError; fatal only after 5 consecutive
// reconnect failures within 60s (spec §7).
func LiveErrorf(fatal bool, format string, args ...any) *Error {
	return newErr(KindLive, fatal, fmt.Errorf(format, args...))
}

// ExitCode maps an error's Kind to the §6 CLI exit code convention.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *Error
	if !asStreamError(err, &se) {
		return 1
	}
	switch se.Kind {
	case KindConfig:
		return 2
	case KindBroker:
		return 3
	case KindFetch, KindParser:
		return 4
	default:
		return 1
	}
}

func asStreamError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

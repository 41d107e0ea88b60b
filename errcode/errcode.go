// Package errcode defines the layout controller's error taxonomy (§7).
//
// Code is a stable, comparable identifier suitable for logging and for
// branching on error category without string matching on Error() text.
package errcode

// Code is a stable error identifier. It is a string newtype, comparable,
// allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes, one per §7 category.
const (
	// OK is never itself returned as an error; it exists so Of(nil) has a
	// sensible zero value for logging.
	OK Code = "ok"

	// ErrBus is a transient I²C/GPIO bus failure. Logged at warning; the
	// tick's operation is skipped and retried next tick.
	ErrBus Code = "bus_error"

	// ErrDeviceAbsent means a bus probe found no device at the expected
	// address at startup. Logged at warning; the device's operations
	// become no-ops and dependent features disable themselves.
	ErrDeviceAbsent Code = "device_absent"

	// ErrConfigInvalid is a calibration value out of its declared range,
	// an unknown color, or an unknown turnout/signal index. Logged at
	// error; startup aborts with a non-zero exit.
	ErrConfigInvalid Code = "config_invalid"

	// ErrContention is a second motion requested on a turnout that is
	// already in motion, beyond the wait window. The prior motion is
	// killed and replaced; logged at error.
	ErrContention Code = "contention"

	// ErrOperatorInput is an unknown yard-route key or a blocked midway
	// toggle. An error tone plays, the input is discarded, no state
	// changes.
	ErrOperatorInput Code = "operator_input_invalid"

	// Busy/Unsupported/Timeout are generic, reusable across components.
	Busy        Code = "busy"
	Unsupported Code = "unsupported"
	Timeout     Code = "timeout"

	Error Code = "error" // generic fallback
)

// E wraps a Code with an operation name and an optional cause, for log
// lines that need more than the bare code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E from an operation, a code, and an optional cause.
func Wrap(op string, c Code, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Transient reports whether err is the kind of failure the main loop
// should retry next tick rather than treat as fatal (§7 propagation
// policy: only startup configuration errors are fatal).
func Transient(err error) bool {
	switch Of(err) {
	case ErrBus, ErrDeviceAbsent, Busy, Timeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether err should abort startup.
func Fatal(err error) bool {
	return Of(err) == ErrConfigInvalid
}

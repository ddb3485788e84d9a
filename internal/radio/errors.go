package radio

import (
	"errors"
	"fmt"
	"strings"
)

// AdapterState represents the specific kind of radio stack failure.
type AdapterState string

const (
	AdapterOff   AdapterState = "adapter_off"
	Unauthorized AdapterState = "unauthorized"
	Unsupported  AdapterState = "unsupported"
	NotConnected AdapterState = "not_connected"
)

// RadioError represents any adapter or link-state problem.
type RadioError struct {
	State AdapterState
	Msg   string
}

func (e *RadioError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare RadioError values by State.
func (e *RadioError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*RadioError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for adapter states.
var (
	ErrAdapterOff   = &RadioError{State: AdapterOff}
	ErrUnauthorized = &RadioError{State: Unauthorized}
	ErrUnsupported  = &RadioError{State: Unsupported}
	ErrNotConnected = &RadioError{State: NotConnected}
)

// ErrNoStandardServices is the soft failure returned when a peer connects but
// exposes no standard health services. The link stays up; callers may fall
// back to a vendor integration path.
var ErrNoStandardServices = errors.New("peer exposes no standard health services")

// NormalizeError maps known upstream radio-stack error strings to structured
// RadioError types. It ensures consistent handling even if the upstream
// library changes messages slightly. Returns wrapped errors to preserve
// original context.
//
// The "have=N" states come from the platform central manager: 2=unsupported,
// 3=unauthorized, 4=powered off.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "have=4"),
		containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "powered off"):
		return fmt.Errorf("%w: %v", ErrAdapterOff, err)
	case containsIgnoreCase(msg, "have=3"),
		containsIgnoreCase(msg, "unauthorized"),
		containsIgnoreCase(msg, "permission denied"),
		containsIgnoreCase(msg, "operation not permitted"):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case containsIgnoreCase(msg, "have=2"),
		containsIgnoreCase(msg, "unsupported"),
		containsIgnoreCase(msg, "no such device"):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	case containsIgnoreCase(msg, "not connected"),
		containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsAdapterState reports whether err is a RadioError with the given state.
func IsAdapterState(err error, state AdapterState) bool {
	var rerr *RadioError
	if errors.As(err, &rerr) {
		return rerr.State == state
	}
	return false
}

package types

import "fmt"

// Status is the training-session state.
type Status int

// Session states.
const (
	StatusIdle Status = iota
	StatusLiveActive
	StatusDemoActive
)

// String returns the status name used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusLiveActive:
		return "live"
	case StatusDemoActive:
		return "demo"
	default:
		return "idle"
	}
}

// Active reports whether a session is running.
func (s Status) Active() bool {
	return s != StatusIdle
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "live":
		*s = StatusLiveActive
	case "demo":
		*s = StatusDemoActive
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

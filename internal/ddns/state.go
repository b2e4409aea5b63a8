package ddns

import "time"

// Status is the human-facing outcome of the latest cycle or control operation.
type Status string

const (
	StatusIdle            Status = "Idle"
	StatusStopped         Status = "Stopped"
	StatusNoChange        Status = "NoChange"
	StatusSuccess         Status = "Success"
	StatusFailedDetection Status = "FailedDetection"
	StatusFailedUpdate    Status = "FailedUpdate"
)

// Statuses lists every status code in a stable order.
var Statuses = []Status{
	StatusIdle,
	StatusStopped,
	StatusNoChange,
	StatusSuccess,
	StatusFailedDetection,
	StatusFailedUpdate,
}

// Terminal reports whether s can end a single cycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusNoChange, StatusSuccess, StatusFailedDetection, StatusFailedUpdate:
		return true
	}
	return false
}

// Valid reports whether s is one of the known codes.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// State is the observable state of an agent. A zero LastSuccessAt or an empty
// CurrentAddress means the value has never been set; HasAddress and
// HasLastSuccess make that explicit for JSON consumers.
type State struct {
	Running        bool      `json:"running"`
	Status         Status    `json:"status"`
	CurrentAddress string    `json:"currentAddress,omitempty"`
	HasAddress     bool      `json:"hasAddress"`
	LastSuccessAt  time.Time `json:"lastSuccessAt,omitempty"`
	HasLastSuccess bool      `json:"hasLastSuccess"`
}

func newState() State {
	return State{Status: StatusIdle}
}

// Address returns the last resolved address, if any.
func (s State) Address() (string, bool) {
	return s.CurrentAddress, s.HasAddress
}

// LastSuccess returns the time of the last successful publish, if any.
func (s State) LastSuccess() (time.Time, bool) {
	return s.LastSuccessAt, s.HasLastSuccess
}

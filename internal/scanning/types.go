package scanning

import (
	"context"
	"time"

	"github.com/Ullaakut/nmap/v3"
)

// Mode selects what a probe asks of the scan engine.
type Mode string

const (
	// ModeDiscovery checks host reachability.
	ModeDiscovery Mode = "discovery"
	// ModePortScan enumerates the most common TCP ports.
	ModePortScan Mode = "portscan"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDiscovery || m == ModePortScan
}

// Title is the progress description shown while a batch of this mode runs.
func (m Mode) Title() string {
	if m == ModePortScan {
		return "Scanning ports..."
	}
	return "Discovering hosts..."
}

// SuccessNotice is printed next to an address whose probe succeeded.
func (m Mode) SuccessNotice() string {
	if m == ModePortScan {
		return "Has open ports"
	}
	return "Scannable"
}

// FailureKind classifies why a probe did not succeed.
type FailureKind string

const (
	FailureNone     FailureKind = "none"
	FailureTimeout  FailureKind = "timeout"
	FailureNotFound FailureKind = "not_found"
	FailureError    FailureKind = "error"
)

// Normalized failure details.
const (
	DetailTimeout  = "Timeout - No response"
	DetailNotFound = "Host not found in scan results"
	detailErrorFmt = "Error: %s"
)

// Outcome is the normalized result of probing one address.
type Outcome struct {
	Address string
	// Success means "host up" in discovery mode and "at least one open
	// port" in port-scan mode.
	Success bool
	// Detail is human-readable and may span several lines.
	Detail  string
	Failure FailureKind
	// Seq is the submission index of the probe within its batch.
	Seq      int
	Duration time.Duration
}

// Result returns the metrics label for the outcome.
func (o Outcome) Result() string {
	if o.Success {
		return "success"
	}
	if o.Failure == FailureNone {
		return "unsuccessful"
	}
	return string(o.Failure)
}

//go:generate mockgen -source=types.go -destination=mocks/engine.go -package=mocks Engine

// Engine performs one scan of a single address.
type Engine interface {
	Scan(ctx context.Context, address string, mode Mode) (*nmap.Run, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, address string, mode Mode) (*nmap.Run, error)

// Scan implements Engine.
func (f EngineFunc) Scan(ctx context.Context, address string, mode Mode) (*nmap.Run, error) {
	return f(ctx, address, mode)
}

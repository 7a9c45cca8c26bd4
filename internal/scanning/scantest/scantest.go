// Package scantest provides an in-memory scan engine and nmap result
// builders for tests.
package scantest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/scanfinder/internal/scanning"
)

// Response is what the fake engine returns for one address.
type Response struct {
	Run   *nmap.Run
	Err   error
	Panic any
	// Delay is waited out before responding, unless the context ends first.
	Delay time.Duration
}

// Call records one engine invocation.
type Call struct {
	Address string
	Mode    scanning.Mode
}

// Engine is a concurrency-safe fake scanning.Engine. Addresses without a
// prepared response yield an empty run, so the probe reports the host as
// not found.
type Engine struct {
	mu        sync.Mutex
	responses map[scanning.Mode]map[string]Response
	calls     []Call

	active    int32
	maxActive int32
}

var _ scanning.Engine = (*Engine)(nil)

// NewEngine creates an engine with no prepared responses.
func NewEngine() *Engine {
	return &Engine{responses: make(map[scanning.Mode]map[string]Response)}
}

// Respond prepares the response for address in mode.
func (e *Engine) Respond(mode scanning.Mode, address string, resp Response) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.responses[mode] == nil {
		e.responses[mode] = make(map[string]Response)
	}
	e.responses[mode][address] = resp
	return e
}

// Scan implements scanning.Engine.
func (e *Engine) Scan(ctx context.Context, address string, mode scanning.Mode) (*nmap.Run, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Address: address, Mode: mode})
	resp, ok := e.responses[mode][address]
	e.mu.Unlock()

	n := atomic.AddInt32(&e.active, 1)
	defer atomic.AddInt32(&e.active, -1)
	for {
		peak := atomic.LoadInt32(&e.maxActive)
		if n <= peak || atomic.CompareAndSwapInt32(&e.maxActive, peak, n) {
			break
		}
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if resp.Panic != nil {
		panic(resp.Panic)
	}
	if !ok {
		return &nmap.Run{}, nil
	}
	return resp.Run, resp.Err
}

// Calls returns every invocation so far, in call order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallCount returns how many invocations used mode.
func (e *Engine) CallCount(mode scanning.Mode) int {
	count := 0
	for _, c := range e.Calls() {
		if c.Mode == mode {
			count++
		}
	}
	return count
}

// MaxConcurrent returns the peak number of overlapping invocations.
func (e *Engine) MaxConcurrent() int {
	return int(atomic.LoadInt32(&e.maxActive))
}

// Run wraps hosts in an nmap run.
func Run(hosts ...nmap.Host) *nmap.Run {
	return &nmap.Run{Hosts: hosts}
}

// Host builds a host entry with the given state and hostnames.
func Host(address, state string, hostnames ...string) nmap.Host {
	host := nmap.Host{
		Addresses: []nmap.Address{{Addr: address}},
		Status:    nmap.Status{State: state},
	}
	for _, name := range hostnames {
		host.Hostnames = append(host.Hostnames, nmap.Hostname{Name: name})
	}
	return host
}

// Up builds a host that reports state "up".
func Up(address string, hostnames ...string) nmap.Host {
	return Host(address, "up", hostnames...)
}

// Down builds a host that reports state "down".
func Down(address string) nmap.Host {
	return Host(address, "down")
}

// WithPorts returns host with ports attached.
func WithPorts(host nmap.Host, ports ...nmap.Port) nmap.Host {
	host.Ports = append(host.Ports, ports...)
	return host
}

// Port builds a port entry.
func Port(id uint16, protocol, state, service string) nmap.Port {
	return nmap.Port{
		ID:       id,
		Protocol: protocol,
		State:    nmap.State{State: state},
		Service:  nmap.Service{Name: service},
	}
}

// Versioned sets the product and version reported for port.
func Versioned(port nmap.Port, product, version string) nmap.Port {
	port.Service.Product = product
	port.Service.Version = version
	return port
}

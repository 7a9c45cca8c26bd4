package scanning

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/netip"
	"os/exec"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
)

const (
	// DefaultBinary is the scan engine executable looked up on PATH.
	DefaultBinary = "nmap"

	defaultDiscoveryTimeout = 10 * time.Second
	defaultPortScanTimeout  = 120 * time.Second
	defaultTopPorts         = 1000
)

// NmapConfig controls how NmapEngine invokes nmap.
type NmapConfig struct {
	// BinaryPath overrides the nmap executable. Empty means look up "nmap" on PATH.
	BinaryPath string
	// DiscoveryTimeout bounds a single discovery probe.
	DiscoveryTimeout time.Duration
	// PortScanTimeout bounds a single port-scan probe.
	PortScanTimeout time.Duration
	// TopPorts is the number of most common ports a port scan covers.
	TopPorts int
	// ExtraArgs are appended verbatim to every invocation.
	ExtraArgs []string
}

// DefaultNmapConfig returns the stock nmap settings.
func DefaultNmapConfig() NmapConfig {
	return NmapConfig{
		DiscoveryTimeout: defaultDiscoveryTimeout,
		PortScanTimeout:  defaultPortScanTimeout,
		TopPorts:         defaultTopPorts,
	}
}

// NmapEngine scans addresses by running the nmap binary.
type NmapEngine struct {
	config NmapConfig
}

var _ Engine = (*NmapEngine)(nil)

// NewNmapEngine creates an engine. Zero values in cfg fall back to the defaults.
func NewNmapEngine(cfg NmapConfig) *NmapEngine {
	defaults := DefaultNmapConfig()
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = defaults.DiscoveryTimeout
	}
	if cfg.PortScanTimeout <= 0 {
		cfg.PortScanTimeout = defaults.PortScanTimeout
	}
	if cfg.TopPorts <= 0 {
		cfg.TopPorts = defaults.TopPorts
	}
	return &NmapEngine{config: cfg}
}

// Config returns the effective engine settings.
func (e *NmapEngine) Config() NmapConfig {
	return e.config
}

// Scan runs one nmap invocation against address, bounded by the mode's timeout.
func (e *NmapEngine) Scan(ctx context.Context, address string, mode Mode) (*nmap.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout(mode))
	defer cancel()

	scanner, err := nmap.NewScanner(ctx, e.buildOptions(address, mode)...)
	if err != nil {
		if stderrors.Is(err, nmap.ErrNmapNotInstalled) {
			return nil, errors.ErrEngineMissing(e.binary(), err)
		}
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		logging.DebugScan("Scan completed with warnings", address,
			"mode", mode,
			"warnings", *warnings)
	}
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", nmap.ErrScanTimeout, err)
		}
		return nil, err
	}

	return result, nil
}

// Timeout returns the per-probe deadline for mode.
func (e *NmapEngine) Timeout(mode Mode) time.Duration {
	if mode == ModePortScan {
		return e.config.PortScanTimeout
	}
	return e.config.DiscoveryTimeout
}

func (e *NmapEngine) binary() string {
	if e.config.BinaryPath != "" {
		return e.config.BinaryPath
	}
	return DefaultBinary
}

// buildOptions creates nmap options for one probe:
//
//	discovery: -sn
//	portscan:  -sS --top-ports N -sV -T4
func (e *NmapEngine) buildOptions(address string, mode Mode) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(address),
	}

	if nmapIPv6(address) {
		options = append(options, nmap.WithIPv6Scanning())
	}

	switch mode {
	case ModePortScan:
		options = append(options,
			nmap.WithSYNScan(),
			nmap.WithMostCommonPorts(e.config.TopPorts),
			nmap.WithServiceInfo(),
			nmap.WithTimingTemplate(nmap.TimingAggressive),
		)
	default:
		options = append(options, nmap.WithPingScan())
	}

	if e.config.BinaryPath != "" {
		options = append(options, nmap.WithBinaryPath(e.config.BinaryPath))
	}
	if len(e.config.ExtraArgs) > 0 {
		options = append(options, nmap.WithCustomArguments(e.config.ExtraArgs...))
	}

	return options
}

// LookupBinary resolves the nmap executable, returning an ENGINE_MISSING
// error when it cannot be found.
func LookupBinary(binaryPath string) (string, error) {
	name := binaryPath
	if name == "" {
		name = DefaultBinary
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.ErrEngineMissing(name, err)
	}
	return path, nil
}

func nmapIPv6(address string) bool {
	addr, err := netip.ParseAddr(address)
	return err == nil && addr.Is6()
}

// Package runner drives one scanfinder run: sanitize the input, run host
// discovery or a direct port scan, persist and summarize the results, and
// optionally follow discovery with a port scan of the reachable hosts.
package runner

import (
	"context"
	"io"
	"time"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
	"github.com/anstrom/scanfinder/internal/metrics"
	"github.com/anstrom/scanfinder/internal/orchestrator"
	"github.com/anstrom/scanfinder/internal/report"
	"github.com/anstrom/scanfinder/internal/scanning"
	"github.com/anstrom/scanfinder/internal/targets"
)

const bannerTitle = "ScanFinder - Network Scanner"

// State is a stage of a run.
type State string

const (
	StateIdle        State = "idle"
	StateSanitizing  State = "sanitizing"
	StateDiscovery   State = "scanning_discovery"
	StatePortScan    State = "scanning_portscan"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Options describes one run.
type Options struct {
	InputPath string
	// OutputDir receives result files; empty means the working directory.
	OutputDir string
	Workers   int
	// PortScan skips discovery and port-scans every input address.
	PortScan bool
	// Followup port-scans the hosts discovery found reachable.
	Followup bool
	// TopPorts only names the port-scan result file.
	TopPorts int
	// XMLPath, when set, receives an XML export of every pass.
	XMLPath string
}

// Result is what a run produced.
type Result struct {
	Targets      *targets.List
	Discovery    *orchestrator.Batch
	PortScan     *orchestrator.Batch
	Reachable    []string
	DiscoveryOut string
	PortScanOut  string
	XMLOut       string
	// States lists every state the run entered, in order.
	States []State
}

// Runner executes runs against one orchestrator.
type Runner struct {
	orchestrator *orchestrator.Orchestrator
	sanitizer    *targets.Sanitizer
	console      *report.Console
	recorder     metrics.Recorder
	now          func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithConsole sets where banners and summaries are printed.
func WithConsole(w io.Writer) Option {
	return func(r *Runner) {
		r.console = report.NewConsole(w)
	}
}

// WithRecorder sets the metrics recorder for sanitizer rejections.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithClock overrides the clock used for banners and report headers.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a runner.
func New(orch *orchestrator.Orchestrator, sanitizer *targets.Sanitizer, opts ...Option) *Runner {
	r := &Runner{
		orchestrator: orch,
		sanitizer:    sanitizer,
		console:      report.NewConsole(io.Discard),
		recorder:     metrics.Nop{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one run. The returned Result is non-nil even on error and
// records how far the run got.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{States: []State{StateIdle}}
	if opts.TopPorts <= 0 {
		opts.TopPorts = scanning.DefaultNmapConfig().TopPorts
	}
	log := logging.Default().WithComponent("runner")

	enter := func(s State) {
		log.Debug("Run state changed", "from", res.States[len(res.States)-1], "to", s)
		res.States = append(res.States, s)
	}
	fail := func(err error) (*Result, error) {
		enter(StateFailed)
		return res, err
	}

	enter(StateSanitizing)
	list, err := r.sanitizer.LoadFile(opts.InputPath)
	if err != nil {
		return fail(err)
	}
	res.Targets = list
	for reason, n := range list.IgnoredByReason {
		r.recorder.AddIgnoredTargets(string(reason), n)
	}
	if list.Accepted() == 0 {
		return fail(errors.ErrNoTargets(opts.InputPath))
	}

	r.console.Banner(bannerTitle, r.now())

	if opts.PortScan {
		if err := r.portScan(ctx, opts, list.Addresses, "SUMMARY", res, enter); err != nil {
			return fail(err)
		}
		if err := r.export(opts, res); err != nil {
			return fail(err)
		}
		enter(StateDone)
		return res, nil
	}

	r.console.ScanInfo(list.Accepted(), opts.Workers, report.ModeLabel(scanning.ModeDiscovery, opts.TopPorts))
	enter(StateDiscovery)
	discovery := r.orchestrator.RunBatch(ctx, list.Addresses, opts.Workers, scanning.ModeDiscovery)
	res.Discovery = &discovery

	enter(StateAggregating)
	res.Reachable = report.Reachable(discovery)
	res.DiscoveryOut = report.DiscoveryPath(opts.OutputDir, opts.InputPath)
	if err := report.WriteActive(res.DiscoveryOut, res.Reachable); err != nil {
		return fail(err)
	}
	r.console.Summary("SUMMARY", report.Summarize(discovery), res.DiscoveryOut)

	switch {
	case len(res.Reachable) == 0:
		log.Info("No reachable hosts, skipping port scan")
	case !opts.Followup:
		log.Info("Follow-up port scan not requested", "reachable", len(res.Reachable))
	default:
		r.console.Banner("Starting Port Scan", r.now())
		if err := r.portScan(ctx, opts, res.Reachable, "PORT SCAN SUMMARY", res, enter); err != nil {
			return fail(err)
		}
	}

	if err := r.export(opts, res); err != nil {
		return fail(err)
	}
	enter(StateDone)
	return res, nil
}

// export writes the XML export when one was requested.
func (r *Runner) export(opts Options, res *Result) error {
	if opts.XMLPath == "" {
		return nil
	}

	var batches []orchestrator.Batch
	for _, b := range []*orchestrator.Batch{res.Discovery, res.PortScan} {
		if b != nil {
			batches = append(batches, *b)
		}
	}
	if err := report.WriteXML(opts.XMLPath, opts.InputPath, r.now(), batches...); err != nil {
		return err
	}
	res.XMLOut = opts.XMLPath
	return nil
}

func (r *Runner) portScan(ctx context.Context, opts Options, addrs []string, title string,
	res *Result, enter func(State)) error {
	r.console.ScanInfo(len(addrs), opts.Workers, report.ModeLabel(scanning.ModePortScan, opts.TopPorts))

	enter(StatePortScan)
	batch := r.orchestrator.RunBatch(ctx, addrs, opts.Workers, scanning.ModePortScan)
	res.PortScan = &batch

	enter(StateAggregating)
	res.PortScanOut = report.PortScanPath(opts.OutputDir, opts.InputPath, opts.TopPorts)
	err := report.WritePortScan(res.PortScanOut, report.PortScanReport{
		InputPath: opts.InputPath,
		Generated: r.now(),
		Outcomes:  batch.InInputOrder(),
	})
	if err != nil {
		return err
	}
	r.console.Summary(title, report.Summarize(batch), res.PortScanOut)
	return nil
}

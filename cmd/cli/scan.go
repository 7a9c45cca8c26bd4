package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/scanfinder/internal/config"
	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
	"github.com/anstrom/scanfinder/internal/metrics"
	"github.com/anstrom/scanfinder/internal/orchestrator"
	"github.com/anstrom/scanfinder/internal/runner"
	"github.com/anstrom/scanfinder/internal/scanning"
	"github.com/anstrom/scanfinder/internal/targets"
)

var (
	scanFile       string
	scanPortScan   bool
	scanNoProgress bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover reachable hosts or scan their ports",
	Long: `Scan the addresses listed in a text file, one per line. Blank lines and
lines starting with # are skipped, only the first word of a line is used,
and a trailing :port is ignored.

Host discovery (nmap -sn) is the default. --portscan runs a SYN scan of the
most common ports with service detection (nmap -sS --top-ports N -sV -T4),
which usually requires root privileges.`,
	Example: `  scanfinder scan -f targets.txt
  scanfinder scan -f targets.txt -w 20 -o results/
  scanfinder scan -f targets.txt --followup
  scanfinder scan -f targets.txt --portscan --top-ports 100`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Define flags
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "Text file with IPs (one per line, supports comments with #)")
	scanCmd.Flags().IntP("workers", "w", 10, "Number of concurrent scans")
	scanCmd.Flags().StringP("output", "o", "", "Output directory (default: current directory)")
	scanCmd.Flags().BoolVar(&scanPortScan, "portscan", false, "Perform a port scan instead of host discovery")
	scanCmd.Flags().Bool("followup", false, "Port-scan the hosts found reachable by discovery")
	scanCmd.Flags().Int("top-ports", 1000, "Number of most common ports to scan")
	scanCmd.Flags().String("nmap-path", "", "Path to the nmap binary (default: look up on PATH)")
	scanCmd.Flags().Float64("rate-limit", 0, "Maximum scans started per second (0 = unlimited)")
	scanCmd.Flags().String("xml", "", "Also write all results as XML to this file")
	scanCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Disable the progress bar")

	_ = scanCmd.MarkFlagRequired("file")

	bindScanFlags()
}

// bindScanFlags binds the scan flags to the configuration keys they override.
func bindScanFlags() {
	bindings := map[string]string{
		"scanning.workers":                      "workers",
		"output.directory":                      "output",
		"output.xml_path":                       "xml",
		"scanning.followup":                     "followup",
		"scanning.top_ports":                    "top-ports",
		"scanning.nmap_path":                    "nmap-path",
		"scanning.rate_limit.probes_per_second": "rate-limit",
		"metrics.textfile_path":                 "metrics-file",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, scanCmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
		}
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	if err := preflight(cfg, scanFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress io.Writer
	if !scanNoProgress {
		progress = cmd.OutOrStdout()
	}
	return executeScan(ctx, cfg, scanning.NewNmapEngine(cfg.NmapConfig()), cmd.OutOrStdout(), progress)
}

// preflight checks the conditions a run cannot start without, in order:
// the nmap binary, the input file and the output directory.
func preflight(cfg *config.Config, inputPath string) error {
	if _, err := scanning.LookupBinary(cfg.Scanning.NmapPath); err != nil {
		return err
	}

	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrInputMissing(inputPath)
		}
		return errors.NewFileError(errors.CodeFileRead, "cannot access input file", inputPath, err)
	}

	if dir := cfg.Output.Directory; dir != "" {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.ErrOutputDirMissing(dir)
		}
	}
	return nil
}

// executeScan wires the engine into an orchestrated run. A nil progress
// writer disables the progress bar.
func executeScan(ctx context.Context, cfg *config.Config, engine scanning.Engine, console, progress io.Writer) error {
	var recorder metrics.Recorder = metrics.Nop{}
	var pm *metrics.PrometheusMetrics
	if cfg.Metrics.TextfilePath != "" {
		pm = metrics.NewPrometheusMetrics()
		recorder = pm
	}

	opts := []orchestrator.Option{
		orchestrator.WithRecorder(recorder),
		orchestrator.WithRateLimit(cfg.ProbeRate()),
	}
	if progress != nil {
		opts = append(opts, orchestrator.WithProgress(orchestrator.NewConsoleProgress(progress)))
	}

	sanitizer, err := targets.NewSanitizer()
	if err != nil {
		return err
	}

	r := runner.New(orchestrator.New(engine, opts...), sanitizer,
		runner.WithConsole(console),
		runner.WithRecorder(recorder))

	res, runErr := r.Run(ctx, runner.Options{
		InputPath: scanFile,
		OutputDir: cfg.Output.Directory,
		Workers:   cfg.Scanning.Workers,
		PortScan:  scanPortScan,
		Followup:  cfg.Scanning.Followup,
		TopPorts:  cfg.Scanning.TopPorts,
		XMLPath:   cfg.Output.XMLPath,
	})

	if res != nil && len(res.States) > 0 {
		logging.Debug("Run finished", "final_state", res.States[len(res.States)-1])
	}

	if pm != nil {
		if err := pm.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logging.Error("Failed to write metrics textfile", "path", cfg.Metrics.TextfilePath, "error", err)
			if runErr == nil {
				return errors.NewFileError(errors.CodeFileWrite, "failed to write metrics", cfg.Metrics.TextfilePath, err)
			}
		}
	}

	return runErr
}

// Package cli provides the command-line interface for scanfinder. It
// implements the Cobra command tree, binds flags and SCANFINDER_*
// environment variables over the configuration file, and maps failures to
// process exit statuses.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/scanfinder/internal/config"
	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
)

const envPrefix = "SCANFINDER"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanfinder",
	Short: "Bulk host discovery and port scanning with nmap",
	Long: `scanfinder reads a list of IP addresses, drops the ones that cannot be
scanned (loopback, multicast, reserved and similar), and runs nmap against
the rest with a bounded number of concurrent scans.

By default it runs host discovery and writes the reachable addresses to
<input>_scannable_ips.txt. With --portscan it scans the most common ports of
every address instead, and with --followup it port-scans the hosts that
discovery found reachable.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the command tree with args and returns the process exit status.
func run(args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.IsCode(err, errors.CodeEngineMissing) {
			fmt.Fprint(stderr, nmapInstallHint)
		}
		return errors.ExitCode(err)
	}
	return errors.ExitOK
}

const nmapInstallHint = `Please install nmap:
  - Debian/Ubuntu: sudo apt install nmap
  - Fedora/RHEL: sudo dnf install nmap
  - Arch: sudo pacman -S nmap
  - macOS: brew install nmap
`

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scanfinder.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	bindRootFlags()
}

// bindRootFlags binds the global flags to viper keys.
func bindRootFlags() {
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("scanfinder")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig loads the configuration file and applies flag and environment
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}

	cfg := config.Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil && cfgFile != "" {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "config file not found: "+path, err)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies values set through flags or environment variables
// into cfg.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("scanning.workers") {
		cfg.Scanning.Workers = viper.GetInt("scanning.workers")
	}
	if viper.IsSet("scanning.discovery_timeout") {
		cfg.Scanning.DiscoveryTimeout = viper.GetDuration("scanning.discovery_timeout")
	}
	if viper.IsSet("scanning.portscan_timeout") {
		cfg.Scanning.PortScanTimeout = viper.GetDuration("scanning.portscan_timeout")
	}
	if viper.IsSet("scanning.top_ports") {
		cfg.Scanning.TopPorts = viper.GetInt("scanning.top_ports")
	}
	if viper.IsSet("scanning.nmap_path") {
		cfg.Scanning.NmapPath = viper.GetString("scanning.nmap_path")
	}
	if viper.IsSet("scanning.followup") {
		cfg.Scanning.Followup = viper.GetBool("scanning.followup")
	}
	if viper.IsSet("scanning.rate_limit.probes_per_second") {
		cfg.Scanning.RateLimit.Enabled = true
		cfg.Scanning.RateLimit.ProbesPerSecond = viper.GetFloat64("scanning.rate_limit.probes_per_second")
	}
	if viper.IsSet("output.directory") {
		cfg.Output.Directory = viper.GetString("output.directory")
	}
	if viper.IsSet("output.xml_path") {
		cfg.Output.XMLPath = viper.GetString("output.xml_path")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = viper.GetString("logging.level")
	}
	if viper.IsSet("logging.format") {
		cfg.Logging.Format = viper.GetString("logging.format")
	}
	if viper.IsSet("logging.output") {
		cfg.Logging.Output = viper.GetString("logging.output")
	}
	if viper.IsSet("metrics.textfile_path") {
		cfg.Metrics.TextfilePath = viper.GetString("metrics.textfile_path")
	}
	if verbose && cfg.Logging.Level != "debug" {
		cfg.Logging.Level = "info"
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging(cfg *config.Config) {
	logConfig := cfg.LoggerConfig()
	logConfig.AddSource = cfg.Logging.Level == "debug"

	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	}
}

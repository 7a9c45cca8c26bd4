package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anstrom/scanfinder/internal/config"
	"github.com/anstrom/scanfinder/internal/errors"
)

const defaultConfigFile = "scanfinder.yaml"

var configInitForce bool

// configCmd groups configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the scanfinder configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Long: `Write a configuration file containing every setting at its default value.
The file is written to ./scanfinder.yaml unless a path is given. An existing
file is only replaced with --force.`,
	Example: `  scanfinder config init
  scanfinder config init /etc/scanfinder/scanfinder.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := defaultConfigFile
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return errors.NewFileError(errors.CodeFileWrite, "config file already exists (use --force to overwrite)", path, nil)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}

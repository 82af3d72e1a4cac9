package main

import (
	"fmt"
	"os"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   internal.DefaultAppName,
		Short: "Resource id allocator and resource table packager",
		Long: `respack compiles the media and profile resources of a module into a binary
resource index, assigns stable numeric ids to every resource name and writes
the id headers application code refers to.

Examples:
  # Build a module, replacing a previous build
  respack pack -i ./entry -o ./out -p com.example.demo -f

  # Inspect a built index
  respack dump ./out/resources.index --format yaml`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./respack.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")

	root.AddCommand(newPackCmd(), newDumpCmd(), newIDsCmd())
	return root
}

// loadConfig reads the config file and applies the --log-level override.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, internal.NewLogger(zerolog.ConsoleWriter{Out: os.Stderr}, cfg.Log.Level), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

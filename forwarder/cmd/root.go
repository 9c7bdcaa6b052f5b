package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
)

var (
	cfg         *config.Config
	logger      *logging.Logger
	verboseFlag bool
	jsonFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "portrelay",
	Short: "TCP port-forwarding relay",
	Long: `portrelay - TCP port-forwarding relay

Listens on every configured source address and relays each accepted
connection to its destination, byte for byte, in both directions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := logging.ParseLevel(cfg.LogLevel)
		if verboseFlag {
			level = logging.DebugLevel
		}

		format := logging.FormatConsole
		if jsonFlag {
			format = logging.FormatJSON
		}

		logger = logging.NewWithFormatAndOutput(level, format, cmd.OutOrStdout())
		logger.Debug("Logger initialized",
			logging.String("level", level.String()),
			logging.String("format", map[logging.Format]string{
				logging.FormatConsole: "console",
				logging.FormatJSON:    "json",
			}[format]),
		)
		return nil
	},
}

func init() {
	// Disable default completion and help commands
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output logs in JSON format")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *logging.Logger {
	return logger
}

// GetConfig returns the global config instance
func GetConfig() *config.Config {
	return cfg
}

// loadRoutes resolves the route file from the positional argument, the
// --config flag and PORTRELAY_CONFIG, in that order
func loadRoutes(args []string, flagPath string) (string, []config.Route, error) {
	var argPath, envPath string
	if len(args) > 0 {
		argPath = args[0]
	}
	if cfg != nil {
		envPath = cfg.ConfigPath
	}

	path, err := config.ResolveRoutesPath(argPath, flagPath, envPath)
	if err != nil {
		return "", nil, err
	}
	routes, err := config.LoadRoutes(path)
	if err != nil {
		return path, nil, fmt.Errorf("failed to load routes: %w", err)
	}
	return path, routes, nil
}

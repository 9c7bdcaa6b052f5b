package cmd

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/julienstroheker/portrelay/forwarder/engine"
	"github.com/julienstroheker/portrelay/forwarder/http"
	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/event"
	"github.com/julienstroheker/portrelay/internal/logging"
)

const defaultShutdownTimeout = 10

var (
	configFlag          string
	adminAddrFlag       string
	acceptPolicyFlag    string
	dialTimeoutFlag     time.Duration
	shutdownTimeoutFlag int
)

var startCmd = &cobra.Command{
	Use:   "start [config-file]",
	Short: "Start relaying every configured route",
	Long: `Start relaying every configured route.

The route file is taken from the argument, --config, PORTRELAY_CONFIG or
~/.proxy/config, in that order. Each line holds a source and a destination
address separated by whitespace; .yaml and .yml files use
"routes: [{source, destination}]" instead.

The command exits non-zero once every route has stopped on its own.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Route file to load")
	startCmd.Flags().StringVar(&adminAddrFlag, "admin-addr", "", "Serve status and events on this address (disabled when empty)")
	startCmd.Flags().StringVar(&acceptPolicyFlag, "accept-policy", string(config.AcceptStop),
		"What a route does when accepting fails: stop or retry")
	startCmd.Flags().DurationVar(&dialTimeoutFlag, "dial-timeout", config.DefaultDialTimeout, "Destination dial timeout")
	startCmd.Flags().IntVar(&shutdownTimeoutFlag, "shutdown-timeout", defaultShutdownTimeout,
		"Admin server graceful shutdown timeout in seconds")
}

// applyStartFlags lets explicitly set flags override environment settings
func applyStartFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("admin-addr") {
		cfg.AdminAddr = adminAddrFlag
	}
	if flags.Changed("accept-policy") {
		cfg.AcceptPolicy = config.AcceptPolicy(acceptPolicyFlag)
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout = dialTimeoutFlag
	}
	return cfg.Validate()
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := applyStartFlags(cmd); err != nil {
		return err
	}

	path, routes, err := loadRoutes(args, configFlag)
	if err != nil {
		return err
	}

	// Usage output is only useful for argument errors
	cmd.SilenceUsage = true

	logger.Info("Loaded routes",
		logging.String("path", path),
		logging.Int("routes", len(routes)),
		logging.String("accept_policy", cfg.AcceptPolicy.String()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := event.NewHub()
	eng := engine.New(&engine.Options{
		Routes:              routes,
		DialTimeout:         cfg.DialTimeout,
		AcceptPolicy:        cfg.AcceptPolicy,
		AcceptRetryInterval: cfg.AcceptRetryInterval,
		Sink:                event.Multi{event.NewLogSink(logger), hub},
	})

	if cfg.AdminAddr != "" {
		server := http.NewServer(&http.Options{
			Addr:   cfg.AdminAddr,
			Routes: eng,
			Hub:    hub,
			Logger: logger,
		})
		adminDone := make(chan struct{})
		go func() {
			defer close(adminDone)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				logger.Error("Admin server failed", logging.Error(err))
			}
		}()
		defer func() {
			shutdownAdmin(server)
			<-adminDone
		}()
	}

	if err := eng.Run(ctx, logger); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

func shutdownAdmin(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeoutFlag)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Admin server did not stop gracefully", logging.Error(err))
		_ = server.Close()
	}
}

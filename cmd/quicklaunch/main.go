package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quicklaunch/internal/app"
	"quicklaunch/internal/config"
	"quicklaunch/internal/logging"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	cfgFile   string
	model     string
	transport string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quicklaunch",
		Short: "Application launcher with AI search",
		Long: `QuickLaunch discovers installed applications, organizes them into folders
and finds the right one for a task with the help of a language model.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/quicklaunch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model to use (default is "+config.DefaultModel+")")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "API transport: http or genai")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		newScanCmd(),
		newSearchCmd(),
		newChatCmd(),
		newPathsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("quicklaunch version %s\n", version)
			},
		},
	)

	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logging.Close()
		os.Exit(1)
	}
}

// loadConfig loads the configuration and applies command-line overrides.
// requireKey is false for commands that never reach the API.
func loadConfig(requireKey bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if model != "" {
		cfg.API.Model = model
	}
	if transport != "" {
		cfg.API.Transport = transport
	}

	if requireKey {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		// Commands that never reach the API skip SDK client setup.
		cfg.API.Transport = config.TransportHTTP
	}

	switch {
	case verbose:
		logging.Configure(logging.ParseLevel(cfg.Logging.Level), os.Stderr)
	case cfg.Logging.File:
		if err := logging.EnableFileLogging(cfg.LogDir(), logging.ParseLevel(cfg.Logging.Level)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		}
	}
	return cfg, nil
}

// openLauncher builds a launcher and waits for the first scan.
func openLauncher(ctx context.Context, requireKey bool) (*app.Launcher, error) {
	cfg, err := loadConfig(requireKey)
	if err != nil {
		return nil, err
	}

	l, err := app.NewBuilder(ctx, cfg).
		WithStatusCallback(&retryPrinter{}).
		Build()
	if err != nil {
		return nil, err
	}
	if err := l.Start(); err != nil {
		l.Close()
		return nil, err
	}
	l.WaitForScan()
	return l, nil
}

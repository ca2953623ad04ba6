// Package cli implements the tabjson command-line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabjson/internal/config"
	"github.com/JonMunkholm/tabjson/internal/core"
	"github.com/JonMunkholm/tabjson/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(os.Stdin)
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

// printError writes the mapped user message, then the technical detail.
func printError(w io.Writer, err error) {
	var ue *core.UserError
	if errors.As(err, &ue) {
		fmt.Fprintf(w, "Error: %s\n  %v\n", core.FormatUserError(ue.Technical), ue.Technical)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// userError attaches the user message to errors that map to a code.
func userError(err error) error {
	if err == nil || !core.IsUserFacing(err) {
		return err
	}
	return core.NewUserError(err)
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	var (
		logLevel string
		envFile  string
	)

	rootCmd := &cobra.Command{
		Use:           "tabjson",
		Short:         "Convert CSV and Excel files to JSON",
		Long:          "Converts .csv, .xls and .xlsx files to JSON documents and optionally uploads them to blob storage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The .env file is optional; explicit environment variables win.
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, "text"))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(newConvertCmd(stdin))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tabjson version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// loadService builds a conversion service from the environment. The sink is
// only constructed when an upload was requested.
func loadService(withSink bool) (*core.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newService(cfg, withSink)
}

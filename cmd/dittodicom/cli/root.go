// Package cli implements the dittodicom command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/spf13/cobra"
)

const shortDescription = "DICOM storage receiver with per-listener layout, transcoding and admission rules"

const longDescription = `
DittoDICOM receives DICOM objects on one or more listeners and decides, per
object, where it is written, whether its pixel data is transcoded and whether
the destination volume can take it.
`

var (
	cfgFile  string
	logLevel string
	rootCmd  = &cobra.Command{
		Use:           "dittodicom",
		Short:         shortDescription,
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateLogLevel(logLevel)
		},
	}
)

// validateLogLevel rejects a --log-level value the logger does not know.
// An empty value keeps the configured level.
func validateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, ok := logger.ParseLevel(level); !ok {
		return fmt.Errorf("invalid --log-level %q: must be one of DEBUG, INFO, WARN, ERROR", level)
	}
	return nil
}

// ExecuteContext runs the root command and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $XDG_CONFIG_HOME/dittodicom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(versionCmd)
}

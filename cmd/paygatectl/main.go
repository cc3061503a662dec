// Command paygatectl is the operator CLI for the payment gateway service.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-booking-sub001/pkg/logger"
)

var Version = "dev"

// errReported signals a failure whose details were already printed.
var errReported = errors.New("reported")

type globalFlags struct {
	logLevel string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "paygatectl",
		Short:         "Operate the multi-gateway payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateConfigCmd(g))
	rootCmd.AddCommand(healthCmd(g))
	rootCmd.AddCommand(simulateCmd(g))
	rootCmd.AddCommand(tokenCmd())

	return rootCmd
}

// cliLogger writes text logs to the command's error stream.
func (g *globalFlags) cliLogger(cmd *cobra.Command) *slog.Logger {
	return logger.NewWithFormat("paygatectl", g.logLevel, logger.FormatText, cmd.ErrOrStderr())
}

// swotrace captures and decodes the ITM instrumentation stream a
// Cortex-M target emits over its SWO pin, via an ST-LINK debug probe.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"swotrace/internal/capture"
)

const version = "1.0.0"

var (
	flagVersion bool
	flagVerbose int
	flagClock   int
	flagNoReset bool
	flagSerial  string
	flagForce   bool
)

var exitCode = capture.ExitSuccess

var rootCmd = &cobra.Command{
	Use:           "swotrace",
	Short:         "capture and decode SWO trace output from a Cortex-M target",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if flagVersion {
			fmt.Printf("v%s\n", version)
			return
		}

		log := newLogger(flagVerbose)

		log.Debugf("core_frequency = %d MHz", flagClock)
		log.Debugf("reset_board = %v", !flagNoReset)
		log.Debugf("force = %v", flagForce)
		log.Debugf("serial_number = %s", orAny(flagSerial))

		exitCode = capture.Run(cmd.Context(), capture.Config{
			CoreFrequencyMHz: flagClock,
			ResetBoard:       !flagNoReset,
			Force:            flagForce,
			Serial:           flagSerial,
			Output:           os.Stdout,
			Log:              log,
		})
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "V", false,
		"print the version and exit")
	rootCmd.Flags().IntVarP(&flagVerbose, "verbose", "v", 50,
		"logging verbosity (0..99, higher is noisier)")
	rootCmd.Flags().Lookup("verbose").NoOptDefVal = "100"
	rootCmd.Flags().IntVarP(&flagClock, "clock", "c", 0,
		"core frequency in MHz")
	rootCmd.Flags().BoolVarP(&flagNoReset, "no-reset", "n", false,
		"do not reset the board on connection")
	rootCmd.Flags().StringVarP(&flagSerial, "serial", "s", "",
		"use the probe with this serial number")
	rootCmd.Flags().BoolVarP(&flagForce, "force", "f", false,
		"ignore most initialization errors")
}

// newLogger maps the st-trace style numeric verbosity onto logrus
// levels, with the prefixed console formatter on stderr so decoded
// target output on stdout stays clean.
func newLogger(level int) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	switch {
	case level >= 100:
		log.SetLevel(logrus.DebugLevel)
	case level >= 50:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(capture.ExitInvalidParams)
	}
	os.Exit(exitCode)
}

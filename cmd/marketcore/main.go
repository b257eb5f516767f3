// Command marketcore is a cobra-based CLI adapter (spec §6) over the
// pricing kernel, indicator/signal engine, backtest executor and job
// orchestrator. It follows the subcommand shape of the retrieval pack's own
// cobra CLI, github.com/NimbleMarkets/dbn-go's cmd/dbn-go-hist: a package-
// level rootCmd, one cobra.Command per operation, flags bound directly to
// package-level vars in main's init/main wiring, and a requireNoError-style
// exit path — generalised here into exitCodeFor so every path honors the
// exit codes of spec §6 instead of dbn-go-hist's flat 0/1.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketcore/internal/corekit"
	"marketcore/internal/logger"
)

var version = "dev"

// dbPath is the optional SQLite path backing internal/store; empty means
// status/result/list/cancel have nothing to read back across invocations
// (spec §6: "an in-process map suffices for a single-node deployment" — for
// a single-shot CLI process, that in-process map does not outlive the
// process, so durable persistence is the only way later invocations can see
// a job submitted by an earlier one).
var dbPath string

func main() {
	logger.Banner(version)

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite path for job/result history (unset = no persistence across invocations)")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(priceCmd, impliedVolCmd, backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketcore",
	Short: "marketcore prices options, runs backtests, and manages backtest jobs.",
	Long:  "marketcore prices options, runs backtests, and manages backtest jobs.",
}

// exitCodeFor maps a returned error onto the exit codes of spec §6: 0
// success, 1 usage, 2 validation error, 3 upstream data error, 4 cancelled.
func exitCodeFor(err error) int {
	ce, ok := err.(*corekit.CoreError)
	if !ok {
		return 1
	}
	switch ce.Kind {
	case corekit.ErrValidation:
		return 2
	case corekit.ErrDataUnavailable:
		return 3
	case corekit.ErrCancelled:
		return 4
	default:
		return 1
	}
}

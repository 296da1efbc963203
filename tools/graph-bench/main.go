package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"

	"graphbft/libs/utils"
)

var (
	target      string
	mode        string
	connections int
	rate        int
	txsPerBlock int
	txSize      int
	duration    time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "graph-bench",
	Short: "Propose blocks or send transactions to a graph node at a fixed rate",
	RunE:  runBench,
}

func init() {
	rootCmd.Flags().StringVar(&target, "target", "127.0.0.1:26657", "rpc host:port of the node")
	rootCmd.Flags().StringVar(&mode, "mode", modePropose, "propose (propose_block) or tx (broadcast_tx)")
	rootCmd.Flags().IntVarP(&connections, "connections", "c", 1, "websocket connections")
	rootCmd.Flags().IntVarP(&rate, "rate", "r", 1, "requests per second and connection")
	rootCmd.Flags().IntVar(&txsPerBlock, "txs", 10, "transactions per proposed block")
	rootCmd.Flags().IntVar(&txSize, "size", 250, "transaction size in bytes")
	rootCmd.Flags().DurationVarP(&duration, "time", "T", 10*time.Second, "how long to run")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every second")
}

func runBench(cmd *cobra.Command, args []string) error {
	logger := log.NewNopLogger()
	if verbose {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout)).With("module", "bench")
	}

	if mode != modePropose && mode != modeTx {
		return fmt.Errorf("unknown mode %q", mode)
	}

	t := newTransacter(target, mode, connections, rate, txsPerBlock, txSize)
	t.SetLogger(logger)
	if err := t.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	start := time.Now()
	select {
	case <-time.After(duration):
	case <-sig:
	}
	t.Stop()

	sent, replies := t.Stats()
	elapsed := time.Since(start).Seconds()
	fmt.Printf("sent %d requests, %d replies in %.1fs (%.1f requests/s)\n",
		sent, replies, elapsed, float64(sent)/elapsed)

	millis := t.SendMillis()
	fmt.Printf("time to send %d requests (ms): min %.2f, avg %.2f, median %.2f, max %.2f, stddev %.2f\n",
		rate, utils.Min(millis...), utils.Avg(millis...), utils.Median(millis...), utils.Max(millis...),
		utils.StdDev(millis...))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

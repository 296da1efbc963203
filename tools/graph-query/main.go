package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	tmjson "github.com/tendermint/tendermint/libs/json"
	"github.com/tendermint/tendermint/libs/bytes"
	rpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"

	"graphbft/rpc"
	"graphbft/types"
)

var (
	remote  string
	timeout time.Duration
	skip    int
	take    int
	limit   int
)

var rootCmd = &cobra.Command{
	Use:   "graph-query",
	Short: "Query the chain and the mempool of a graph node over rpc",
}

var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Print the chain height",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call("height", nil, new(rpc.ResultHeight))
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print a page of committed blocks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call("blocks", map[string]interface{}{"skip": skip, "take": take}, new(rpc.ResultBlocks))
	},
}

var safeguardCmd = &cobra.Command{
	Use:   "safeguard",
	Short: "Print the safeguard blocks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call("safeguard_blocks", nil, new(rpc.ResultBlocks))
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash [height]",
	Short: "Print the hash of the block at height-1, or of the last block",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var height uint64
		if len(args) == 1 {
			h, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			height = h
		}
		return call("block_hash", map[string]interface{}{"height": height}, new(types.BlockHash))
	},
}

var txCmd = &cobra.Command{
	Use:   "tx <txn-id>",
	Short: "Print the committed transaction with the hex encoded id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := hex.DecodeString(args[0])
		if err != nil {
			return err
		}
		return call("transaction", map[string]interface{}{"txn_id": bytes.HexBytes(id)}, new(types.Tx))
	},
}

var unconfirmedCmd = &cobra.Command{
	Use:   "unconfirmed",
	Short: "Print the transactions waiting in the mempool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return call("unconfirmed_txs", map[string]interface{}{"limit": limit}, new(rpc.ResultUnconfirmedTxs))
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "Check a transaction carrying payload into the mempool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call("broadcast_tx", map[string]interface{}{"tx": []byte(args[0])}, new(rpc.ResultBroadcastTx))
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics [label]",
	Short: "Print the node metrics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		}
		return call("metrics", map[string]interface{}{"label": label}, new(rpc.ResultMetrics))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&remote, "remote", "tcp://127.0.0.1:26657", "rpc address of the node")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	blocksCmd.Flags().IntVar(&skip, "skip", 0, "blocks to skip")
	blocksCmd.Flags().IntVar(&take, "take", 20, "blocks to return")
	unconfirmedCmd.Flags().IntVar(&limit, "limit", 30, "transactions to return")

	rootCmd.AddCommand(heightCmd, blocksCmd, safeguardCmd, hashCmd, txCmd, unconfirmedCmd, sendCmd, metricsCmd)
}

func call(method string, params map[string]interface{}, result interface{}) error {
	c, err := rpcclient.New(remote)
	if err != nil {
		return err
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := c.Call(ctx, method, params, result); err != nil {
		return err
	}
	bz, err := tmjson.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(bz))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

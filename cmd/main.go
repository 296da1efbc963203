package main

import (
	"os"
	"path/filepath"

	"github.com/tendermint/tendermint/libs/cli"

	cmd "graphbft/cmd/commands"
	"graphbft/config"
	nm "graphbft/node"
)

func main() {
	rootCmd := cmd.RootCmd
	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenNodeKeyCmd,
		cmd.ShowNodeIDCmd,
		cmd.GenSigningKeyCmd,
		cmd.ShowSigningKeyCmd,
		cmd.GenGenesisCmd,
		cmd.ResetGraphsCmd,
		cli.NewCompletionCmd(rootCmd, true),
	)

	// A custom node provider can replace DefaultNewNode, e.g. to supply
	// another signer.
	nodeFunc := nm.DefaultNewNode

	// Create & start node
	rootCmd.AddCommand(cmd.NewRunNodeCmd(nodeFunc))

	cmd := cli.PrepareBaseCmd(rootCmd, "GRAPH", os.ExpandEnv(filepath.Join("$HOME", config.DefaultGraphDir)))
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "graphbft/node"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding a graph node
func AddNodeFlags(cmd *cobra.Command) {
	// bind flags
	cmd.Flags().String("moniker", conf.Moniker, "node name")

	// p2p flags
	cmd.Flags().String("p2p.laddr", conf.P2P.ListenAddress, "node listen address. (0.0.0.0:0 means any interface, any port)")
	cmd.Flags().String("p2p.external-address", conf.P2P.ExternalAddress, "ip:port address to advertise to peers for them to dial")
	cmd.Flags().String("p2p.persistent_peers", conf.P2P.PersistentPeers, "comma-delimited ID@host:port persistent peers")

	// rpc flags
	cmd.Flags().String("rpc.laddr", conf.RPC.ListenAddress, "RPC listen address. Port required")

	// graph flags
	cmd.Flags().String("graph.chain_id", conf.Graph.ChainID, "chain id, shared by the cluster")
	cmd.Flags().String("graph.genesis_time", conf.Graph.GenesisTime, "genesis time (RFC3339), shared by the cluster")
	cmd.Flags().Int("graph.workers", conf.Graph.Workers, "workers of the block graph pipeline")
	cmd.Flags().Bool("graph.propose_blocks", conf.Graph.ProposeBlocks, "propose blocks from the mempool (one node per cluster)")
	cmd.Flags().Bool("graph.create_empty_blocks", conf.Graph.CreateEmptyBlocks, "propose blocks without transactions")

	// mempool flags
	cmd.Flags().Bool("mempool.broadcast", conf.Mempool.Broadcast, "gossip transactions to peers")

	// storage flags
	cmd.Flags().String("storage.backend", conf.Storage.Backend, "database backend: goleveldb | badger | memdb")
	cmd.Flags().Bool("storage.compress", conf.Storage.Compress, "snappy compress stored values")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
// It can be used with a custom node provider.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the graph node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(conf, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}

			logger.Info("Started node", "nodeInfo", n.Switch().NodeInfo())

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}

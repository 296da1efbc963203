package commands

import (
	"github.com/spf13/cobra"

	"graphbft/store"
	"graphbft/types"
)

var resetDelivered bool

// ResetGraphsCmd drops the pending block graphs of a stopped node. The
// committed chain is kept.
var ResetGraphsCmd = &cobra.Command{
	Use:     "unsafe-reset-graphs",
	Aliases: []string{"unsafe_reset_graphs"},
	Short:   "(unsafe) Remove all pending block graphs, keeping the chain",
	PreRun:  deprecateSnakeCase,
	RunE:    resetGraphs,
}

func init() {
	ResetGraphsCmd.Flags().BoolVar(&resetDelivered, "delivered", false, "also remove agreed blocks not yet applied")
}

func resetGraphs(cmd *cobra.Command, args []string) error {
	uow, err := store.NewUnitOfWork(conf.Storage.Backend, conf.Storage.DBDir(), conf.Storage.Compress, logger)
	if err != nil {
		return err
	}
	defer uow.Close()

	graphs, err := uow.BlockGraphs.Where(func(*types.BlockGraph) bool { return true })
	if err != nil {
		return err
	}
	for _, bg := range graphs {
		if err := uow.BlockGraphs.Remove(bg.Identifier()); err != nil {
			return err
		}
	}
	logger.Info("Removed block graphs", "count", len(graphs))

	if !resetDelivered {
		return nil
	}
	blocks, err := uow.Delivered.Where(func(*types.Block) bool { return true })
	if err != nil {
		return err
	}
	for _, block := range blocks {
		if err := uow.Delivered.Remove(block); err != nil {
			return err
		}
	}
	logger.Info("Removed delivered blocks", "count", len(blocks))
	return nil
}

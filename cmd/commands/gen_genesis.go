package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmrand "github.com/tendermint/tendermint/libs/rand"
	tmtime "github.com/tendermint/tendermint/types/time"

	"graphbft/config"
	"graphbft/types"
)

var chainID string

// GenGenesisCmd picks the chain id and genesis time of a new cluster and
// writes them to the config file. Every node of the cluster must use the
// same [graph] chain_id and genesis_time.
var GenGenesisCmd = &cobra.Command{
	Use:     "gen-genesis",
	Aliases: []string{"gen_genesis"},
	Short:   "Generate the genesis settings of a cluster",
	PreRun:  deprecateSnakeCase,
	RunE:    genGenesis,
}

func init() {
	GenGenesisCmd.Flags().StringVar(&chainID, "chain-id", "", "chain id, random when empty")
}

func genGenesis(cmd *cobra.Command, args []string) error {
	if chainID == "" {
		chainID = fmt.Sprintf("graph-chain-%v", tmrand.Str(6))
	}
	genesisTime := tmtime.Now()

	conf.Graph.ChainID = chainID
	conf.Graph.GenesisTime = genesisTime.Format(config.GenesisTimeFormat)
	if err := conf.Graph.ValidateBasic(); err != nil {
		return err
	}

	configFile := config.ConfigFile(conf.RootDir)
	config.WriteConfigFile(configFile, conf)

	genesis := types.MakeGenesisBlock(chainID, genesisTime)
	logger.Info("Generated genesis settings", "path", configFile, "chain", chainID, "genesis", genesis.Hash())
	return nil
}

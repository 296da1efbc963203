package commands

import (
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"

	"graphbft/config"
	"graphbft/signing"
)

// InitFilesCmd writes the config file, the node key and the signing key
// ring of a fresh node.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a graph node",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(conf)
}

func initFilesWithConfig(conf *config.Config) error {
	nodeKeyFile := conf.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("Found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("Generated node key", "path", nodeKeyFile)
	}

	keyRingFile := conf.Graph.KeyRingFile()
	if tmos.FileExists(keyRingFile) {
		logger.Info("Found key ring", "path", keyRingFile)
	} else {
		if _, err := signing.LoadOrGenKeyRing(keyRingFile, conf.Graph.SigningKeyName, conf.Graph.KeyType); err != nil {
			return err
		}
		logger.Info("Generated key ring", "path", keyRingFile)
	}

	configFile := config.ConfigFile(conf.RootDir)
	if tmos.FileExists(configFile) {
		logger.Info("Found config file", "path", configFile)
	} else {
		config.WriteConfigFile(configFile, conf)
		logger.Info("Generated config file", "path", configFile)
	}
	return nil
}

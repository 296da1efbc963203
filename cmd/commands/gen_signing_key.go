package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"graphbft/signing"
)

var keyName string

// GenSigningKeyCmd adds a block graph signing key to the key ring and
// prints the graph node id it signs as.
var GenSigningKeyCmd = &cobra.Command{
	Use:     "gen-signing-key",
	Aliases: []string{"gen_signing_key"},
	Short:   "Generate a block graph signing key and print its node id",
	PreRun:  deprecateSnakeCase,
	RunE:    genSigningKey,
}

// ShowSigningKeyCmd prints the node id and public key of a signing key.
var ShowSigningKeyCmd = &cobra.Command{
	Use:     "show-signing-key",
	Aliases: []string{"show_signing_key"},
	Short:   "Show the node id and public key of a signing key",
	PreRun:  deprecateSnakeCase,
	RunE:    showSigningKey,
}

func init() {
	GenSigningKeyCmd.Flags().StringVar(&keyName, "name", "", "key name, the default key when empty")
	ShowSigningKeyCmd.Flags().StringVar(&keyName, "name", "", "key name, the default key when empty")
}

func genSigningKey(cmd *cobra.Command, args []string) error {
	kr, err := signing.LoadOrGenKeyRing(conf.Graph.KeyRingFile(), conf.Graph.SigningKeyName, conf.Graph.KeyType)
	if err != nil {
		return err
	}
	name := keyName
	if name == "" {
		name = kr.DefaultSigningKeyName()
	}
	if name, err = kr.GetOrUpsertKeyName(name); err != nil {
		return err
	}
	return printSigningKey(kr, name)
}

func showSigningKey(cmd *cobra.Command, args []string) error {
	kr, err := signing.LoadKeyRing(conf.Graph.KeyRingFile())
	if err != nil {
		return err
	}
	name := keyName
	if name == "" {
		name = kr.DefaultSigningKeyName()
	}
	return printSigningKey(kr, name)
}

func printSigningKey(kr *signing.KeyRing, name string) error {
	pubKey, err := kr.GetPublicKey(name)
	if err != nil {
		return err
	}
	nodeID, err := signing.NodeID(kr, name)
	if err != nil {
		return err
	}
	fmt.Printf("name:    %s\nnode:    %d\npub_key: %s\n", name, nodeID, hex.EncodeToString(pubKey))
	return nil
}

package config

import (
	"bytes"
	"path/filepath"
	"text/template"

	tmos "github.com/tendermint/tendermint/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes a default config file unless one is present.
func EnsureRoot(rootDir string, config *Config) {
	if err := tmos.EnsureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	configFilePath := ConfigFile(rootDir)
	if !tmos.FileExists(configFilePath) {
		WriteConfigFile(configFilePath, config)
	}
}

func ConfigFile(rootDir string) string {
	return filepath.Join(rootDir, defaultConfigDir, "config.toml")
}

// WriteConfigFile renders config into configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	tmos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Output level for logging, including package level options
log_level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log_format = "{{ .BaseConfig.LogFormat }}"

# Path to the JSON file containing the private key to use for node authentication in the p2p protocol
node_key_file = "{{ js .BaseConfig.NodeKey }}"

#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

[rpc]

# TCP or UNIX socket address for the RPC server to listen on
laddr = "{{ .RPC.ListenAddress }}"

# Maximum number of simultaneous connections (including WebSocket).
max_open_connections = {{ .RPC.MaxOpenConnections }}

[p2p]

# Address to listen for incoming connections
laddr = "{{ .P2P.ListenAddress }}"

# Address to advertise to peers for them to dial
external_address = "{{ .P2P.ExternalAddress }}"

# Comma separated list of nodes to keep persistent connections to
persistent_peers = "{{ .P2P.PersistentPeers }}"

# Maximum size of a message packet payload, in bytes
max_packet_msg_payload_size = {{ .P2P.MaxPacketMsgPayloadSize }}

# Toggle to disable guard against peers connecting from the same ip.
allow_duplicate_ip = {{ .P2P.AllowDuplicateIP }}

#######################################################
###          Mempool Configuration Option          ###
#######################################################
[mempool]

broadcast = {{ .Mempool.Broadcast }}

# Maximum number of transactions in the mempool
size = {{ .Mempool.Size }}

# Limit the total size of all txs in the mempool.
max_txs_bytes = {{ .Mempool.MaxTxsBytes }}

# Size of the cache (used to filter transactions we saw earlier) in transactions
cache_size = {{ .Mempool.CacheSize }}

# Maximum size of a single transaction payload.
max_tx_bytes = {{ .Mempool.MaxTxBytes }}

#######################################################
###           Block Graph Configuration Options     ###
#######################################################
[graph]

chain_id = "{{ .Graph.ChainID }}"

# Every node of a cluster must use the same genesis time (RFC3339)
genesis_time = "{{ .Graph.GenesisTime }}"

# Capacity of the working set of not yet finalized block graphs
max_block_graphs = {{ .Graph.MaxBlockGraphs }}

group_idle_timeout = "{{ .Graph.GroupIdleTimeout }}"
batch_flush_interval = "{{ .Graph.BatchFlushInterval }}"
batch_size = {{ .Graph.BatchSize }}
agreement_delay = "{{ .Graph.AgreementDelay }}"

workers = {{ .Graph.Workers }}
committed_cache_size = {{ .Graph.CommittedCacheSize }}

# Propose blocks from the mempool. Enable it on one node of the cluster.
propose_blocks = {{ .Graph.ProposeBlocks }}
propose_interval = "{{ .Graph.ProposeInterval }}"
max_block_txs = {{ .Graph.MaxBlockTxs }}
create_empty_blocks = {{ .Graph.CreateEmptyBlocks }}

signing_key_name = "{{ .Graph.SigningKeyName }}"

# ed25519 or bls
key_type = "{{ .Graph.KeyType }}"
key_ring_file = "{{ js .Graph.KeyRing }}"

#######################################################
###              Storage Configuration Options      ###
#######################################################
[storage]

# goleveldb, memdb or badger
backend = "{{ .Storage.Backend }}"
dir = "{{ js .Storage.Dir }}"

# snappy compress stored values
compress = {{ .Storage.Compress }}
`

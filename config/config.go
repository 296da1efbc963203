package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	cfg "github.com/tendermint/tendermint/config"

	"graphbft/signing"
)

const (
	DefaultGraphDir = ".graphbft"

	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultKeyRingName = "key_ring.json"

	// DefaultGenesisTime is shared by nodes that do not configure one, so
	// they build the same genesis block.
	DefaultGenesisTime = "2021-01-01T00:00:00Z"

	GenesisTimeFormat = time.RFC3339Nano
)

// Config is the node configuration. The base, p2p and rpc sections reuse
// the tendermint definitions.
type Config struct {
	cfg.BaseConfig `mapstructure:",squash"`

	P2P     *cfg.P2PConfig     `mapstructure:"p2p"`
	RPC     *cfg.RPCConfig     `mapstructure:"rpc"`
	Mempool *cfg.MempoolConfig `mapstructure:"mempool"`
	Graph   *GraphConfig       `mapstructure:"graph"`
	Storage *StorageConfig     `mapstructure:"storage"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseConfig: cfg.DefaultBaseConfig(),
		P2P:        cfg.DefaultP2PConfig(),
		RPC:        cfg.DefaultRPCConfig(),
		Mempool:    cfg.DefaultMempoolConfig(),
		Graph:      DefaultGraphConfig(),
		Storage:    DefaultStorageConfig(),
	}
}

func TestConfig() *Config {
	return &Config{
		BaseConfig: cfg.TestBaseConfig(),
		P2P:        cfg.TestP2PConfig(),
		RPC:        cfg.TestRPCConfig(),
		Mempool:    cfg.TestMempoolConfig(),
		Graph:      TestGraphConfig(),
		Storage:    TestStorageConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (c *Config) SetRoot(root string) *Config {
	c.BaseConfig.RootDir = root
	c.P2P.RootDir = root
	c.RPC.RootDir = root
	c.Mempool.RootDir = root
	c.Graph.RootDir = root
	c.Storage.RootDir = root
	return c
}

func (c *Config) ValidateBasic() error {
	if err := c.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := c.P2P.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [p2p] section")
	}
	if err := c.RPC.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [rpc] section")
	}
	if err := c.Mempool.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [mempool] section")
	}
	if err := c.Graph.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [graph] section")
	}
	if err := c.Storage.ValidateBasic(); err != nil {
		return errors.Wrap(err, "error in [storage] section")
	}
	return nil
}

//-----------------------------------------------------------------------------
// GraphConfig

// GraphConfig tunes the block graph pipeline.
type GraphConfig struct {
	RootDir string `mapstructure:"home"`

	ChainID     string `mapstructure:"chain_id"`
	GenesisTime string `mapstructure:"genesis_time"` // RFC3339

	// Capacity of the in-memory working set.
	MaxBlockGraphs int `mapstructure:"max_block_graphs"`

	// Add events of one block hash are grouped until the hash stays idle
	// for GroupIdleTimeout. An open group is flushed every
	// BatchFlushInterval or once it holds BatchSize graphs.
	GroupIdleTimeout   time.Duration `mapstructure:"group_idle_timeout"`
	BatchFlushInterval time.Duration `mapstructure:"batch_flush_interval"`
	BatchSize          int           `mapstructure:"batch_size"`

	// Quiet period after the last completed graph of a hash before the
	// agreement is attempted.
	AgreementDelay time.Duration `mapstructure:"agreement_delay"`

	Workers            int `mapstructure:"workers"`
	CommittedCacheSize int `mapstructure:"committed_cache_size"`

	// A producing node proposes the next block from its mempool every
	// ProposeInterval, unless a block graph for that round is already
	// pooled. Run one producer per cluster.
	ProposeBlocks     bool          `mapstructure:"propose_blocks"`
	ProposeInterval   time.Duration `mapstructure:"propose_interval"`
	MaxBlockTxs       int           `mapstructure:"max_block_txs"`
	CreateEmptyBlocks bool          `mapstructure:"create_empty_blocks"`

	SigningKeyName string `mapstructure:"signing_key_name"`
	KeyType        string `mapstructure:"key_type"`
	KeyRing        string `mapstructure:"key_ring_file"`
}

func DefaultGraphConfig() *GraphConfig {
	return &GraphConfig{
		ChainID:            "graph-chain",
		GenesisTime:        DefaultGenesisTime,
		MaxBlockGraphs:     10000,
		GroupIdleTimeout:   10 * time.Second,
		BatchFlushInterval: 1 * time.Second,
		BatchSize:          500,
		AgreementDelay:     10 * time.Second,
		Workers:            8,
		CommittedCacheSize: 1024,
		ProposeBlocks:      false,
		ProposeInterval:    1 * time.Second,
		MaxBlockTxs:        500,
		CreateEmptyBlocks:  false,
		SigningKeyName:     signing.DefaultKeyName,
		KeyType:            signing.KeyTypeEd25519,
		KeyRing:            filepath.Join(defaultConfigDir, defaultKeyRingName),
	}
}

// TestGraphConfig shrinks every window so pipeline tests finish quickly.
func TestGraphConfig() *GraphConfig {
	conf := DefaultGraphConfig()
	conf.ChainID = "graph-test-chain"
	conf.GroupIdleTimeout = 200 * time.Millisecond
	conf.BatchFlushInterval = 20 * time.Millisecond
	conf.BatchSize = 10
	conf.AgreementDelay = 100 * time.Millisecond
	conf.Workers = 4
	conf.CommittedCacheSize = 64
	conf.ProposeInterval = 50 * time.Millisecond
	conf.MaxBlockTxs = 100
	return conf
}

func (c *GraphConfig) KeyRingFile() string {
	return rootify(c.KeyRing, c.RootDir)
}

func (c *GraphConfig) GenesisTimestamp() (time.Time, error) {
	t, err := time.Parse(GenesisTimeFormat, c.GenesisTime)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "invalid genesis_time")
	}
	return t.UTC(), nil
}

func (c *GraphConfig) ValidateBasic() error {
	if c.ChainID == "" {
		return errors.New("chain_id can't be empty")
	}
	if _, err := c.GenesisTimestamp(); err != nil {
		return err
	}
	if c.MaxBlockGraphs <= 0 {
		return errors.New("max_block_graphs must be positive")
	}
	if c.GroupIdleTimeout <= 0 || c.BatchFlushInterval <= 0 || c.AgreementDelay <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.CommittedCacheSize <= 0 {
		return errors.New("committed_cache_size must be positive")
	}
	if c.ProposeInterval <= 0 {
		return errors.New("propose_interval must be positive")
	}
	if c.MaxBlockTxs <= 0 {
		return errors.New("max_block_txs must be positive")
	}
	switch c.KeyType {
	case signing.KeyTypeEd25519, signing.KeyTypeBLS:
	default:
		return fmt.Errorf("unknown key_type %q", c.KeyType)
	}
	return nil
}

//-----------------------------------------------------------------------------
// StorageConfig

type StorageConfig struct {
	RootDir string `mapstructure:"home"`

	// goleveldb, memdb or badger
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
}

func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:  "goleveldb",
		Dir:      defaultDataDir,
		Compress: true,
	}
}

func TestStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend: "memdb",
		Dir:     defaultDataDir,
	}
}

func (c *StorageConfig) DBDir() string {
	return rootify(c.Dir, c.RootDir)
}

func (c *StorageConfig) ValidateBasic() error {
	if c.Backend == "" {
		return errors.New("backend can't be empty")
	}
	return nil
}

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

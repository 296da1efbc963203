package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tendermint/tendermint/crypto/merkle"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// Block is one entry of the hash chain. Heights start at zero and are
// contiguous; the block at height N links to N-1 through PrevHash.
type Block struct {
	ChainID   string           `msgpack:"chain_id" json:"chain_id"`
	Height    uint64           `msgpack:"height" json:"height"`
	Time      time.Time        `msgpack:"time" json:"time"`
	PrevHash  tmbytes.HexBytes `msgpack:"prev_hash" json:"prev_hash"`
	TxsHash   tmbytes.HexBytes `msgpack:"txs_hash" json:"txs_hash"`
	BlockHash tmbytes.HexBytes `msgpack:"block_hash" json:"block_hash"`

	Txs Txs `msgpack:"txs" json:"txs"`
}

// ValidateBasic checks the block is self consistent: hashes match contents
// and every transaction carries a well formed id.
func (b *Block) ValidateBasic() error {
	if b == nil {
		return fmt.Errorf("nil block")
	}
	if len(b.BlockHash) == 0 {
		return fmt.Errorf("block had no blockhash")
	}
	if !bytes.Equal(b.TxsHash, b.Txs.Hash()) {
		return ErrTxsHashDiff
	}
	if !bytes.Equal(b.BlockHash, b.computeHash()) {
		return ErrBlockHashDiff
	}
	for i, tx := range b.Txs {
		if err := tx.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid tx #%d: %w", i, err)
		}
	}
	return nil
}

// fillHeader fills the derived hashes.
func (b *Block) fillHeader() {
	if b.TxsHash == nil {
		b.TxsHash = b.Txs.Hash()
	}
	if b.BlockHash == nil {
		b.BlockHash = b.computeHash()
	}
}

func (b *Block) Hash() tmbytes.HexBytes {
	if b == nil {
		return nil
	}
	b.fillHeader()
	return b.BlockHash
}

// HashString is the form used to reference a block inside a block graph.
func (b *Block) HashString() string {
	return b.Hash().String()
}

func (b *Block) computeHash() []byte {
	heightBz := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBz, b.Height)
	timeBz := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBz, uint64(b.Time.UnixNano()))

	return merkle.HashFromByteSlices([][]byte{
		[]byte(b.ChainID),
		heightBz,
		timeBz,
		b.PrevHash,
		b.TxsHash,
	})
}

func (b *Block) Marshal() ([]byte, error) {
	b.fillHeader()
	return Encode(b)
}

func UnmarshalBlock(bz []byte) (*Block, error) {
	block := new(Block)
	if err := Decode(bz, block); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{#%v %v txs:%d}", b.Height, b.Hash(), len(b.Txs))
}

// BlockHash pairs a height with the hash of the block that closes it.
type BlockHash struct {
	Height uint64           `json:"height"`
	Hash   tmbytes.HexBytes `json:"hash"`
}

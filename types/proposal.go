package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// GraphBlock is a block as seen by one node in one round. Data holds the
// encoded chain Block.
type GraphBlock struct {
	Hash  string `msgpack:"hash" json:"hash"`
	Node  uint64 `msgpack:"node" json:"node"`
	Round uint64 `msgpack:"round" json:"round"`
	Data  []byte `msgpack:"data" json:"data"`
}

func (gb GraphBlock) IsEmpty() bool {
	return gb.Hash == "" && len(gb.Data) == 0
}

func (gb GraphBlock) bytes() [][]byte {
	nodeBz := make([]byte, 8)
	binary.BigEndian.PutUint64(nodeBz, gb.Node)
	roundBz := make([]byte, 8)
	binary.BigEndian.PutUint64(roundBz, gb.Round)
	return [][]byte{[]byte(gb.Hash), nodeBz, roundBz, tmhash.Sum(gb.Data)}
}

// BlockGraph is a proposal: a block plus the block it builds on, signed by
// the node named in Block.Node.
type BlockGraph struct {
	Block     GraphBlock `msgpack:"block" json:"block"`
	Prev      GraphBlock `msgpack:"prev" json:"prev"`
	PublicKey []byte     `msgpack:"public_key" json:"public_key"`
	Signature []byte     `msgpack:"signature" json:"signature"`
}

// NewBlockGraph wraps block for node, referencing prev when it is known.
func NewBlockGraph(block, prev *Block, node uint64) (*BlockGraph, error) {
	data, err := block.Marshal()
	if err != nil {
		return nil, err
	}
	bg := &BlockGraph{
		Block: GraphBlock{
			Hash:  block.HashString(),
			Node:  node,
			Round: block.Height,
			Data:  data,
		},
	}
	if prev != nil {
		prevData, err := prev.Marshal()
		if err != nil {
			return nil, err
		}
		bg.Prev = GraphBlock{
			Hash:  prev.HashString(),
			Node:  node,
			Round: prev.Height,
			Data:  prevData,
		}
	}
	return bg, nil
}

// ValidateBasic rejects graphs that can never be processed.
func (bg *BlockGraph) ValidateBasic() error {
	if bg == nil {
		return fmt.Errorf("nil block graph")
	}
	if bg.Block.Hash == "" {
		return ErrEmptyBlockHash
	}
	if _, err := hex.DecodeString(bg.Block.Hash); err != nil {
		return fmt.Errorf("block hash is not hex: %w", err)
	}
	if len(bg.Block.Data) == 0 {
		return ErrEmptyBlockData
	}
	return nil
}

// Hash is the signed digest. It covers Block and Prev only.
func (bg *BlockGraph) Hash() []byte {
	return merkle.HashFromByteSlices(append(bg.Block.bytes(), bg.Prev.bytes()...))
}

// Identifier is the key of the graph in every store: one per node, round and
// block hash.
func (bg *BlockGraph) Identifier() string {
	h := tmhash.New()
	nodeBz := make([]byte, 8)
	binary.BigEndian.PutUint64(nodeBz, bg.Block.Node)
	roundBz := make([]byte, 8)
	binary.BigEndian.PutUint64(roundBz, bg.Block.Round)
	h.Write(nodeBz)
	h.Write(roundBz)
	h.Write([]byte(bg.Block.Hash))
	return hex.EncodeToString(h.Sum(nil))
}

// Copy returns a deep copy.
func (bg *BlockGraph) Copy() *BlockGraph {
	bgCopy := *bg
	bgCopy.Block.Data = copyBytes(bg.Block.Data)
	bgCopy.Prev.Data = copyBytes(bg.Prev.Data)
	bgCopy.PublicKey = copyBytes(bg.PublicKey)
	bgCopy.Signature = copyBytes(bg.Signature)
	return &bgCopy
}

func (bg *BlockGraph) IsSigned() bool {
	return len(bg.PublicKey) > 0 && len(bg.Signature) > 0
}

func (bg *BlockGraph) Marshal() ([]byte, error) {
	return Encode(bg)
}

func UnmarshalBlockGraph(bz []byte) (*BlockGraph, error) {
	bg := new(BlockGraph)
	if err := Decode(bz, bg); err != nil {
		return nil, err
	}
	return bg, nil
}

func (bg *BlockGraph) String() string {
	if bg == nil {
		return "nil-BlockGraph"
	}
	return fmt.Sprintf("BlockGraph{node:%v round:%v hash:%v}", bg.Block.Node, bg.Block.Round, bg.Block.Hash)
}

func copyBytes(bz []byte) []byte {
	if bz == nil {
		return nil
	}
	cp := make([]byte, len(bz))
	copy(cp, bz)
	return cp
}

// Interpreted is what the agreement oracle delivers: the blocks agreed on for
// a round, in commit order. Entries whose payload is not held locally have
// empty Data.
type Interpreted struct {
	Blocks []GraphBlock `msgpack:"blocks" json:"blocks"`
	Round  uint64       `msgpack:"round" json:"round"`
}

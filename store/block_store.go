package store

import (
	"graphbft/types"

	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
)

// BlockStore is a repository of chain blocks ordered by height.
type BlockStore interface {
	Put(block *types.Block) error
	Remove(block *types.Block) error
	Get(predicate func(*types.Block) bool) (*types.Block, error)
	Where(predicate func(*types.Block) bool) ([]*types.Block, error)
	// ByHeight returns the blocks stored at height, in hash order.
	ByHeight(height uint64) ([]*types.Block, error)
	// OrderByRange skips skip blocks in ascending height order and returns
	// at most take of the rest.
	OrderByRange(skip, take int) ([]*types.Block, error)
	Count() (int, error)
	// Last returns the highest block, or ErrNotFound.
	Last() (*types.Block, error)
}

// blockStore keys blocks by big endian height, followed by the block hash
// when several blocks may share a height.
type blockStore struct {
	kv *kvTable

	// hashChain stores exactly one block per height, starting at zero.
	hashChain bool
}

var _ BlockStore = (*blockStore)(nil)

// NewHashChainStore returns the repository of committed blocks.
func NewHashChainStore(db tmdb.DB, compress bool, logger log.Logger) BlockStore {
	return &blockStore{kv: newKVTable(db, tableHashChain, compress, logger), hashChain: true}
}

// NewDeliveredStore returns the repository of agreed blocks waiting to be
// applied to the hash chain.
func NewDeliveredStore(db tmdb.DB, compress bool, logger log.Logger) BlockStore {
	return &blockStore{kv: newKVTable(db, tableDelivered, compress, logger)}
}

func (s *blockStore) key(block *types.Block) []byte {
	k := heightKey(block.Height)
	if s.hashChain {
		return k
	}
	return append(k, block.Hash()...)
}

func (s *blockStore) Put(block *types.Block) error {
	return s.kv.put(s.key(block), block)
}

func (s *blockStore) Remove(block *types.Block) error {
	return s.kv.remove(s.key(block))
}

func (s *blockStore) Get(predicate func(*types.Block) bool) (*types.Block, error) {
	var found *types.Block
	err := s.scan(nil, nil, false, func(b *types.Block) bool {
		if predicate(b) {
			found = b
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *blockStore) Where(predicate func(*types.Block) bool) ([]*types.Block, error) {
	var blocks []*types.Block
	err := s.scan(nil, nil, false, func(b *types.Block) bool {
		if predicate(b) {
			blocks = append(blocks, b)
		}
		return true
	})
	return blocks, err
}

func (s *blockStore) ByHeight(height uint64) ([]*types.Block, error) {
	var blocks []*types.Block
	start, end := heightRange(height)
	err := s.scan(start, end, false, func(b *types.Block) bool {
		blocks = append(blocks, b)
		return true
	})
	return blocks, err
}

func (s *blockStore) OrderByRange(skip, take int) ([]*types.Block, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		return nil, nil
	}
	blocks := make([]*types.Block, 0, take)
	i := 0
	err := s.scan(nil, nil, false, func(b *types.Block) bool {
		if i >= skip {
			blocks = append(blocks, b)
		}
		i++
		return len(blocks) < take
	})
	return blocks, err
}

// Count of a hash chain is derived from its last height.
func (s *blockStore) Count() (int, error) {
	if !s.hashChain {
		return s.kv.count()
	}
	last, err := s.Last()
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(last.Height) + 1, nil
}

func (s *blockStore) Last() (*types.Block, error) {
	var last *types.Block
	err := s.scan(nil, nil, true, func(b *types.Block) bool {
		last = b
		return false
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

func (s *blockStore) scan(start, end []byte, reverse bool, fn func(*types.Block) bool) error {
	return s.kv.iterate(start, end, reverse, func(key, value []byte) bool {
		block := new(types.Block)
		if err := s.kv.codec.decode(value, block); err != nil {
			s.kv.logger.Error("skip undecodable block", "key", key, "err", err)
			return true
		}
		return fn(block)
	})
}

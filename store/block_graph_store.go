package store

import (
	"graphbft/types"

	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
)

// BlockGraphStore is the durable repository of block graphs that have not
// been finalized yet. Entries are keyed by BlockGraph.Identifier.
type BlockGraphStore interface {
	Put(bg *types.BlockGraph) error
	Remove(identifier string) error
	Has(identifier string) (bool, error)
	Get(predicate func(*types.BlockGraph) bool) (*types.BlockGraph, error)
	Where(predicate func(*types.BlockGraph) bool) ([]*types.BlockGraph, error)
	Count() (int, error)
}

type blockGraphStore struct {
	kv *kvTable
}

var _ BlockGraphStore = (*blockGraphStore)(nil)

func NewBlockGraphStore(db tmdb.DB, compress bool, logger log.Logger) BlockGraphStore {
	return &blockGraphStore{kv: newKVTable(db, tableBlockGraph, compress, logger)}
}

func (s *blockGraphStore) Put(bg *types.BlockGraph) error {
	return s.kv.put([]byte(bg.Identifier()), bg)
}

func (s *blockGraphStore) Remove(identifier string) error {
	return s.kv.remove([]byte(identifier))
}

func (s *blockGraphStore) Has(identifier string) (bool, error) {
	return s.kv.has([]byte(identifier))
}

// Get returns the first graph matching predicate, or ErrNotFound.
func (s *blockGraphStore) Get(predicate func(*types.BlockGraph) bool) (*types.BlockGraph, error) {
	var found *types.BlockGraph
	err := s.scan(func(bg *types.BlockGraph) bool {
		if predicate(bg) {
			found = bg
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

func (s *blockGraphStore) Where(predicate func(*types.BlockGraph) bool) ([]*types.BlockGraph, error) {
	var graphs []*types.BlockGraph
	err := s.scan(func(bg *types.BlockGraph) bool {
		if predicate(bg) {
			graphs = append(graphs, bg)
		}
		return true
	})
	return graphs, err
}

func (s *blockGraphStore) Count() (int, error) {
	return s.kv.count()
}

// scan decodes every stored graph. Entries that fail to decode are logged
// and skipped.
func (s *blockGraphStore) scan(fn func(*types.BlockGraph) bool) error {
	return s.kv.iterate(nil, nil, false, func(key, value []byte) bool {
		bg := new(types.BlockGraph)
		if err := s.kv.codec.decode(value, bg); err != nil {
			s.kv.logger.Error("skip undecodable block graph", "key", string(key), "err", err)
			return true
		}
		return fn(bg)
	})
}

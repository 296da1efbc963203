package store

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	"github.com/tendermint/tm-db/memdb"
)

const (
	graphDBName = "graph"
	chainDBName = "chain"
)

// UnitOfWork groups the repositories used by the graph. Block graphs and
// delivered blocks share one database; the hash chain lives in its own.
type UnitOfWork struct {
	BlockGraphs BlockGraphStore
	HashChain   BlockStore
	Delivered   BlockStore

	dbs []tmdb.DB
}

// NewUnitOfWork opens the databases under dir with the given backend.
func NewUnitOfWork(backend, dir string, compress bool, logger log.Logger) (*UnitOfWork, error) {
	graphDB, err := NewDB(graphDBName, backend, dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open graph db")
	}
	chainDB, err := NewDB(chainDBName, backend, dir)
	if err != nil {
		graphDB.Close()
		return nil, errors.Wrap(err, "failed to open chain db")
	}
	return NewUnitOfWorkWithDB(graphDB, chainDB, compress, logger), nil
}

func NewUnitOfWorkWithDB(graphDB, chainDB tmdb.DB, compress bool, logger log.Logger) *UnitOfWork {
	logger = logger.With("module", "store")
	return &UnitOfWork{
		BlockGraphs: NewBlockGraphStore(graphDB, compress, logger),
		Delivered:   NewDeliveredStore(graphDB, compress, logger),
		HashChain:   NewHashChainStore(chainDB, compress, logger),
		dbs:         []tmdb.DB{graphDB, chainDB},
	}
}

// NewMemUnitOfWork is backed by tm-db MemDB.
func NewMemUnitOfWork(logger log.Logger) *UnitOfWork {
	return NewUnitOfWorkWithDB(memdb.NewDB(), memdb.NewDB(), false, logger)
}

// Stats returns the engine statistics of every database.
func (uow *UnitOfWork) Stats() []map[string]string {
	stats := make([]map[string]string, 0, len(uow.dbs))
	for _, db := range uow.dbs {
		stats = append(stats, db.Stats())
	}
	return stats
}

func (uow *UnitOfWork) Close() error {
	var result *multierror.Error
	for _, db := range uow.dbs {
		if err := db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

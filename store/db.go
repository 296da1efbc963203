package store

import (
	tmdb "github.com/tendermint/tm-db"
	"github.com/tendermint/tm-db/badgerdb"
	leveldb "github.com/tendermint/tm-db/goleveldb"
	"github.com/tendermint/tm-db/memdb"
	"github.com/tendermint/tm-db/metadb"
)

// Backends opened without build tags. Any other name goes through metadb,
// which only knows the engines compiled in with their build tag.
const (
	GoLevelDBBackend = "goleveldb"
	BadgerBackend    = "badger"
	MemDBBackend     = "memdb"
)

// NewDB opens the key value database name under dir with the given backend.
func NewDB(name, backend, dir string) (tmdb.DB, error) {
	switch backend {
	case GoLevelDBBackend:
		db, err := leveldb.NewDB(name, dir)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BadgerBackend, string(metadb.BadgerDBBackend):
		db, err := badgerdb.NewDB(name+".db", dir)
		if err != nil {
			return nil, err
		}
		return db, nil
	case MemDBBackend:
		return memdb.NewDB(), nil
	default:
		return metadb.NewDB(name, metadb.BackendType(backend), dir)
	}
}

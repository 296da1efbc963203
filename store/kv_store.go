package store

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
)

// ErrNotFound is returned by the repositories when no entity matches.
var ErrNotFound = errors.New("entity not found")

const (
	tableBlockGraph = "blockgraph/"
	tableDelivered  = "delivered/"
	tableHashChain  = "chain/"
)

// kvTable is one logical table inside a tm-db database. Keys are namespaced
// by a prefix db and every value goes through the value codec.
type kvTable struct {
	kvDB   *tmdb.PrefixDB
	table  string
	codec  valueCodec
	logger log.Logger
}

func newKVTable(kvdb tmdb.DB, table string, compress bool, logger log.Logger) *kvTable {
	return &kvTable{
		kvDB:   tmdb.NewPrefixDB(kvdb, []byte(table)),
		table:  table,
		codec:  valueCodec{compress: compress},
		logger: logger,
	}
}

func (kv *kvTable) put(primaryKey []byte, entity interface{}) error {
	val, err := kv.codec.encode(entity)
	if err != nil {
		return err
	}
	if err := kv.kvDB.SetSync(primaryKey, val); err != nil {
		return errors.Wrapf(err, "failed to put %s%X", kv.table, primaryKey)
	}
	return nil
}

func (kv *kvTable) has(primaryKey []byte) (bool, error) {
	return kv.kvDB.Has(primaryKey)
}

func (kv *kvTable) remove(primaryKey []byte) error {
	if err := kv.kvDB.DeleteSync(primaryKey); err != nil {
		return errors.Wrapf(err, "failed to delete %s%X", kv.table, primaryKey)
	}
	return nil
}

// iterate walks the keys of [start, end) in key order. nil bounds are open.
// fn returns false to stop.
func (kv *kvTable) iterate(start, end []byte, reverse bool, fn func(key, value []byte) bool) error {
	var (
		itr tmdb.Iterator
		err error
	)
	if reverse {
		itr, err = kv.kvDB.ReverseIterator(start, end)
	} else {
		itr, err = kv.kvDB.Iterator(start, end)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to iterate %s", kv.table)
	}
	defer itr.Close()

	for ; itr.Valid(); itr.Next() {
		if !fn(itr.Key(), itr.Value()) {
			break
		}
	}
	return itr.Error()
}

// count returns the number of keys in the table.
func (kv *kvTable) count() (int, error) {
	n := 0
	err := kv.iterate(nil, nil, false, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

func heightKey(height uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, height)
	return bz
}

// heightRange bounds the keys stored at height.
func heightRange(height uint64) (start, end []byte) {
	if height == math.MaxUint64 {
		return heightKey(height), nil
	}
	return heightKey(height), heightKey(height + 1)
}

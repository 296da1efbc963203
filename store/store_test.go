package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"

	"graphbft/types"
)

var testGenesisTime = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func makeChain(n int) []*types.Block {
	blocks := []*types.Block{types.MakeGenesisBlock("store_test", testGenesisTime)}
	for i := 1; i < n; i++ {
		prev := blocks[i-1]
		tx := types.NewTx([]byte(fmt.Sprintf("k%d=v", i)))
		blocks = append(blocks, types.MakeBlock(prev, types.Txs{tx}, testGenesisTime.Add(time.Duration(i)*time.Second)))
	}
	return blocks
}

func makeGraph(t *testing.T, block, prev *types.Block, node uint64) *types.BlockGraph {
	bg, err := types.NewBlockGraph(block, prev, node)
	require.NoError(t, err)
	return bg
}

func TestBlockGraphStore(t *testing.T) {
	uow := NewMemUnitOfWork(log.TestingLogger())
	defer uow.Close()

	chain := makeChain(3)
	graphs := []*types.BlockGraph{
		makeGraph(t, chain[1], chain[0], 1),
		makeGraph(t, chain[1], chain[0], 2),
		makeGraph(t, chain[2], chain[1], 1),
	}
	for _, bg := range graphs {
		require.NoError(t, uow.BlockGraphs.Put(bg))
	}
	// same identity overwrites
	require.NoError(t, uow.BlockGraphs.Put(graphs[0]))

	n, err := uow.BlockGraphs.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err := uow.BlockGraphs.Has(graphs[1].Identifier())
	require.NoError(t, err)
	assert.True(t, ok)

	round1, err := uow.BlockGraphs.Where(func(bg *types.BlockGraph) bool {
		return bg.Block.Round == 1 && bg.Block.Hash == chain[1].HashString()
	})
	require.NoError(t, err)
	assert.Len(t, round1, 2)

	got, err := uow.BlockGraphs.Get(func(bg *types.BlockGraph) bool {
		return bg.Block.Round == 2
	})
	require.NoError(t, err)
	assert.Equal(t, graphs[2].Identifier(), got.Identifier())
	assert.Equal(t, graphs[2].Block.Data, got.Block.Data)

	require.NoError(t, uow.BlockGraphs.Remove(graphs[2].Identifier()))
	_, err = uow.BlockGraphs.Get(func(bg *types.BlockGraph) bool {
		return bg.Block.Round == 2
	})
	assert.Equal(t, ErrNotFound, err)
}

func TestHashChainStore(t *testing.T) {
	uow := NewMemUnitOfWork(log.TestingLogger())
	defer uow.Close()

	n, err := uow.HashChain.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = uow.HashChain.Last()
	assert.Equal(t, ErrNotFound, err)

	chain := makeChain(300)
	for _, b := range chain {
		require.NoError(t, uow.HashChain.Put(b))
	}

	n, err = uow.HashChain.Count()
	require.NoError(t, err)
	assert.Equal(t, 300, n)

	last, err := uow.HashChain.Last()
	require.NoError(t, err)
	assert.EqualValues(t, 299, last.Height)
	assert.Equal(t, chain[299].Hash(), last.Hash())

	// heights are big endian, so 256 sorts after 255
	blocks, err := uow.HashChain.OrderByRange(250, 10)
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	for i, b := range blocks {
		assert.EqualValues(t, 250+i, b.Height)
	}

	blocks, err = uow.HashChain.OrderByRange(295, 10)
	require.NoError(t, err)
	assert.Len(t, blocks, 5)

	blocks, err = uow.HashChain.OrderByRange(0, 0)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	atHeight, err := uow.HashChain.ByHeight(42)
	require.NoError(t, err)
	require.Len(t, atHeight, 1)
	assert.Equal(t, chain[42].Hash(), atHeight[0].Hash())
	assert.NoError(t, atHeight[0].ValidateBasic())

	tx := chain[7].Txs[0]
	found, err := uow.HashChain.Get(func(b *types.Block) bool {
		return b.Txs.Contains(tx.TxnID)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, found.Height)
}

func TestDeliveredStoreKeepsCompetingBlocks(t *testing.T) {
	uow := NewMemUnitOfWork(log.TestingLogger())
	defer uow.Close()

	chain := makeChain(2)
	competing := types.MakeBlock(chain[0], types.Txs{types.NewTx([]byte("other"))}, testGenesisTime.Add(time.Minute))

	require.NoError(t, uow.Delivered.Put(chain[1]))
	require.NoError(t, uow.Delivered.Put(competing))

	blocks, err := uow.Delivered.ByHeight(1)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	n, err := uow.Delivered.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, uow.Delivered.Remove(competing))
	blocks, err = uow.Delivered.Where(func(b *types.Block) bool { return true })
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, chain[1].Hash(), blocks[0].Hash())
}

func TestCompressedValues(t *testing.T) {
	db := memdb.NewDB()
	compressed := NewHashChainStore(db, true, log.TestingLogger())

	chain := makeChain(2)
	require.NoError(t, compressed.Put(chain[1]))

	last, err := compressed.Last()
	require.NoError(t, err)
	assert.Equal(t, chain[1].Hash(), last.Hash())

	// the raw value is the snappy frame of the msgpack encoding
	plain := valueCodec{}
	raw, err := plain.encode(chain[1])
	require.NoError(t, err)
	stored, err := db.Get(append([]byte(tableHashChain), heightKey(1)...))
	require.NoError(t, err)
	uncompressed, err := snappy.Decode(nil, stored)
	require.NoError(t, err)
	assert.Equal(t, raw, uncompressed)
}

func TestBadgerBackend(t *testing.T) {
	dir := t.TempDir()
	uow, err := NewUnitOfWork(BadgerBackend, dir, true, log.TestingLogger())
	require.NoError(t, err)

	chain := makeChain(5)
	for _, b := range chain {
		require.NoError(t, uow.HashChain.Put(b))
	}
	bg := makeGraph(t, chain[4], chain[3], 9)
	require.NoError(t, uow.BlockGraphs.Put(bg))

	n, err := uow.HashChain.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	blocks, err := uow.HashChain.OrderByRange(1, 2)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.EqualValues(t, 1, blocks[0].Height)
	assert.NotEmpty(t, uow.Stats())
	require.NoError(t, uow.Close())

	// reopen and read back
	uow, err = NewUnitOfWork(BadgerBackend, dir, true, log.TestingLogger())
	require.NoError(t, err)
	defer uow.Close()
	last, err := uow.HashChain.Last()
	require.NoError(t, err)
	assert.EqualValues(t, 4, last.Height)
	ok, err := uow.BlockGraphs.Has(bg.Identifier())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewDBBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{GoLevelDBBackend, BadgerBackend, MemDBBackend} {
		db, err := NewDB("backend_"+backend, backend, dir)
		require.NoError(t, err, backend)
		require.NoError(t, db.Set([]byte("k"), []byte("v")), backend)
		v, err := db.Get([]byte("k"))
		require.NoError(t, err, backend)
		assert.Equal(t, []byte("v"), v, backend)
		require.NoError(t, db.Close(), backend)
	}

	// engines behind a build tag are unknown to a default build
	_, err := NewDB("rocks", "rocksdb", dir)
	assert.Error(t, err)
}

func TestHashChainByHeight(t *testing.T) {
	db := memdb.NewDB()
	chain := NewHashChainStore(db, false, log.TestingLogger())
	delivered := NewDeliveredStore(db, false, log.TestingLogger())

	blocks := makeChain(4)
	for _, b := range blocks {
		require.NoError(t, chain.Put(b))
	}
	require.NoError(t, delivered.Put(blocks[3]))

	for _, b := range blocks {
		found, err := chain.ByHeight(b.Height)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, b.Hash(), found[0].Hash())
	}
	found, err := chain.ByHeight(10)
	require.NoError(t, err)
	assert.Empty(t, found)

	// tables sharing a database do not see each other
	n, err := chain.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = delivered.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

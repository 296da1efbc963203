package consensus

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"graphbft/config"
	"graphbft/store"
	"graphbft/types"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func TestSubmitProposalResults(t *testing.T) {
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	other := genKeyRing(t)

	bg := signedGraph(t, other, types.MakeBlock(genesis, testTxs(2), time.Now()), genesis)
	assert.Equal(t, types.Succeed, g.SubmitProposal(bg))
	assert.Equal(t, types.AlreadyExists, g.SubmitProposal(bg.Copy()))

	bz, err := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, testTxs(1), time.Now()), genesis).Marshal()
	require.NoError(t, err)
	assert.Equal(t, types.Succeed, g.SubmitProposalBytes(bz))
	assert.Equal(t, types.AlreadyExists, g.SubmitProposalBytes(bz))

	assert.Equal(t, types.Invalid, g.SubmitProposal(&types.BlockGraph{}))
	assert.Equal(t, types.Invalid, g.SubmitProposalBytes([]byte("not a block graph")))
}

func TestSubmitProposalNotRunning(t *testing.T) {
	g := newTestGraph(t, nil)
	genesis := chainTip(t, g)
	bg := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, nil, time.Now()), genesis)
	assert.Equal(t, types.Invalid, g.SubmitProposal(bg))
}

func TestSubmitProposalPoolFull(t *testing.T) {
	conf := config.TestGraphConfig()
	conf.MaxBlockGraphs = 1
	g := startTestGraph(t, conf, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, nil, time.Now())

	assert.Equal(t, types.Succeed, g.SubmitProposal(signedGraph(t, genKeyRing(t), block, genesis)))
	assert.Equal(t, types.Invalid, g.SubmitProposal(signedGraph(t, genKeyRing(t), block, genesis)))
}

func TestInactiveRoundIsDropped(t *testing.T) {
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)

	prev := genesis
	for i := 0; i < 4; i++ {
		prev = types.MakeBlock(prev, nil, time.Now())
	}
	future := signedGraph(t, genKeyRing(t), types.MakeBlock(prev, nil, time.Now()), prev)
	require.EqualValues(t, 5, future.Block.Round)
	assert.Equal(t, types.Succeed, g.SubmitProposal(future))
	assert.Equal(t, 0, g.Pool().Size())

	// once round 1 is committed its graphs are stale
	committed := types.MakeBlock(genesis, testTxs(1), time.Now())
	_, err := g.blockExec.ApplyBlock(g.blockExec.State(), committed)
	require.NoError(t, err)
	require.EqualValues(t, 1, g.CurrentRound())

	past := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, testTxs(1), time.Now()), genesis)
	require.EqualValues(t, 1, past.Block.Round)
	assert.Equal(t, types.Succeed, g.SubmitProposal(past))
	assert.Equal(t, 0, g.Pool().Size())

	active := signedGraph(t, genKeyRing(t), types.MakeBlock(committed, nil, time.Now()), committed)
	require.EqualValues(t, 2, active.Block.Round)
	assert.Equal(t, types.Succeed, g.SubmitProposal(active))
	assert.True(t, g.Pool().Has(active.Identifier()))
}

func TestStopLeavesNoGoroutines(t *testing.T) {
	defer leaktest.CheckTimeout(t, 2*time.Second)()

	localNode := newFakeLocalNode(3)
	g := newTestGraph(t, nil, WithLocalNode(localNode))
	require.NoError(t, g.Start())
	genesis := chainTip(t, g)

	foreign := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, testTxs(1), time.Now()), genesis)
	require.Equal(t, types.Succeed, g.SubmitProposal(foreign))
	require.Eventually(t, func() bool { return len(localNode.Sent()) == 1 }, waitFor, tick)
	// let the agreement session open before stopping
	require.Eventually(t, func() bool { return g.sessions.Size() == 1 }, waitFor, tick)

	require.NoError(t, g.Stop())
}

func TestOwnGraphIsSignedAndPublished(t *testing.T) {
	localNode := newFakeLocalNode(3)
	g := startTestGraph(t, nil, WithLocalNode(localNode))
	genesis := chainTip(t, g)

	bg, result, err := g.ProposeBlock(types.MakeBlock(genesis, testTxs(3), time.Now()))
	require.NoError(t, err)
	require.Equal(t, types.Succeed, result)
	assert.Equal(t, g.NodeID(), bg.Block.Node)

	require.Eventually(t, func() bool { return len(localNode.Sent()) == 1 }, waitFor, tick)
	sent := localNode.Sent()[0]
	assert.Equal(t, bg.Identifier(), sent.Identifier())
	assert.NoError(t, VerifyBlockGraph(sent))

	has, err := g.uow.BlockGraphs.Has(bg.Identifier())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestForeignGraphIsAnsweredWithOwnCopy(t *testing.T) {
	localNode := newFakeLocalNode(3)
	g := startTestGraph(t, nil, WithLocalNode(localNode))
	genesis := chainTip(t, g)

	foreign := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, testTxs(1), time.Now()), genesis)
	require.Equal(t, types.Succeed, g.SubmitProposal(foreign))

	require.Eventually(t, func() bool {
		n, err := g.uow.BlockGraphs.Count()
		return err == nil && n == 2
	}, waitFor, tick)
	require.Eventually(t, func() bool { return len(localNode.Sent()) == 1 }, waitFor, tick)

	own := localNode.Sent()[0]
	assert.Equal(t, g.NodeID(), own.Block.Node)
	assert.Equal(t, foreign.Block.Hash, own.Block.Hash)
	assert.Equal(t, foreign.Block.Round, own.Block.Round)
	assert.Equal(t, genesis.HashString(), own.Prev.Hash)
	assert.NoError(t, VerifyBlockGraph(own))
	assert.EqualValues(t, 1, g.metric.Copies.Count())
	assert.Equal(t, 2, g.Pool().Size())
}

func TestForeignGraphIsRetriedAfterFailedCopy(t *testing.T) {
	localNode := newFakeLocalNode(3)
	signer := &flakySigner{Signer: genKeyRing(t), failures: 1}
	g := newTestGraphWithSigner(t, nil, signer, WithLocalNode(localNode))
	require.NoError(t, g.Start())
	t.Cleanup(func() { _ = g.Stop() })
	genesis := chainTip(t, g)

	foreign := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, testTxs(1), time.Now()), genesis)
	require.Equal(t, types.Succeed, g.SubmitProposal(foreign))

	// the copy could not be signed: nothing is left pooled for this hash
	require.Eventually(t, func() bool { return g.Pool().Size() == 0 }, waitFor, tick)
	assert.Empty(t, localNode.Sent())

	// a re-gossip of the same graph goes through the whole rule again
	require.Equal(t, types.Succeed, g.SubmitProposal(foreign.Copy()))
	require.Eventually(t, func() bool { return len(localNode.Sent()) == 1 }, waitFor, tick)

	own := localNode.Sent()[0]
	assert.Equal(t, g.NodeID(), own.Block.Node)
	assert.Equal(t, foreign.Block.Hash, own.Block.Hash)
	assert.NoError(t, VerifyBlockGraph(own))
	assert.Equal(t, 2, g.Pool().Size())
	assert.Equal(t, types.AlreadyExists, g.SubmitProposal(foreign.Copy()))
}

func TestForgedForeignGraphIsRejected(t *testing.T) {
	localNode := newFakeLocalNode(3)
	g := startTestGraph(t, nil, WithLocalNode(localNode))
	genesis := chainTip(t, g)

	forged := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, nil, time.Now()), genesis)
	forged.Signature[0] ^= 0xFF
	require.Equal(t, types.Succeed, g.SubmitProposal(forged))

	require.Eventually(t, func() bool { return g.Pool().Size() == 0 }, waitFor, tick)
	n, err := g.uow.BlockGraphs.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, localNode.Sent())
}

func TestAgreementWaitsForQuorum(t *testing.T) {
	// four members: 2f+1 = 3 distinct nodes
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, testTxs(2), time.Now())

	// the graph of one other node plus the local copy
	require.Equal(t, types.Succeed, g.SubmitProposal(signedGraph(t, genKeyRing(t), block, genesis)))
	assert.Never(t, func() bool { return g.sessions.Size() > 0 }, 600*time.Millisecond, tick)
	assert.EqualValues(t, 1, chainHeight(g))

	require.Equal(t, types.Succeed, g.SubmitProposal(signedGraph(t, genKeyRing(t), block, genesis)))
	require.Eventually(t, func() bool { return chainHeight(g) == 2 }, waitFor, tick)

	tip := chainTip(t, g)
	assert.Equal(t, block.HashString(), tip.HashString())
	assert.EqualValues(t, 1, g.CurrentRound())
	require.Eventually(t, func() bool {
		n, err := g.uow.BlockGraphs.Count()
		return err == nil && n == 0 && g.Pool().Size() == 0 && g.sessions.Size() == 0
	}, waitFor, tick)
}

func TestReplayResumesAgreement(t *testing.T) {
	g := newTestGraph(t, nil)
	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, testTxs(1), time.Now())
	for i := 0; i < 3; i++ {
		require.NoError(t, g.uow.BlockGraphs.Put(signedGraph(t, genKeyRing(t), block, genesis)))
	}
	// a finished round is not replayed
	stale := signedGraph(t, genKeyRing(t), genesis, nil)
	require.NoError(t, g.uow.BlockGraphs.Put(stale))

	require.NoError(t, g.Start())
	defer g.Stop()

	assert.Equal(t, 3, g.Pool().Size())
	assert.False(t, g.Pool().Has(stale.Identifier()))
	require.Eventually(t, func() bool { return chainHeight(g) == 2 }, waitFor, tick)
	assert.Equal(t, block.HashString(), chainTip(t, g).HashString())
}

func TestDeliverIsIdempotent(t *testing.T) {
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, testTxs(2), time.Now())
	bg := signedGraph(t, genKeyRing(t), block, genesis)
	require.NoError(t, g.uow.BlockGraphs.Put(bg))

	result := &types.Interpreted{Round: 1, Blocks: []types.GraphBlock{bg.Block}}
	g.deliver(result)
	require.EqualValues(t, 2, chainHeight(g))

	// answered from the committed cache
	g.deliver(result)
	assert.EqualValues(t, 2, chainHeight(g))

	// answered from the chain
	g.committed.Purge()
	require.NoError(t, g.uow.BlockGraphs.Put(bg))
	g.deliver(result)
	assert.EqualValues(t, 2, chainHeight(g))
	has, err := g.uow.BlockGraphs.Has(bg.Identifier())
	require.NoError(t, err)
	assert.False(t, has)

	n, err := g.uow.Delivered.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, g.metric.Committed.Count())
}

func TestDeliverSkipsEmptyAndUnknownEntries(t *testing.T) {
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, nil, time.Now())

	g.deliver(&types.Interpreted{Round: 1, Blocks: []types.GraphBlock{
		{Hash: block.HashString(), Round: 1},
		{Hash: block.HashString(), Round: 1, Node: 7, Data: []byte{0x1}},
	}})
	assert.EqualValues(t, 1, chainHeight(g))
	assert.EqualValues(t, 2, g.metric.Delivered.Count())
}

func TestDeliverDropsForgedGraph(t *testing.T) {
	g := startTestGraph(t, nil, WithLocalNode(newFakeLocalNode(3)))
	genesis := chainTip(t, g)
	bg := signedGraph(t, genKeyRing(t), types.MakeBlock(genesis, nil, time.Now()), genesis)
	bg.Signature[0] ^= 0xFF
	require.NoError(t, g.uow.BlockGraphs.Put(bg))

	g.deliver(&types.Interpreted{Round: 1, Blocks: []types.GraphBlock{bg.Block}})
	assert.EqualValues(t, 1, chainHeight(g))
	assert.EqualValues(t, 1, g.metric.VerifyFailures.Count())

	has, err := g.uow.BlockGraphs.Has(bg.Identifier())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestClusterCommitsProposedBlock(t *testing.T) {
	const count = 4
	net := newMemNetwork()
	graphs := make([]*Graph, count)
	for i := range graphs {
		graphs[i] = newTestGraph(t, nil)
		net.join(string(rune('a'+i)), graphs[i])
	}
	for _, g := range graphs {
		require.NoError(t, g.Start())
	}
	defer func() {
		for _, g := range graphs {
			assert.NoError(t, g.Stop())
		}
	}()

	genesis := chainTip(t, graphs[0])
	block := types.MakeBlock(genesis, testTxs(4), time.Now())
	_, result, err := graphs[0].ProposeBlock(block)
	require.NoError(t, err)
	require.Equal(t, types.Succeed, result)

	for i, g := range graphs {
		require.Eventuallyf(t, func() bool { return chainHeight(g) == 2 }, waitFor, tick, "node %d did not commit", i)
		assert.Equal(t, block.HashString(), chainTip(t, g).HashString())
	}
	for _, g := range graphs {
		g := g
		require.Eventually(t, func() bool { return g.Pool().Size() == 0 }, waitFor, tick)
	}
}

func TestQueries(t *testing.T) {
	g := newTestGraph(t, nil)
	genesis := chainTip(t, g)

	st := g.blockExec.State()
	blocks := []*types.Block{genesis}
	for i := 1; i <= 4; i++ {
		block := types.MakeBlock(blocks[i-1], testTxs(2), time.Now())
		var err error
		st, err = g.blockExec.ApplyBlock(st, block)
		require.NoError(t, err)
		blocks = append(blocks, block)
	}

	height, err := g.GetHeight()
	require.NoError(t, err)
	assert.EqualValues(t, 5, height)
	assert.EqualValues(t, 4, g.CurrentRound())

	latest, err := g.GetHash(0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, latest.Height)
	assert.Equal(t, blocks[4].Hash(), latest.Hash)

	first, err := g.GetHash(1)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash(), first.Hash)

	_, err = g.GetHash(9)
	assert.Equal(t, store.ErrNotFound, err)

	page, err := g.GetBlocks(1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 1, page[0].Height)
	assert.EqualValues(t, 2, page[1].Height)

	safeguard, err := g.GetSafeguardBlocks()
	require.NoError(t, err)
	require.Len(t, safeguard, 5)
	assert.EqualValues(t, 0, safeguard[0].Height)
	assert.EqualValues(t, 4, safeguard[4].Height)

	want := blocks[3].Txs[1]
	tx, err := g.GetTransaction(want.TxnID)
	require.NoError(t, err)
	assert.Equal(t, want.TxnID, tx.TxnID)
	assert.Equal(t, want.Payload, tx.Payload)

	_, err = g.GetTransaction(make([]byte, types.TxnIDSize))
	assert.Equal(t, store.ErrNotFound, err)
	_, err = g.GetTransaction([]byte{0x1})
	assert.Equal(t, types.ErrInvalidTxnID, err)
}

func TestSafeguardWindowIsFixed(t *testing.T) {
	g := newTestGraph(t, nil)
	prev := chainTip(t, g)
	for i := 1; i < safeguardBlocks+3; i++ {
		prev = types.MakeBlock(prev, nil, time.Now())
		require.NoError(t, g.uow.HashChain.Put(prev))
	}

	safeguard, err := g.GetSafeguardBlocks()
	require.NoError(t, err)
	require.Len(t, safeguard, 147)
	assert.EqualValues(t, 3, safeguard[0].Height)
	assert.EqualValues(t, prev.Height, safeguard[146].Height)
}

// brokenChain fails every height lookup.
type brokenChain struct {
	store.BlockStore
}

func (brokenChain) Count() (int, error) {
	return 0, errors.New("disk unavailable")
}

func TestCurrentRoundWarnsOnUnreadableChain(t *testing.T) {
	g := newTestGraph(t, nil)
	var buf bytes.Buffer
	g.SetLogger(log.NewTMLogger(log.NewSyncWriter(&buf)))
	g.uow.HashChain = brokenChain{g.uow.HashChain}

	assert.Zero(t, g.CurrentRound())
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "I["), out)
	assert.Contains(t, out, "warn=")
	assert.Contains(t, out, "disk unavailable")
}

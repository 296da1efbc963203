package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"graphbft/config"
	"graphbft/mempool"
	"graphbft/types"
)

func newTestMempool(t *testing.T) *mempool.ListMempool {
	mem := mempool.NewListMempool(config.TestConfig().SetRoot(t.TempDir()).Mempool, 0)
	mem.SetLogger(log.TestingLogger())
	return mem
}

func newTestProducer(conf *config.GraphConfig, g *Graph, mem mempool.Mempool) *Producer {
	p := NewProducer(conf, g, mem)
	p.SetLogger(log.TestingLogger().With("module", "producer"))
	return p
}

func checkTestTxs(t *testing.T, mem mempool.Mempool, n int) types.Txs {
	txs := testTxs(n)
	for _, tx := range txs {
		require.NoError(t, mem.CheckTx(tx, mempool.TxInfo{SenderID: mempool.UnknownPeerID}))
	}
	return txs
}

func TestProducerCommitsMempoolTxs(t *testing.T) {
	conf := config.TestGraphConfig()
	conf.ProposeBlocks = true
	g := startTestGraph(t, conf)
	mem := newTestMempool(t)
	txs := checkTestTxs(t, mem, 3)

	p := newTestProducer(conf, g, mem)
	require.NoError(t, p.Start())
	defer func() {
		require.NoError(t, p.Stop())
	}()

	assert.Eventually(t, func() bool { return chainHeight(g) == 2 }, waitFor, tick)
	assert.Eventually(t, func() bool { return mem.Size() == 0 }, waitFor, tick)

	tx, err := g.GetTransaction(txs[2].TxnID)
	require.NoError(t, err)
	assert.Equal(t, txs[2].Payload, tx.Payload)
	assert.Equal(t, txs, chainTip(t, g).Txs)

	// committed txs are not accepted again
	assert.Equal(t, mempool.ErrTxInCache, mem.CheckTx(txs[0], mempool.TxInfo{}))
}

func TestProducerProposesOncePerRound(t *testing.T) {
	conf := config.TestGraphConfig()
	conf.ProposeBlocks = true
	// three silent peers keep the round open
	g := startTestGraph(t, conf, WithLocalNode(newFakeLocalNode(3)))
	mem := newTestMempool(t)
	p := newTestProducer(conf, g, mem)

	checkTestTxs(t, mem, 2)
	p.tick()
	assert.EqualValues(t, 1, p.proposedRound)
	assert.Equal(t, 1, g.Pool().Size())

	checkTestTxs(t, mem, 2)
	p.tick()
	assert.Equal(t, 1, g.Pool().Size())
}

func TestProducerBacksOffFromPooledRound(t *testing.T) {
	conf := config.TestGraphConfig()
	conf.ProposeBlocks = true
	g := startTestGraph(t, conf, WithLocalNode(newFakeLocalNode(3)))
	mem := newTestMempool(t)
	p := newTestProducer(conf, g, mem)

	genesis := chainTip(t, g)
	block := types.MakeBlock(genesis, testTxs(1), time.Now())
	require.Equal(t, types.Succeed, g.SubmitProposal(signedGraph(t, genKeyRing(t), block, genesis)))

	checkTestTxs(t, mem, 2)
	p.tick()
	assert.Zero(t, p.proposedRound)
}

func TestProducerWaitsForTxs(t *testing.T) {
	conf := config.TestGraphConfig()
	conf.ProposeBlocks = true
	g := startTestGraph(t, conf, WithLocalNode(newFakeLocalNode(3)))
	p := newTestProducer(conf, g, newTestMempool(t))

	p.tick()
	assert.Zero(t, p.proposedRound)
	assert.Zero(t, g.Pool().Size())

	conf.CreateEmptyBlocks = true
	p.tick()
	assert.EqualValues(t, 1, p.proposedRound)
	assert.Equal(t, 1, g.Pool().Size())
}

func TestProducerUpdatesMempoolOnCommit(t *testing.T) {
	conf := config.TestGraphConfig()
	g := startTestGraph(t, conf, WithLocalNode(newFakeLocalNode(3)))
	mem := newTestMempool(t)
	p := newTestProducer(conf, g, mem)
	p.syncedHeight = 1

	txs := checkTestTxs(t, mem, 3)
	block := types.MakeBlock(chainTip(t, g), txs[:2], time.Now())
	_, err := g.blockExec.ApplyBlock(g.blockExec.State(), block)
	require.NoError(t, err)

	p.tick()
	assert.Equal(t, txs[2:], mem.ReapMaxTxs(-1))
	assert.EqualValues(t, 2, p.syncedHeight)
	// proposing is off
	assert.Zero(t, g.Pool().Size())
}

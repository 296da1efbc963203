package consensus

import (
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/service"

	"graphbft/config"
	"graphbft/mempool"
	"graphbft/types"
)

// Producer ties the mempool to the graph. On every tick it removes the
// transactions committed since the previous tick from the mempool and, when
// ProposeBlocks is set, proposes the block of the next round from the
// mempool.
type Producer struct {
	service.BaseService

	config  *config.GraphConfig
	graph   *Graph
	mempool mempool.Mempool

	mtx           sync.Mutex
	syncedHeight  uint64 // chain height reflected in the mempool
	proposedRound uint64
}

func NewProducer(config *config.GraphConfig, graph *Graph, mempool mempool.Mempool) *Producer {
	p := &Producer{
		config:  config,
		graph:   graph,
		mempool: mempool,
	}
	p.BaseService = *service.NewBaseService(nil, "Producer", p)
	return p
}

func (p *Producer) OnStart() error {
	height, err := p.graph.GetHeight()
	if err != nil {
		return err
	}
	p.mtx.Lock()
	p.syncedHeight = height
	p.mtx.Unlock()

	go p.produceRoutine()
	return nil
}

func (p *Producer) produceRoutine() {
	ticker := time.NewTicker(p.config.ProposeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.Quit():
			return
		}
	}
}

func (p *Producer) tick() {
	if !p.graph.IsRunning() {
		return
	}
	if err := p.syncMempool(); err != nil {
		p.Logger.Error("failed to update mempool", "err", err)
	}
	if p.config.ProposeBlocks {
		p.propose()
	}
}

// syncMempool removes the transactions of the blocks committed since the
// last call.
func (p *Producer) syncMempool() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	height, err := p.graph.GetHeight()
	if err != nil {
		return err
	}
	if height <= p.syncedHeight {
		return nil
	}
	blocks, err := p.graph.GetBlocks(int(p.syncedHeight), int(height-p.syncedHeight))
	if err != nil {
		return err
	}
	var txs types.Txs
	for _, block := range blocks {
		txs = append(txs, block.Txs...)
	}

	p.mempool.Lock()
	err = p.mempool.Update(height, txs)
	p.mempool.Unlock()
	if err != nil {
		return err
	}
	p.syncedHeight = height
	p.Logger.Debug("updated mempool", "height", height, "committed", len(txs), "left", p.mempool.Size())
	return nil
}

// propose proposes the block of the next round at most once. It backs off
// while a block graph of that round is already pooled.
func (p *Producer) propose() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	round := p.graph.nextRound()
	// the chain moved since the mempool was updated, wait for the next tick
	if round != types.CurrentRound(p.syncedHeight)+1 {
		return
	}
	if round <= p.proposedRound {
		return
	}
	if p.graph.Pool().HasRound(round) {
		return
	}
	if p.mempool.Size() == 0 && !p.config.CreateEmptyBlocks {
		return
	}

	txs := p.mempool.ReapMaxTxs(p.config.MaxBlockTxs)
	bg, result, err := p.graph.ProposeTxs(txs)
	if err != nil {
		p.Logger.Error("failed to propose block", "round", round, "err", err)
		return
	}
	if result != types.Succeed {
		p.Logger.Error("proposed block was not admitted", "round", round, "result", result)
		return
	}
	p.proposedRound = round
	p.Logger.Info("proposed block", "round", round, "hash", bg.Block.Hash, "txs", len(txs))
}

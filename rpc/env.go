package rpc

import (
	"github.com/tendermint/tendermint/libs/log"

	"graphbft/consensus"
	"graphbft/libs/metric"
	"graphbft/mempool"
)

var env *Environment

func SetEnvironment(e *Environment) {
	env = e
}

// Environment holds what the rpc functions serve from.
type Environment struct {
	Graph     *consensus.Graph
	Mempool   mempool.Mempool
	MetricSet *metric.MetricSet

	Logger log.Logger
}

package consensus

import (
	"context"

	"graphbft/types"
)

// Events fired on the graph's own event switch.
const (
	// EventBlockGraphAdded carries a *types.BlockGraph admitted to the pool.
	EventBlockGraphAdded = "BlockGraphAdded"
	// EventBlockGraphCompleted carries the block hash (string) of a graph
	// that was persisted and published.
	EventBlockGraphCompleted = "BlockGraphCompleted"

	graphListener = "graph"
)

// LocalNode is the gossip layer as seen by the graph.
type LocalNode interface {
	GetPeers(ctx context.Context) (*types.PeerSet, error)
	Broadcast(ctx context.Context, peers *types.PeerSet, topic types.TopicType, payload []byte) error
}

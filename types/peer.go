// adapted from github.com/tendermint/tendermint/types/validator.go
package types

import (
	"errors"
	"fmt"
)

// Peer is a cluster member this node can gossip with.
type Peer struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	NodeName    string `json:"node_name"`
	NodeVersion string `json:"node_version"`
	BlockHeight uint64 `json:"block_height"`
}

func NewPeer(id, host string) *Peer {
	return &Peer{
		ID:   id,
		Host: host,
	}
}

// ValidateBasic performs basic validation.
func (p *Peer) ValidateBasic() error {
	if p == nil {
		return errors.New("nil peer")
	}
	if p.ID == "" {
		return errors.New("peer does not have an id")
	}
	return nil
}

// Copy returns a copy of the peer. Panics if the peer is nil.
func (p *Peer) Copy() *Peer {
	pCopy := *p
	return &pCopy
}

func (p *Peer) String() string {
	if p == nil {
		return "nil-Peer"
	}
	return fmt.Sprintf("Peer{%v %v %v}", p.ID, p.Host, p.NodeName)
}

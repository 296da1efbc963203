// adapted from github.com/tendermint/tendermint/types/validator_set.go
package types

import (
	"fmt"
	"sort"
)

// PeerSet is a snapshot of the known cluster members, ordered by id.
//
// NOTE: Not goroutine-safe.
type PeerSet struct {
	Peers []*Peer `json:"peers"`
}

// NewPeerSet copies peers into a new set. Duplicate ids keep the first entry.
func NewPeerSet(peers []*Peer) *PeerSet {
	ps := &PeerSet{Peers: make([]*Peer, 0, len(peers))}
	seen := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		if p == nil {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ps.Peers = append(ps.Peers, p.Copy())
	}
	sort.Slice(ps.Peers, func(i, j int) bool { return ps.Peers[i].ID < ps.Peers[j].ID })
	return ps
}

func (ps *PeerSet) ValidateBasic() error {
	for idx, p := range ps.Peers {
		if err := p.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid peer #%d: %w", idx, err)
		}
	}
	return nil
}

// IsNilOrEmpty returns true if peer set is nil or empty.
func (ps *PeerSet) IsNilOrEmpty() bool {
	return ps == nil || len(ps.Peers) == 0
}

func (ps *PeerSet) Size() int {
	if ps == nil {
		return 0
	}
	return len(ps.Peers)
}

// Copy each peer into a new PeerSet.
func (ps *PeerSet) Copy() *PeerSet {
	return NewPeerSet(ps.Peers)
}

func (ps *PeerSet) HasID(id string) bool {
	_, p := ps.GetByID(id)
	return p != nil
}

// GetByID returns the index of the peer with id and a copy of it, or -1 and
// nil.
func (ps *PeerSet) GetByID(id string) (int, *Peer) {
	if ps == nil {
		return -1, nil
	}
	idx := sort.Search(len(ps.Peers), func(i int) bool { return ps.Peers[i].ID >= id })
	if idx < len(ps.Peers) && ps.Peers[idx].ID == id {
		return idx, ps.Peers[idx].Copy()
	}
	return -1, nil
}

func (ps *PeerSet) IDs() []string {
	ids := make([]string, 0, ps.Size())
	for _, p := range ps.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

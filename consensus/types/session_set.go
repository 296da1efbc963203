package types

import (
	"sort"
	"sync"

	"graphbft/agreement"
)

// SessionSet tracks the agreement sessions of each round, one per block
// hash, together with the block graphs already fed to each session.
type SessionSet struct {
	mtx    sync.Mutex
	rounds map[uint64]map[string]*sessionEntry
}

type sessionEntry struct {
	session agreement.Session
	fed     map[string]struct{} // block graph identifiers
}

func NewSessionSet() *SessionSet {
	return &SessionSet{
		rounds: make(map[uint64]map[string]*sessionEntry),
	}
}

// GetOrCreate returns the session of (round, hash). create is called, under
// the set lock, only when none exists yet; created reports that case.
func (ss *SessionSet) GetOrCreate(round uint64, hash string, create func() agreement.Session) (session agreement.Session, created bool) {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()

	hashes, ok := ss.rounds[round]
	if !ok {
		hashes = make(map[string]*sessionEntry)
		ss.rounds[round] = hashes
	}
	if entry, ok := hashes[hash]; ok {
		return entry.session, false
	}
	entry := &sessionEntry{session: create(), fed: make(map[string]struct{})}
	hashes[hash] = entry
	return entry.session, true
}

// MarkFed records that identifier was fed to the session of (round, hash).
// It returns false when it was fed before or the session does not exist.
func (ss *SessionSet) MarkFed(round uint64, hash, identifier string) bool {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()

	entry, ok := ss.rounds[round][hash]
	if !ok {
		return false
	}
	if _, fed := entry.fed[identifier]; fed {
		return false
	}
	entry.fed[identifier] = struct{}{}
	return true
}

// Prune closes and forgets the sessions of every round below minRound.
func (ss *SessionSet) Prune(minRound uint64) int {
	ss.mtx.Lock()
	var stale []agreement.Session
	for round, hashes := range ss.rounds {
		if round >= minRound {
			continue
		}
		for _, entry := range hashes {
			stale = append(stale, entry.session)
		}
		delete(ss.rounds, round)
	}
	ss.mtx.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}

func (ss *SessionSet) CloseAll() {
	ss.mtx.Lock()
	rounds := ss.rounds
	ss.rounds = make(map[uint64]map[string]*sessionEntry)
	ss.mtx.Unlock()

	for _, hashes := range rounds {
		for _, entry := range hashes {
			entry.session.Close()
		}
	}
}

// Size returns the number of open sessions.
func (ss *SessionSet) Size() int {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()
	n := 0
	for _, hashes := range ss.rounds {
		n += len(hashes)
	}
	return n
}

// Rounds returns the rounds with open sessions in ascending order.
func (ss *SessionSet) Rounds() []uint64 {
	ss.mtx.Lock()
	defer ss.mtx.Unlock()
	rounds := make([]uint64, 0, len(ss.rounds))
	for round := range ss.rounds {
		rounds = append(rounds, round)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })
	return rounds
}

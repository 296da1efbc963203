package types

// CurrentRound maps a chain height (number of committed blocks) to the round
// that produced the last block. An empty chain is in round zero.
func CurrentRound(height uint64) uint64 {
	if height == 0 {
		return 0
	}
	return height - 1
}

// NextRound is the round block graphs must target to be processed: the one
// producing the block at the current height.
func NextRound(height uint64) uint64 {
	return CurrentRound(height) + 1
}

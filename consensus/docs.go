/*
Package consensus turns gossiped block graphs into committed blocks.

	network ──► SubmitProposal ──► pool ──► EventBlockGraphAdded
	                                            │
	                             group by hash, flush by size or interval
	                                            │
	                    own graph: sign, save, publish
	                    other graph: verify, save, publish own copy
	                                            │
	                               EventBlockGraphCompleted
	                                            │
	                         wait until the hash is quiet, then
	                         feed the agreement session of (round, hash)
	                         once 2f+1 distinct nodes proposed it
	                                            │
	                                        delivered
	                                            │
	                     verify, put into delivered, apply to the chain

Only block graphs of the round after the chain tip are processed. Graphs of
finished rounds are pruned from the pool and the store once a block
commits.
*/
package consensus

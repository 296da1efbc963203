package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	// admission
	"submit_block_graph": rpc.NewRPCFunc(SubmitBlockGraph, "graph"),
	"propose_block":      rpc.NewRPCFunc(ProposeBlock, "txs"),

	// mempool
	"broadcast_tx":        rpc.NewRPCFunc(BroadcastTx, "tx"),
	"unconfirmed_txs":     rpc.NewRPCFunc(UnconfirmedTxs, "limit"),
	"num_unconfirmed_txs": rpc.NewRPCFunc(NumUnconfirmedTxs, ""),

	// chain queries
	"height":           rpc.NewRPCFunc(Height, ""),
	"blocks":           rpc.NewRPCFunc(Blocks, "skip,take"),
	"safeguard_blocks": rpc.NewRPCFunc(SafeguardBlocks, ""),
	"block_hash":       rpc.NewRPCFunc(BlockHash, "height"),
	"transaction":      rpc.NewRPCFunc(Transaction, "txn_id"),

	"metrics": rpc.NewRPCFunc(JSONMetrics, "label"),
}

package types

import "errors"

var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrEmptyBlockHash = errors.New("block graph has no block hash")
	ErrEmptyBlockData = errors.New("block graph has no block data")
	ErrBlockHashDiff  = errors.New("block hash does not match its contents")
	ErrTxsHashDiff    = errors.New("txs hash does not match the transactions")
	ErrInvalidTxnID   = errors.New("transaction id must be 32 bytes")
)

package consensus

import "errors"

var (
	ErrGraphNotRunning  = errors.New("graph is not running")
	ErrUnsigned         = errors.New("block graph is not signed")
	ErrInvalidSignature = errors.New("block graph signature is invalid")
	ErrNodeMismatch     = errors.New("block graph node does not match its public key")
	ErrRoundMismatch    = errors.New("block graph round does not match its block")
	ErrHashMismatch     = errors.New("block graph hash does not match its block")
)

package state

import (
	"errors"
	"fmt"
)

var (
	ErrHeightMismatch = errors.New("block height does not follow the chain")
	ErrPrevHashDiff   = errors.New("block does not link to the last block")
	ErrChainIDDiff    = errors.New("block belongs to another chain")
)

type errInvalidBlock struct {
	err error
}

func ErrInvalidBlock(err error) error {
	return errInvalidBlock{err: err}
}

func (e errInvalidBlock) Error() string {
	return fmt.Sprintf("invalid block: %v", e.err)
}

func (e errInvalidBlock) Unwrap() error {
	return e.err
}

package consensus

import (
	"graphbft/signing"
	"graphbft/store"
	"graphbft/types"
)

// VerifyBlockGraph checks that bg is signed by the node it names and that
// its round is the height of the block it carries.
func VerifyBlockGraph(bg *types.BlockGraph) error {
	if err := bg.ValidateBasic(); err != nil {
		return err
	}
	if !bg.IsSigned() {
		return ErrUnsigned
	}
	if !signing.VerifyBlockGraph(bg) {
		return ErrInvalidSignature
	}
	if bg.Block.Node != types.NodeIDFromPubKey(bg.PublicKey) {
		return ErrNodeMismatch
	}
	block, err := types.UnmarshalBlock(bg.Block.Data)
	if err != nil {
		return err
	}
	if err := block.ValidateBasic(); err != nil {
		return err
	}
	if block.Height != bg.Block.Round {
		return ErrRoundMismatch
	}
	if block.HashString() != bg.Block.Hash {
		return ErrHashMismatch
	}
	if !bg.Prev.IsEmpty() && bg.Prev.Round+1 != bg.Block.Round {
		return ErrRoundMismatch
	}
	return nil
}

// blockExists reports whether block was committed or is waiting in the
// delivered store.
func blockExists(uow *store.UnitOfWork, block *types.Block) (bool, error) {
	committed, err := uow.HashChain.ByHeight(block.Height)
	if err != nil {
		return false, err
	}
	if len(committed) > 0 {
		// a committed height never changes, whatever block it holds
		return true, nil
	}
	delivered, err := uow.Delivered.ByHeight(block.Height)
	if err != nil {
		return false, err
	}
	hash := block.HashString()
	for _, b := range delivered {
		if b.HashString() == hash {
			return true, nil
		}
	}
	return false, nil
}

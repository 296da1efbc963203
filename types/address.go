package types

import (
	"encoding/binary"

	"github.com/tendermint/tendermint/crypto/tmhash"
)

// NodeIDFromPubKey derives the numeric node identifier used inside block
// graphs from a signing public key.
func NodeIDFromPubKey(pubKey []byte) uint64 {
	if len(pubKey) == 0 {
		return 0
	}
	h := tmhash.Sum(pubKey)
	return binary.BigEndian.Uint64(h[:8])
}

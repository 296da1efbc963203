package signing

import (
	"github.com/tendermint/tendermint/crypto/ed25519"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"

	"graphbft/types"
)

// Signer signs block graph digests with named keys.
type Signer interface {
	// DefaultSigningKeyName is the key used for the node's own graphs.
	DefaultSigningKeyName() string
	// GetOrUpsertKeyName returns name, generating the key first when the
	// signer does not hold it yet.
	GetOrUpsertKeyName(name string) (string, error)
	Sign(keyName string, hash []byte) ([]byte, error)
	GetPublicKey(keyName string) ([]byte, error)
}

var blsSuite = bn256.NewSuite()

// VerifySignature checks sig over msg. The scheme follows from the public
// key length: ed25519 keys are 32 bytes, everything else is a BLS key on
// bn256 G2.
func VerifySignature(pubKey, msg, sig []byte) bool {
	if len(pubKey) == ed25519.PubKeySize {
		return ed25519.PubKey(pubKey).VerifySignature(msg, sig)
	}
	if len(pubKey) != blsSuite.G2().PointLen() {
		return false
	}
	point := blsSuite.G2().Point()
	if err := point.UnmarshalBinary(pubKey); err != nil {
		return false
	}
	return bls.Verify(blsSuite, point, msg, sig) == nil
}

// SignBlockGraph sets the public key and signature of bg.
func SignBlockGraph(signer Signer, keyName string, bg *types.BlockGraph) error {
	pubKey, err := signer.GetPublicKey(keyName)
	if err != nil {
		return err
	}
	sig, err := signer.Sign(keyName, bg.Hash())
	if err != nil {
		return err
	}
	bg.PublicKey = pubKey
	bg.Signature = sig
	return nil
}

// VerifyBlockGraph checks the signature of bg against its own public key.
func VerifyBlockGraph(bg *types.BlockGraph) bool {
	if !bg.IsSigned() {
		return false
	}
	return VerifySignature(bg.PublicKey, bg.Hash(), bg.Signature)
}

// NodeID returns the node identifier of keyName.
func NodeID(signer Signer, keyName string) (uint64, error) {
	pubKey, err := signer.GetPublicKey(keyName)
	if err != nil {
		return 0, err
	}
	return types.NodeIDFromPubKey(pubKey), nil
}

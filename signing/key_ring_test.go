package signing

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbft/types"
)

func TestKeyRingSignVerify(t *testing.T) {
	for _, keyType := range []string{KeyTypeEd25519, KeyTypeBLS} {
		keyType := keyType
		t.Run(keyType, func(t *testing.T) {
			kr, err := GenKeyRing("", "", keyType)
			require.NoError(t, err)
			assert.Equal(t, DefaultKeyName, kr.DefaultSigningKeyName())

			msg := []byte("block graph digest")
			sig, err := kr.Sign(DefaultKeyName, msg)
			require.NoError(t, err)
			pub, err := kr.GetPublicKey(DefaultKeyName)
			require.NoError(t, err)

			assert.True(t, VerifySignature(pub, msg, sig))
			assert.False(t, VerifySignature(pub, []byte("other"), sig))
			assert.False(t, VerifySignature(pub[:10], msg, sig))
		})
	}
}

func TestKeyRingUnknownKey(t *testing.T) {
	kr := NewKeyRing("", "", "")
	_, err := kr.Sign("missing", []byte("msg"))
	assert.Error(t, err)
	_, err = kr.GetPublicKey("missing")
	assert.Error(t, err)

	name, err := kr.GetOrUpsertKeyName("missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", name)
	pub1, err := kr.GetPublicKey("missing")
	require.NoError(t, err)

	// a second upsert keeps the key
	_, err = kr.GetOrUpsertKeyName("missing")
	require.NoError(t, err)
	pub2, err := kr.GetPublicKey("missing")
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)
}

func TestLoadOrGenKeyRing(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "key_ring.json")

	kr, err := LoadOrGenKeyRing(filePath, "node", KeyTypeBLS)
	require.NoError(t, err)
	pub, err := kr.GetPublicKey("node")
	require.NoError(t, err)
	_, err = kr.GetOrUpsertKeyName("extra")
	require.NoError(t, err)

	loaded, err := LoadOrGenKeyRing(filePath, "ignored", KeyTypeEd25519)
	require.NoError(t, err)
	assert.Equal(t, "node", loaded.DefaultSigningKeyName())
	loadedPub, err := loaded.GetPublicKey("node")
	require.NoError(t, err)
	assert.Equal(t, pub, loadedPub)

	sig, err := loaded.Sign("extra", []byte("msg"))
	require.NoError(t, err)
	extraPub, err := kr.GetPublicKey("extra")
	require.NoError(t, err)
	assert.True(t, VerifySignature(extraPub, []byte("msg"), sig))
}

func TestSignBlockGraph(t *testing.T) {
	kr, err := GenKeyRing("", "", KeyTypeEd25519)
	require.NoError(t, err)
	nodeID, err := NodeID(kr, DefaultKeyName)
	require.NoError(t, err)

	genesisTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	genesis := types.MakeGenesisBlock("signing_test", genesisTime)
	block := types.MakeBlock(genesis, nil, genesisTime.Add(time.Second))
	bg, err := types.NewBlockGraph(block, genesis, nodeID)
	require.NoError(t, err)

	assert.False(t, VerifyBlockGraph(bg))
	require.NoError(t, SignBlockGraph(kr, DefaultKeyName, bg))
	assert.True(t, VerifyBlockGraph(bg))
	assert.Equal(t, nodeID, types.NodeIDFromPubKey(bg.PublicKey))

	tampered := bg.Copy()
	tampered.Block.Round++
	assert.False(t, VerifyBlockGraph(tampered))
}

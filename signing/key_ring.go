package signing

import (
	"fmt"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/ed25519"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

const (
	KeyTypeEd25519 = "ed25519"
	KeyTypeBLS     = "bls"

	DefaultKeyName = "graph"
)

var ErrKeyNotFound = errors.New("signing key not found")

// KeyPair is one named key as persisted in the key ring file.
type KeyPair struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	PubKey  []byte `json:"pub_key"`
	PrivKey []byte `json:"priv_key"`
}

func genKeyPair(name, keyType string) (KeyPair, error) {
	switch keyType {
	case KeyTypeEd25519:
		priv := ed25519.GenPrivKey()
		return KeyPair{Name: name, Type: keyType, PubKey: priv.PubKey().Bytes(), PrivKey: priv.Bytes()}, nil
	case KeyTypeBLS:
		priv, pub := bls.NewKeyPair(blsSuite, random.New())
		privBz, err := priv.MarshalBinary()
		if err != nil {
			return KeyPair{}, err
		}
		pubBz, err := pub.MarshalBinary()
		if err != nil {
			return KeyPair{}, err
		}
		return KeyPair{Name: name, Type: keyType, PubKey: pubBz, PrivKey: privBz}, nil
	default:
		return KeyPair{}, fmt.Errorf("unknown key type %q", keyType)
	}
}

func (kp KeyPair) sign(msg []byte) ([]byte, error) {
	switch kp.Type {
	case KeyTypeEd25519:
		return ed25519.PrivKey(kp.PrivKey).Sign(msg)
	case KeyTypeBLS:
		priv := blsSuite.G2().Scalar()
		if err := priv.UnmarshalBinary(kp.PrivKey); err != nil {
			return nil, errors.Wrap(err, "corrupted bls key")
		}
		return bls.Sign(blsSuite, priv, msg)
	default:
		return nil, fmt.Errorf("unknown key type %q", kp.Type)
	}
}

// keyRingFile is the persisted form of a KeyRing.
type keyRingFile struct {
	DefaultName string    `json:"default_name"`
	KeyType     string    `json:"key_type"`
	Keys        []KeyPair `json:"keys"`
}

// KeyRing is a Signer whose keys are persisted as JSON in a single file.
// A key ring without a file path lives in memory only.
type KeyRing struct {
	mtx sync.RWMutex
	keyRingFile

	filePath string
}

var _ Signer = (*KeyRing)(nil)

// NewKeyRing returns an empty key ring generating keyType keys.
func NewKeyRing(filePath, defaultName, keyType string) *KeyRing {
	if defaultName == "" {
		defaultName = DefaultKeyName
	}
	if keyType == "" {
		keyType = KeyTypeEd25519
	}
	return &KeyRing{
		keyRingFile: keyRingFile{DefaultName: defaultName, KeyType: keyType},
		filePath:    filePath,
	}
}

// GenKeyRing returns a key ring holding a fresh default key. It is not saved.
func GenKeyRing(filePath, defaultName, keyType string) (*KeyRing, error) {
	kr := NewKeyRing(filePath, defaultName, keyType)
	if _, err := kr.GetOrUpsertKeyName(kr.DefaultName); err != nil {
		return nil, err
	}
	return kr, nil
}

func LoadKeyRing(filePath string) (*KeyRing, error) {
	bz, err := ioutil.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key ring")
	}
	krFile := keyRingFile{}
	if err := tmjson.Unmarshal(bz, &krFile); err != nil {
		return nil, errors.Wrapf(err, "error reading key ring from %v", filePath)
	}
	return &KeyRing{keyRingFile: krFile, filePath: filePath}, nil
}

// LoadOrGenKeyRing loads the key ring at filePath or else generates one with
// a default key and saves it there.
func LoadOrGenKeyRing(filePath, defaultName, keyType string) (*KeyRing, error) {
	if tmos.FileExists(filePath) {
		return LoadKeyRing(filePath)
	}
	kr, err := GenKeyRing(filePath, defaultName, keyType)
	if err != nil {
		return nil, err
	}
	return kr, kr.Save()
}

func (kr *KeyRing) DefaultSigningKeyName() string {
	return kr.DefaultName
}

func (kr *KeyRing) GetOrUpsertKeyName(name string) (string, error) {
	kr.mtx.Lock()
	defer kr.mtx.Unlock()

	if _, ok := kr.find(name); ok {
		return name, nil
	}
	kp, err := genKeyPair(name, kr.KeyType)
	if err != nil {
		return "", err
	}
	kr.Keys = append(kr.Keys, kp)
	if err := kr.saveLocked(); err != nil {
		return "", err
	}
	return name, nil
}

func (kr *KeyRing) Sign(keyName string, hash []byte) ([]byte, error) {
	kr.mtx.RLock()
	kp, ok := kr.find(keyName)
	kr.mtx.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrKeyNotFound, keyName)
	}
	sig, err := kp.sign(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "error signing with %s", keyName)
	}
	return sig, nil
}

func (kr *KeyRing) GetPublicKey(keyName string) ([]byte, error) {
	kr.mtx.RLock()
	defer kr.mtx.RUnlock()
	kp, ok := kr.find(keyName)
	if !ok {
		return nil, errors.Wrap(ErrKeyNotFound, keyName)
	}
	return kp.PubKey, nil
}

// Save persists the key ring to its file path.
func (kr *KeyRing) Save() error {
	kr.mtx.RLock()
	defer kr.mtx.RUnlock()
	return kr.saveLocked()
}

func (kr *KeyRing) saveLocked() error {
	if kr.filePath == "" {
		return nil
	}
	jsonBytes, err := tmjson.MarshalIndent(kr.keyRingFile, "", "  ")
	if err != nil {
		return err
	}
	return tempfile.WriteFileAtomic(kr.filePath, jsonBytes, 0600)
}

func (kr *KeyRing) find(name string) (KeyPair, bool) {
	for _, kp := range kr.Keys {
		if kp.Name == name {
			return kp, true
		}
	}
	return KeyPair{}, false
}

func (kr *KeyRing) String() string {
	return fmt.Sprintf("KeyRing{%v %v keys:%d}", kr.DefaultName, kr.KeyType, len(kr.Keys))
}

package store

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v4"
)

var errUncompressedValue = errors.New("could not uncompress data")

// valueCodec encodes entities with msgpack and optionally compresses them
// with snappy.
type valueCodec struct {
	compress bool
}

func (c valueCodec) encode(entity interface{}) ([]byte, error) {
	val, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not encode entity: %w", err)
	}
	if !c.compress {
		return val, nil
	}
	return snappy.Encode(nil, val), nil
}

func (c valueCodec) decode(val []byte, entity interface{}) error {
	if c.compress {
		uncompressed, err := snappy.Decode(nil, val)
		if err != nil {
			return fmt.Errorf("%s: %w", err, errUncompressedValue)
		}
		val = uncompressed
	}
	if err := msgpack.Unmarshal(val, entity); err != nil {
		return fmt.Errorf("could not decode entity: %w", err)
	}
	return nil
}

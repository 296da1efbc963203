package types

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
)

// Encode serializes v with msgpack. Every value that crosses the wire or is
// carried as an opaque payload inside a block graph goes through here.
func Encode(v interface{}) ([]byte, error) {
	bz, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", v, err)
	}
	return bz, nil
}

// Decode is the inverse of Encode.
func Decode(bz []byte, v interface{}) error {
	if len(bz) == 0 {
		return ErrEmptyPayload
	}
	if err := msgpack.Unmarshal(bz, v); err != nil {
		return fmt.Errorf("could not decode %T: %w", v, err)
	}
	return nil
}

package codec

import (
	"encoding/hex"
	"errors"
)

// KeyBytes is the fixed width of a Key in bytes. The wire form is always
// 2*KeyBytes lowercase hex characters.
const KeyBytes = 32

// ErrBadKey is returned when a wire key is the wrong length or contains a
// non-hex character.
var ErrBadKey = errors.New("codec: malformed key")

// Key is the fixed-width binary identifier records are stored under.
type Key [KeyBytes]byte

// ParseKey validates and decodes a hex-encoded key: the string must be
// 2*KeyBytes characters and every character must be a hex digit. Either
// condition failing is ErrBadKey.
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != 2*KeyBytes {
		return k, ErrBadKey
	}
	n, err := hex.Decode(k[:], []byte(s))
	if err != nil || n != KeyBytes {
		return k, ErrBadKey
	}
	return k, nil
}

// String renders the key as lowercase hex, for logging and responses.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Package codec implements the wire/stored record conversions and the
// on-disk envelope format: bidirectional mapping between a WireRecord
// (JSON, text-encoded signature) and a StoredRecord (decoded signature
// bytes), plus a deterministic binary envelope used to persist a
// StoredRecord in the durable store.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// ErrBadSignatureEncoding is returned when a wire signature string does not
// decode under the record's configured text encoding.
var ErrBadSignatureEncoding = errors.New("codec: malformed signature encoding")

// SignatureEncoding selects the printable text encoding used for the
// signature field on the wire. The same encoding is used in both
// directions for a given deployment profile.
type SignatureEncoding int

const (
	// Base64 decodes/encodes the signature with standard base64.
	Base64 SignatureEncoding = iota
	// Hex decodes/encodes the signature with lowercase hexadecimal.
	Hex
)

// Decode converts the wire text form to raw signature bytes.
func (e SignatureEncoding) Decode(s string) ([]byte, error) {
	switch e {
	case Base64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, ErrBadSignatureEncoding
		}
		return b, nil
	case Hex:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, ErrBadSignatureEncoding
		}
		return b, nil
	default:
		return nil, ErrBadSignatureEncoding
	}
}

// Encode converts raw signature bytes to their wire text form. It is total
// on any input.
func (e SignatureEncoding) Encode(b []byte) string {
	switch e {
	case Base64:
		return base64.StdEncoding.EncodeToString(b)
	case Hex:
		return hex.EncodeToString(b)
	default:
		return hex.EncodeToString(b)
	}
}

// WireRecord is the JSON shape exchanged with clients: an application
// payload and a text-encoded signature.
type WireRecord[P any] struct {
	Value     P      `json:"value"`
	Signature string `json:"signature"`
}

// StoredRecord is the decoded form persisted to the durable store and
// cached in the wait cache.
type StoredRecord[P any] struct {
	Value     P
	Signature []byte
}

// Profile bundles the signature encoding and payload envelope for one
// deployment shape. The two concrete profiles below are the two shapes
// the source system ships; a deployment picks exactly one at bootstrap.
type Profile[P any] struct {
	// Name identifies the profile in configuration and logs.
	Name string
	// Sig is the text encoding applied to the signature field on the wire.
	Sig SignatureEncoding
	// Env is the binary envelope used to persist a StoredRecord.
	Env Envelope[P]
}

// DecodeWire implements the wire->stored conversion: decode the signature
// under the profile's text encoding, pass the payload through unchanged.
func (p Profile[P]) DecodeWire(w WireRecord[P]) (StoredRecord[P], error) {
	sig, err := p.Sig.Decode(w.Signature)
	if err != nil {
		return StoredRecord[P]{}, err
	}
	return StoredRecord[P]{Value: w.Value, Signature: sig}, nil
}

// EncodeWire implements the stored->wire conversion. It is total.
func (p Profile[P]) EncodeWire(s StoredRecord[P]) WireRecord[P] {
	return WireRecord[P]{Value: s.Value, Signature: p.Sig.Encode(s.Signature)}
}

// BoolProfile is the "require" shape from original_source/src/routes.rs:
// a boolean payload, base64-encoded signature.
var BoolProfile = Profile[bool]{
	Name: "bool-base64",
	Sig:  Base64,
	Env: Envelope[bool]{
		EncodePayload: func(v bool) []byte {
			if v {
				return []byte{1}
			}
			return []byte{0}
		},
		DecodePayload: func(b []byte) (bool, error) {
			if len(b) != 1 {
				return false, ErrBadEnvelope
			}
			return b[0] != 0, nil
		},
	},
}

// Uint64Profile is the decryption-value shape: an unsigned 64-bit payload,
// hex-encoded signature.
var Uint64Profile = Profile[uint64]{
	Name: "uint64-hex",
	Sig:  Hex,
	Env: Envelope[uint64]{
		EncodePayload: func(v uint64) []byte {
			var b [8]byte
			putUint64(b[:], v)
			return b[:]
		},
		DecodePayload: func(b []byte) (uint64, error) {
			if len(b) != 8 {
				return 0, ErrBadEnvelope
			}
			return getUint64(b), nil
		},
	},
}

package codec

import (
	"encoding/binary"
	"errors"
)

// ErrBadEnvelope is returned when a persisted record cannot be decoded:
// truncated data, a bad version tag, or a payload of the wrong width for
// the active profile.
var ErrBadEnvelope = errors.New("codec: malformed envelope")

// envelopeVersion tags the binary layout so a future format change can be
// detected instead of silently misparsed.
const envelopeVersion = 1

// Envelope persists a StoredRecord[P] as an opaque, self-describing byte
// string: a version tag, a varint-length-prefixed signature, then the
// fixed-width payload encoding. The length prefix makes the signature
// boundary unambiguous regardless of payload width, so decode is total on
// anything encode produced and injective across distinct (payload,
// signature) pairs.
type Envelope[P any] struct {
	EncodePayload func(P) []byte
	DecodePayload func([]byte) (P, error)
}

// Encode implements the envelope codec's encode half. It is deterministic:
// equal StoredRecords always produce identical bytes.
func (e Envelope[P]) Encode(r StoredRecord[P]) []byte {
	payload := e.EncodePayload(r.Value)

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(r.Signature)))

	buf := make([]byte, 0, 1+n+len(r.Signature)+len(payload))
	buf = append(buf, envelopeVersion)
	buf = append(buf, lenBuf[:n]...)
	buf = append(buf, r.Signature...)
	buf = append(buf, payload...)
	return buf
}

// Decode implements the envelope codec's decode half. decode(encode(r)) ==
// r for every r produced by Encode.
func (e Envelope[P]) Decode(b []byte) (StoredRecord[P], error) {
	var zero StoredRecord[P]
	if len(b) < 1 || b[0] != envelopeVersion {
		return zero, ErrBadEnvelope
	}
	b = b[1:]

	sigLen, n := binary.Uvarint(b)
	if n <= 0 {
		return zero, ErrBadEnvelope
	}
	b = b[n:]

	if uint64(len(b)) < sigLen {
		return zero, ErrBadEnvelope
	}
	sig := append([]byte(nil), b[:sigLen]...)
	b = b[sigLen:]

	payload, err := e.DecodePayload(b)
	if err != nil {
		return zero, err
	}
	return StoredRecord[P]{Value: payload, Signature: sig}, nil
}

func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func getUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

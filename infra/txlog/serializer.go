package txlog

import "errors"

// Serializer defines how a Record body is serialized/deserialized.
// Framing (length prefix + CRC) is owned by the log itself, so a
// serializer only deals with the record body.
type Serializer interface {
	Encode(rec *Record) ([]byte, error)
	Decode(data []byte) (*Record, error)
}

var ErrCorruptRecord = errors.New("txlog: corrupted record")

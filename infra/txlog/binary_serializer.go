package txlog

import "encoding/binary"

// BinarySerializer is a fixed-layout fallback codec:
// [seq:8][time:8][data...], little-endian.
type BinarySerializer struct{}

func (BinarySerializer) Encode(rec *Record) ([]byte, error) {
	buf := make([]byte, 16+len(rec.Data))
	binary.LittleEndian.PutUint64(buf[0:8], rec.Seq)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(rec.Time))
	copy(buf[16:], rec.Data)
	return buf, nil
}

func (BinarySerializer) Decode(data []byte) (*Record, error) {
	if len(data) < 16 {
		return nil, ErrCorruptRecord
	}
	return &Record{
		Seq:  binary.LittleEndian.Uint64(data[0:8]),
		Time: int64(binary.LittleEndian.Uint64(data[8:16])),
		Data: append([]byte(nil), data[16:]...),
	}, nil
}

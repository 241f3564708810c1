package ledger

import (
	"encoding/binary"
	"fmt"
)

// Balance values are stored as 8-byte big-endian two's-complement
// int64. The layout is engine-internal; only round-trip fidelity is
// part of the contract.

func encodeBalance(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeBalance(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("ledger: invalid balance record length %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

package txlog

import "time"

// Record is one immutable entry in the intent log. Data carries the
// operation text exactly as the ledger engine formatted it.
type Record struct {
	Seq  uint64
	Time int64
	Data []byte
}

func newRecord(seq uint64, data []byte) *Record {
	return &Record{
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

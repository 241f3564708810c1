package sequence

import "sync/atomic"

// Sequencer issues strictly monotonic sequence IDs. The intent log
// owns one and restores it from the highest sequence found on disk,
// so IDs stay monotonic across process restarts.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer. The first Next after New(start) returns
// start+1; an empty log starts from New(0).
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset positions the sequencer at the last durable sequence. Called
// once per open, after the segment scan; never during normal appends.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}

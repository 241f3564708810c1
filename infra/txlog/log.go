package txlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tally/infra/sequence"
)

// Log is the durable append-only intent log. Records are framed as
//
//	[len:4][crc:4][body]
//
// where the CRC covers the body and the body layout is owned by the
// configured Serializer. Appends are serialized across all accounts;
// the log is the single shared append point of the system.
//
// Records are never rewritten or removed. Failed ledger operations
// keep their intent record — that asymmetry is the audit contract.
type Log struct {
	mu      sync.Mutex
	dir     string
	segSize int64
	ser     Serializer
	current *segment
	segIdx  int
	seq     *sequence.Sequencer
	index   []recordPos
}

type recordPos struct {
	seg int
	off int64
	len int64 // full frame length including header
}

type Config struct {
	Dir         string
	SegmentSize int64
	Serializer  Serializer
}

const (
	frameHeaderSize    = 8
	defaultSegmentSize = 4 * 1024 * 1024
)

// Open loads every existing segment, rebuilds the record index and
// positions the log for appending. A CRC mismatch anywhere in the
// existing segments fails the open: a ledger must not start on top of
// a log it cannot fully read back.
func Open(cfg Config) (*Log, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = defaultSegmentSize
	}
	if cfg.Serializer == nil {
		cfg.Serializer = ProtoSerializer{}
	}

	l := &Log{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		ser:     cfg.Serializer,
		seq:     sequence.New(0),
	}

	lastSeq, lastSeg, err := l.scan()
	if err != nil {
		return nil, err
	}
	l.seq.Reset(lastSeq)
	l.segIdx = lastSeg

	seg, err := openSegment(l.dir, l.segIdx)
	if err != nil {
		return nil, err
	}
	l.current = seg
	return l, nil
}

// scan walks all segments in order and rebuilds the in-memory index.
func (l *Log) scan() (lastSeq uint64, lastSeg int, err error) {
	paths, err := filepath.Glob(filepath.Join(l.dir, "segment-*.log"))
	if err != nil {
		return 0, 0, err
	}
	sort.Strings(paths)

	for _, path := range paths {
		var idx int
		if _, err := fmt.Sscanf(filepath.Base(path), "segment-%06d.log", &idx); err != nil {
			continue
		}
		lastSeg = idx

		lastSeq, err = l.scanSegment(path, idx, lastSeq)
		if err != nil {
			return 0, 0, err
		}
	}
	return lastSeq, lastSeg, nil
}

func (l *Log) scanSegment(path string, segIdx int, prevSeq uint64) (lastSeq uint64, err error) {
	lastSeq = prevSeq
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var off int64
	header := make([]byte, frameHeaderSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF {
				return lastSeq, nil
			}
			return lastSeq, fmt.Errorf("txlog: %s: truncated frame header: %w", path, err)
		}
		bodyLen := binary.BigEndian.Uint32(header[0:4])
		wantCRC := binary.BigEndian.Uint32(header[4:8])

		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(f, body); err != nil {
			return lastSeq, fmt.Errorf("txlog: %s: truncated frame body: %w", path, err)
		}
		if !CRC32Valid(body, wantCRC) {
			return lastSeq, fmt.Errorf("txlog: %s: offset %d: %w", path, off, ErrCorruptRecord)
		}

		rec, err := l.ser.Decode(body)
		if err != nil {
			return lastSeq, fmt.Errorf("txlog: %s: offset %d: %w", path, off, err)
		}
		if rec.Seq <= lastSeq && lastSeq != 0 {
			return lastSeq, fmt.Errorf("txlog: %s: non-monotonic seq %d", path, rec.Seq)
		}
		lastSeq = rec.Seq

		frameLen := int64(frameHeaderSize) + int64(bodyLen)
		l.index = append(l.index, recordPos{seg: segIdx, off: off, len: frameLen})
		off += frameLen
	}
}

// Append durably writes one record and returns its sequence number.
// The write is fsynced before returning: a ledger mutation must never
// run ahead of its intent record.
func (l *Log) Append(payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.seq.Next()
	rec := newRecord(seq, payload)

	body, err := l.ser.Encode(rec)
	if err != nil {
		return 0, err
	}

	frame := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], CRC32(body))
	copy(frame[frameHeaderSize:], body)

	off := l.current.offset
	if err := l.current.append(frame); err != nil {
		return 0, err
	}
	if err := l.current.sync(); err != nil {
		return 0, err
	}

	l.index = append(l.index, recordPos{seg: l.segIdx, off: off, len: int64(len(frame))})

	if l.current.offset >= l.segSize {
		if err := l.rotate(); err != nil {
			return 0, err
		}
	}
	return seq, nil
}

func (l *Log) rotate() error {
	_ = l.current.close()
	l.segIdx++

	seg, err := openSegment(l.dir, l.segIdx)
	if err != nil {
		return err
	}
	l.current = seg
	return nil
}

// Length returns the number of records ever appended.
func (l *Log) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.index))
}

// Slice returns the record payloads in [start, finish). Out-of-range
// bounds are clamped; an inverted range yields an empty result.
func (l *Log) Slice(start, finish uint64) ([][]byte, error) {
	l.mu.Lock()
	count := uint64(len(l.index))
	if finish > count {
		finish = count
	}
	if start >= finish {
		l.mu.Unlock()
		return nil, nil
	}
	positions := make([]recordPos, finish-start)
	copy(positions, l.index[start:finish])
	l.mu.Unlock()

	out := make([][]byte, 0, len(positions))
	files := make(map[int]*os.File)
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, pos := range positions {
		f, ok := files[pos.seg]
		if !ok {
			var err error
			f, err = os.Open(segmentPath(l.dir, pos.seg))
			if err != nil {
				return nil, err
			}
			files[pos.seg] = f
		}

		frame := make([]byte, pos.len)
		if _, err := f.ReadAt(frame, pos.off); err != nil {
			return nil, err
		}

		body := frame[frameHeaderSize:]
		wantCRC := binary.BigEndian.Uint32(frame[4:8])
		if !CRC32Valid(body, wantCRC) {
			return nil, ErrCorruptRecord
		}

		rec, err := l.ser.Decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Data)
	}
	return out, nil
}

// Close releases the active segment. The log stays readable on disk.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.close()
}

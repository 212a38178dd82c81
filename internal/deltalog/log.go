package deltalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sift/internal/model"
)

// Op is a chunk-level mutation kind.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Entry is one append-only record. Once written it is never modified.
type Entry struct {
	Seq   uint64      `json:"seq"`
	Op    Op          `json:"op"`
	Chunk model.Chunk `json:"chunk"`
}

const (
	segmentPrefix     = "segment-"
	segmentSuffix     = ".log"
	defaultSegmentMax = 4 << 20
)

// Log is a durable, append-only, sequence-numbered record of chunk
// mutations, written before the corresponding index mutation is applied.
// Appends are serialized through a single appender so sequence numbers are
// strictly increasing. Storage is rotating segments of length-prefixed JSON
// records plus one watermark record per consuming index.
type Log struct {
	dir        string
	segmentMax int64

	mu      sync.Mutex
	nextSeq uint64
	active  *os.File
	size    int64

	marks *watermarks
}

type Options struct {
	// SegmentMaxBytes rotates the active segment past this size. <= 0 uses 4MB.
	SegmentMaxBytes int64
}

func Open(dir string, opts Options) (*Log, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	segmentMax := opts.SegmentMaxBytes
	if segmentMax <= 0 {
		segmentMax = defaultSegmentMax
	}

	l := &Log{dir: dir, segmentMax: segmentMax, nextSeq: 1}

	segs, err := l.segments()
	if err != nil {
		return nil, err
	}
	if len(segs) > 0 {
		last := segs[len(segs)-1]
		entries, valid, err := readSegment(filepath.Join(dir, last.name))
		if err != nil {
			return nil, err
		}
		// A crash can leave a torn record at the tail; drop it.
		if err := os.Truncate(filepath.Join(dir, last.name), valid); err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			l.nextSeq = entries[len(entries)-1].Seq + 1
		} else {
			l.nextSeq = last.firstSeq
		}
		f, err := os.OpenFile(filepath.Join(dir, last.name), os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		l.active = f
		l.size = valid
	}

	marks, err := openWatermarks(filepath.Join(dir, "watermarks.db"))
	if err != nil {
		if l.active != nil {
			_ = l.active.Close()
		}
		return nil, err
	}
	l.marks = marks
	return l, nil
}

func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		_ = l.active.Close()
		l.active = nil
	}
	if l.marks != nil {
		return l.marks.close()
	}
	return nil
}

// Append writes one entry and syncs it before returning its sequence
// number. Callers apply the mutation to the indexes only after Append
// succeeds (log-before-apply).
func (l *Log) Append(op Op, chunk model.Chunk) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureActive(); err != nil {
		return 0, err
	}

	e := Entry{Seq: l.nextSeq, Op: op, Chunk: chunk}
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := l.active.Write(lenBuf[:]); err != nil {
		return 0, err
	}
	if _, err := l.active.Write(payload); err != nil {
		return 0, err
	}
	if err := l.active.Sync(); err != nil {
		return 0, err
	}

	l.size += int64(4 + len(payload))
	l.nextSeq++

	if l.size >= l.segmentMax {
		_ = l.active.Close()
		l.active = nil
		l.size = 0
	}
	return e.Seq, nil
}

// NextSeq returns the sequence number the next append will get.
func (l *Log) NextSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}

// Replay streams every entry with seq > afterSeq in order. Consumers track
// their own watermark, so replay of already-applied entries is harmless.
func (l *Log) Replay(afterSeq uint64, fn func(Entry) error) error {
	segs, err := l.segments()
	if err != nil {
		return err
	}
	for _, seg := range segs {
		entries, _, err := readSegment(filepath.Join(l.dir, seg.name))
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Seq <= afterSeq {
				continue
			}
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Watermark returns the last-applied sequence for a consumer (0 if none).
func (l *Log) Watermark(consumer string) (uint64, error) {
	return l.marks.get(consumer)
}

// SetWatermark records a consumer's last-applied sequence. It never moves
// backwards.
func (l *Log) SetWatermark(consumer string, seq uint64) error {
	return l.marks.set(consumer, seq)
}

// RegisterConsumer ensures a consumer has a watermark record (0 when it
// has not applied anything yet), so MinWatermark accounts for it before
// its first successful write. Compaction would otherwise discard segments
// a consumer that never got to apply still needs.
func (l *Log) RegisterConsumer(consumer string) error {
	return l.marks.set(consumer, 0)
}

// MinWatermark is the lowest watermark across all consumers; entries at or
// below it are safe to discard.
func (l *Log) MinWatermark() (uint64, error) {
	return l.marks.min()
}

// Compact deletes full segments whose entries are all at or below the
// minimum watermark. The active segment is never deleted.
func (l *Log) Compact() (int, error) {
	min, err := l.MinWatermark()
	if err != nil {
		return 0, err
	}
	if min == 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	segs, err := l.segments()
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := 0; i < len(segs)-1; i++ {
		// Segment i ends just before segment i+1 begins.
		lastSeq := segs[i+1].firstSeq - 1
		if lastSeq > min {
			break
		}
		if err := os.Remove(filepath.Join(l.dir, segs[i].name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (l *Log) ensureActive() error {
	if l.active != nil {
		return nil
	}
	name := fmt.Sprintf("%s%012d%s", segmentPrefix, l.nextSeq, segmentSuffix)
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.active = f
	l.size = 0
	return nil
}

type segmentInfo struct {
	name     string
	firstSeq uint64
}

func (l *Log) segments() ([]segmentInfo, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	var segs []segmentInfo
	for _, de := range entries {
		name := de.Name()
		if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		numPart := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
		var first uint64
		if _, err := fmt.Sscanf(numPart, "%d", &first); err != nil {
			continue
		}
		segs = append(segs, segmentInfo{name: name, firstSeq: first})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].firstSeq < segs[j].firstSeq })
	return segs, nil
}

// readSegment parses one segment, returning its entries and the byte
// offset of the last complete record.
func readSegment(path string) ([]Entry, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var entries []Entry
	var valid int64
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			break
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		var e Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			break
		}
		entries = append(entries, e)
		valid += int64(4 + n)
	}
	return entries, valid, nil
}

// Package journal implements the Append Journal (C14): a length-prefixed
// binary record log for audit — API keys, assets, trades, advisor
// receipts, regimes, recommendations, signals, and snapshots. Records are
// only ever written at the end of the file (Open cuts off a torn trailing
// record left by a crash); writes are serialised through a single writer so
// append order matches the calling goroutine's observed order.
package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kinggekko/core/internal/domain"
)

// recordHeaderLen is the on-disk size of a record header: a u32 length
// (payload bytes only) followed by a u8 tag.
const recordHeaderLen = 5

// currentSchemaVersion is stamped on every record this writer produces.
const currentSchemaVersion = 1

// appendQueueCapacity bounds the buffered channel the single writer
// goroutine drains; callers block once it fills, applying natural
// backpressure rather than an unbounded queue.
const appendQueueCapacity = 256

type appendRequest struct {
	tag    domain.JournalTag
	entity interface{}
	result chan<- appendResult
}

type appendResult struct {
	rec domain.JournalRecord
	err error
}

// Journal is a single-writer, append-only binary log. Append requests are
// queued on a buffered channel and drained by one dedicated writer
// goroutine (per spec.md §5's "synchronous single-writer journal
// goroutine fed by a buffered channel"), so append order matches the
// order callers' requests were queued in. mu additionally guards the
// file handle's seek position against concurrent Scan/Stats reads.
type Journal struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	nextID  map[domain.JournalTag]uint64
	log     zerolog.Logger
	appends chan appendRequest
	stopped chan struct{}
}

// Open opens (creating if absent) the journal file at path and replays it
// once to seed per-tag id counters. A trailing partial record (a crash
// mid-write) is tolerated: replay stops at the last fully-readable
// record and the file is truncated to that point so future appends don't
// leave a corrupt tail.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	validLen, ids, err := scanForRecovery(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: recovery scan: %w", err)
	}
	if err := f.Truncate(validLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: truncate to last valid record: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: seek to end: %w", err)
	}

	j := &Journal{
		path:    path,
		file:    f,
		nextID:  ids,
		log:     log.With().Str("component", "journal").Logger(),
		appends: make(chan appendRequest, appendQueueCapacity),
		stopped: make(chan struct{}),
	}
	go j.writeLoop()
	return j, nil
}

// writeLoop is the journal's single writer goroutine: it drains appends
// in the order they were queued and performs the actual file I/O, so no
// two Append calls ever interleave their header+payload writes.
func (j *Journal) writeLoop() {
	defer close(j.stopped)
	for req := range j.appends {
		rec, err := j.writeRecord(req.tag, req.entity)
		req.result <- appendResult{rec: rec, err: err}
	}
}

// Close stops accepting new appends, waits for the writer goroutine to
// drain its queue, and closes the underlying file.
func (j *Journal) Close() error {
	close(j.appends)
	<-j.stopped
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Append queues one record for tag carrying entity, msgpack-encoded, and
// blocks until the writer goroutine has durably written it. Id is
// assigned monotonically per tag.
func (j *Journal) Append(tag domain.JournalTag, entity interface{}) (domain.JournalRecord, error) {
	result := make(chan appendResult, 1)
	j.appends <- appendRequest{tag: tag, entity: entity, result: result}
	res := <-result
	return res.rec, res.err
}

func (j *Journal) writeRecord(tag domain.JournalTag, entity interface{}) (domain.JournalRecord, error) {
	payload, err := msgpack.Marshal(entity)
	if err != nil {
		return domain.JournalRecord{}, fmt.Errorf("journal: marshal payload: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextID[tag] + 1

	rec := domain.JournalRecord{
		ID:            id,
		Tag:           tag,
		SchemaVersion: currentSchemaVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}
	recBytes, err := msgpack.Marshal(rec)
	if err != nil {
		return domain.JournalRecord{}, fmt.Errorf("journal: marshal record: %w", err)
	}

	header := make([]byte, recordHeaderLen)
	binary.BigEndian.PutUint32(header[:4], uint32(len(recBytes)))
	header[4] = byte(tag)

	if _, err := j.file.Write(header); err != nil {
		return domain.JournalRecord{}, fmt.Errorf("journal: write header: %w", err)
	}
	if _, err := j.file.Write(recBytes); err != nil {
		return domain.JournalRecord{}, fmt.Errorf("journal: write payload: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return domain.JournalRecord{}, fmt.Errorf("journal: sync: %w", err)
	}

	j.nextID[tag] = id
	return rec, nil
}

// Scan iterates every record whose tag matches filter (all tags when
// filter is nil), in append order.
func (j *Journal) Scan(filter func(domain.JournalTag) bool) ([]domain.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("journal: seek to start: %w", err)
	}
	defer j.file.Seek(0, io.SeekEnd)

	var records []domain.JournalRecord
	r := bufio.NewReader(j.file)
	for {
		rec, ok, err := readRecord(r)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if filter == nil || filter(rec.Tag) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Stats returns per-tag counts and id bounds across the whole journal.
func (j *Journal) Stats() (map[domain.JournalTag]domain.JournalStats, error) {
	records, err := j.Scan(nil)
	if err != nil {
		return nil, err
	}

	stats := make(map[domain.JournalTag]domain.JournalStats)
	for _, rec := range records {
		s := stats[rec.Tag]
		s.Tag = rec.Tag
		s.Count++
		if s.FirstID == 0 || rec.ID < s.FirstID {
			s.FirstID = rec.ID
		}
		if rec.ID > s.LastID {
			s.LastID = rec.ID
		}
		s.Bytes += uint64(len(rec.Payload))
		stats[rec.Tag] = s
	}
	return stats, nil
}

// readRecord reads one {length, tag, payload} frame. ok is false (with a
// nil error) at a clean EOF or at a truncated trailing record.
func readRecord(r *bufio.Reader) (domain.JournalRecord, bool, error) {
	header := make([]byte, recordHeaderLen)
	n, err := io.ReadFull(r, header)
	if err == io.EOF {
		return domain.JournalRecord{}, false, nil
	}
	if err != nil || n < recordHeaderLen {
		return domain.JournalRecord{}, false, nil
	}

	length := binary.BigEndian.Uint32(header[:4])
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return domain.JournalRecord{}, false, nil
	}

	var rec domain.JournalRecord
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return domain.JournalRecord{}, false, nil
	}
	return rec, true, nil
}

// scanForRecovery reads every well-formed record from the start of the
// file without mutating the file's current offset, returning the byte
// offset just past the last fully-readable record (the point to
// truncate a torn trailing write to) and the highest id seen per tag.
func scanForRecovery(f *os.File) (int64, map[domain.JournalTag]uint64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, nil, err
	}

	ids := make(map[domain.JournalTag]uint64)
	var offset int64
	r := bufio.NewReader(f)
	for {
		header := make([]byte, recordHeaderLen)
		n, err := io.ReadFull(r, header)
		if err == io.EOF || n < recordHeaderLen {
			break
		}
		if err != nil {
			break
		}

		length := binary.BigEndian.Uint32(header[:4])
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			break
		}

		var rec domain.JournalRecord
		if err := msgpack.Unmarshal(body, &rec); err != nil {
			break
		}

		offset += int64(recordHeaderLen) + int64(length)
		if rec.ID > ids[rec.Tag] {
			ids[rec.Tag] = rec.ID
		}
	}

	return offset, ids, nil
}

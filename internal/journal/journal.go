package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region entry
// Entry is one journal line: a sequenced envelope around a single record
// version. Record holds the original bytes as appended, so audit trails
// return exactly what was written.
type Entry struct {
	Seq    int64           `json:"seq"`
	Kind   record.Kind     `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// Pending is a record staged for an AppendBatch call.
type Pending struct {
	Kind   record.Kind
	Record any
}
// #endregion entry

// #region append-error
// AppendError reports a failed durable append. It is a hard failure: the
// caller must not apply the corresponding in-memory update.
type AppendError struct {
	Path string
	Err  error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("journal append to %s: %v", e.Path, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }
// #endregion append-error

// #region journal
// Journal is an append-only JSONL log. One interleaved file holds every
// record type, discriminated by the envelope kind, so global append order
// is the file's line order.
type Journal struct {
	mu         sync.Mutex
	f          *os.File
	path       string
	seq        int64
	syncWrites bool
}

// Open opens (or creates) the journal at path and scans it to recover the
// last sequence number. With syncWrites set, every append is fsynced.
func Open(path string, syncWrites bool) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	j := &Journal{f: f, path: path, syncWrites: syncWrites}
	if err := Replay(path, func(e Entry) error {
		if e.Seq > j.seq {
			j.seq = e.Seq
		}
		return nil
	}); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }
// #endregion journal

// #region append
// Append durably writes one record version and returns its entry.
func (j *Journal) Append(kind record.Kind, rec any) (Entry, error) {
	entries, err := j.AppendBatch([]Pending{{Kind: kind, Record: rec}})
	if err != nil {
		return Entry{}, err
	}
	return entries[0], nil
}

// AppendBatch durably writes a group of record versions as a single write.
// Either all lines land or none are acknowledged; callers use this for
// linked writes that must not leave a dangling reference.
func (j *Journal) AppendBatch(pending []Pending) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := make([]Entry, 0, len(pending))
	var buf []byte
	seq := j.seq
	for _, p := range pending {
		raw, err := json.Marshal(p.Record)
		if err != nil {
			return nil, fmt.Errorf("marshal %s record: %w", p.Kind, err)
		}
		seq++
		e := Entry{Seq: seq, Kind: p.Kind, Record: raw}
		line, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal envelope: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
		entries = append(entries, e)
	}

	if _, err := j.f.Write(buf); err != nil {
		return nil, &AppendError{Path: j.path, Err: err}
	}
	if j.syncWrites {
		if err := j.f.Sync(); err != nil {
			return nil, &AppendError{Path: j.path, Err: err}
		}
	}
	j.seq = seq
	return entries, nil
}
// #endregion append

// #region replay
// Replay reads every entry in append order and hands it to fn. Replay is
// deterministic and side-effect free with respect to the journal itself,
// so running it any number of times yields the same sequence.
func Replay(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("journal %s line %d: %w", path, lineNo, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal %s: %w", path, err)
	}
	return nil
}
// #endregion replay

// Replay re-reads this journal under the append lock, so a scan can never
// race a large in-flight append and observe a torn trailing line.
func (j *Journal) Replay(fn func(Entry) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Replay(j.path, fn)
}

// #region scan-id
// recordID extracts just the id field of a journal record.
type recordID struct {
	ID string `json:"id"`
}

// Scan returns every entry whose record id matches, in append order.
// This is the audit-trail primitive: the file is the source of truth and
// prior versions are read back byte-for-byte as appended.
func (j *Journal) Scan(id string) ([]Entry, error) {
	var out []Entry
	err := j.Replay(func(e Entry) error {
		var rid recordID
		if err := json.Unmarshal(e.Record, &rid); err != nil {
			return fmt.Errorf("decode record at seq %d: %w", e.Seq, err)
		}
		if rid.ID == id {
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion scan-id

// #region count
// Len returns the number of entries currently in the journal.
func (j *Journal) Len() (int, error) {
	n := 0
	err := j.Replay(func(Entry) error {
		n++
		return nil
	})
	return n, err
}
// #endregion count

package journal

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/kestrelworks/nervecenter/internal/record"
)

func tempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nerve.jsonl"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAssignsSequence(t *testing.T) {
	j := tempJournal(t)

	e1, err := j.Append(record.KindActor, map[string]any{"id": "a1"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	e2, err := j.Append(record.KindEvent, map[string]any{"id": "e1"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e1.Seq != 1 || e2.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", e1.Seq, e2.Seq)
	}
}

func TestReplayOrderAndKinds(t *testing.T) {
	j := tempJournal(t)
	j.Append(record.KindActor, map[string]any{"id": "a1"})
	j.Append(record.KindEvent, map[string]any{"id": "e1"})
	j.Append(record.KindEvent, map[string]any{"id": "e1", "version": 2})

	var seqs []int64
	var kinds []record.Kind
	err := Replay(j.Path(), func(e Entry) error {
		seqs = append(seqs, e.Seq)
		kinds = append(kinds, e.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seqs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(seqs))
	}
	for i, s := range seqs {
		if s != int64(i+1) {
			t.Fatalf("entry %d: expected seq %d, got %d", i, i+1, s)
		}
	}
	if kinds[0] != record.KindActor || kinds[1] != record.KindEvent {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}

func TestReopenResumesSequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nerve.jsonl")

	j, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.Append(record.KindActor, map[string]any{"id": "a1"})
	j.Append(record.KindActor, map[string]any{"id": "a2"})
	j.Close()

	j2, err := Open(path, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	e, err := j2.Append(record.KindActor, map[string]any{"id": "a3"})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if e.Seq != 3 {
		t.Fatalf("expected resumed seq 3, got %d", e.Seq)
	}
}

func TestScanReturnsExactBytes(t *testing.T) {
	j := tempJournal(t)
	rec := map[string]any{"id": "e1", "version": 1, "payload": "original"}
	appended, err := j.Append(record.KindEvent, rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	j.Append(record.KindEvent, map[string]any{"id": "other"})
	j.Append(record.KindEvent, map[string]any{"id": "e1", "version": 2})

	entries, err := j.Scan("e1")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for e1, got %d", len(entries))
	}
	if !bytes.Equal(entries[0].Record, appended.Record) {
		t.Fatalf("first version bytes changed:\nwas %s\nnow %s", appended.Record, entries[0].Record)
	}
	if entries[0].Seq >= entries[1].Seq {
		t.Fatal("scan must preserve append order")
	}
}

func TestAppendBatchIsContiguous(t *testing.T) {
	j := tempJournal(t)
	j.Append(record.KindActor, map[string]any{"id": "a1"})

	entries, err := j.AppendBatch([]Pending{
		{Kind: record.KindTest, Record: map[string]any{"id": "t1"}},
		{Kind: record.KindHypothesis, Record: map[string]any{"id": "h1", "version": 2}},
	})
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Fatalf("expected seqs 2,3 got %d,%d", entries[0].Seq, entries[1].Seq)
	}

	n, err := j.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 journal lines, got %d", n)
	}
}

func TestScanDuringConcurrentAppends(t *testing.T) {
	j := tempJournal(t)
	j.Append(record.KindEvent, map[string]any{"id": "e1", "version": 1, "payload": "original"})

	// Scans take the append lock, so a reader can never observe half of an
	// in-flight line as a torn trailing entry.
	done := make(chan struct{})
	go func() {
		defer close(done)
		big := make([]byte, 256*1024)
		for i := range big {
			big[i] = 'x'
		}
		for v := 2; v <= 20; v++ {
			if _, err := j.Append(record.KindEvent, map[string]any{
				"id": "e1", "version": v, "payload": string(big),
			}); err != nil {
				t.Errorf("Append: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		entries, err := j.Scan("e1")
		if err != nil {
			t.Fatalf("Scan during appends: %v", err)
		}
		if len(entries) == 0 {
			t.Fatal("first entry must always be visible")
		}
	}
	<-done
}

func TestReplayMissingFileIsEmpty(t *testing.T) {
	err := Replay(filepath.Join(t.TempDir(), "absent.jsonl"), func(Entry) error {
		t.Fatal("callback must not run for a missing file")
		return nil
	})
	if err != nil {
		t.Fatalf("missing journal should replay as empty: %v", err)
	}
}

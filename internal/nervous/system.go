package nervous

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelworks/nervecenter/internal/journal"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region options
// Options configures a System.
type Options struct {
	JournalPath string
	SyncWrites  bool
	// TestTimeout bounds a single test-procedure execution. Zero disables
	// the bound. Registry operations are never subject to it.
	TestTimeout time.Duration
}
// #endregion options

// #region system
// System is the orchestrator. It exclusively owns the four registries and
// the on-disk journal; all links between records are lookup keys resolved
// here at query time. Mutations append to the journal first and update the
// in-memory map second, both under the owning registry lock, so a reader
// never observes state that is not durable.
//
// Lock order, where an operation needs more than one registry:
// hypotheses → tests, hypotheses → events → actors. The actors lock is a
// leaf: nothing is acquired while holding it.
type System struct {
	jnl *journal.Journal

	actorsMu sync.RWMutex
	actors   map[string]record.Actor

	eventsMu sync.RWMutex
	events   map[string]record.UniversalEvent

	hypsMu sync.RWMutex
	hyps   map[string]record.Hypothesis

	testsMu sync.RWMutex
	tests   map[string]record.TestObject

	testTimeout time.Duration
}

// Open replays the journal at opts.JournalPath into a fresh System.
// Replay is deterministic: the current state of each id is the last
// version appended for it, so any number of replays of the same file
// produce identical registries.
func Open(opts Options) (*System, error) {
	jnl, err := journal.Open(opts.JournalPath, opts.SyncWrites)
	if err != nil {
		return nil, err
	}

	s := &System{
		jnl:         jnl,
		actors:      map[string]record.Actor{},
		events:      map[string]record.UniversalEvent{},
		hyps:        map[string]record.Hypothesis{},
		tests:       map[string]record.TestObject{},
		testTimeout: opts.TestTimeout,
	}

	if err := jnl.Replay(s.applyEntry); err != nil {
		jnl.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the journal. The System must not be used afterwards.
func (s *System) Close() error {
	return s.jnl.Close()
}

// applyEntry loads one journal line into the owning registry.
func (s *System) applyEntry(e journal.Entry) error {
	switch e.Kind {
	case record.KindActor:
		var a record.Actor
		if err := json.Unmarshal(e.Record, &a); err != nil {
			return fmt.Errorf("replay actor at seq %d: %w", e.Seq, err)
		}
		s.actors[a.ID] = a
	case record.KindEvent:
		var ev record.UniversalEvent
		if err := json.Unmarshal(e.Record, &ev); err != nil {
			return fmt.Errorf("replay event at seq %d: %w", e.Seq, err)
		}
		s.events[ev.ID] = ev
	case record.KindHypothesis:
		var h record.Hypothesis
		if err := json.Unmarshal(e.Record, &h); err != nil {
			return fmt.Errorf("replay hypothesis at seq %d: %w", e.Seq, err)
		}
		s.hyps[h.ID] = h
	case record.KindTest:
		var to record.TestObject
		if err := json.Unmarshal(e.Record, &to); err != nil {
			return fmt.Errorf("replay test at seq %d: %w", e.Seq, err)
		}
		s.tests[to.ID] = to
	default:
		return fmt.Errorf("replay: unknown kind %q at seq %d", e.Kind, e.Seq)
	}
	return nil
}
// #endregion system

// #region attribution
// Attribution answers "who wrote this event, and when".
type Attribution struct {
	Actor         record.Actor `json:"actor"`
	CreatedAt     time.Time    `json:"createdAt"`
	Version       int          `json:"version"`
	RelatedEvents []string     `json:"relatedEvents,omitempty"`
}

// Attribution resolves an event's actor and provenance fields.
func (s *System) Attribution(eventID string) (Attribution, error) {
	s.eventsMu.RLock()
	ev, ok := s.events[eventID]
	s.eventsMu.RUnlock()
	if !ok {
		return Attribution{}, &NotFoundError{Kind: record.KindEvent, ID: eventID}
	}

	// Actors are never deleted, so the sequential lookup cannot go stale.
	s.actorsMu.RLock()
	actor, ok := s.actors[ev.ActorID]
	s.actorsMu.RUnlock()
	if !ok {
		return Attribution{}, &UnknownActorError{ActorID: ev.ActorID, Op: "attribution"}
	}
	return Attribution{
		Actor:         actor,
		CreatedAt:     ev.CreatedAt,
		Version:       ev.Version,
		RelatedEvents: append([]string(nil), ev.RelatedEvents...),
	}, nil
}
// #endregion attribution

// #region audit-trail
// AuditTrail returns every journal line whose record id matches, in append
// order, byte-for-byte as written. A caller can pick any prior version and
// re-apply it as a new update; that is the rollback mechanism.
func (s *System) AuditTrail(id string) ([]journal.Entry, error) {
	return s.jnl.Scan(id)
}
// #endregion audit-trail

// #region stats
// Stats summarizes the current registries.
type Stats struct {
	TotalEvents     int                      `json:"totalEvents"`
	TotalHypotheses int                      `json:"totalHypotheses"`
	TotalTests      int                      `json:"totalTests"`
	TotalActors     int                      `json:"totalActors"`
	ByModelType     map[record.ModelType]int `json:"hypothesesByModelType"`
}

// Stats computes registry counts over current records. Each registry is
// snapshotted under its own lock; no lock is held while acquiring another.
func (s *System) Stats() Stats {
	var st Stats

	s.actorsMu.RLock()
	st.TotalActors = len(s.actors)
	s.actorsMu.RUnlock()

	s.eventsMu.RLock()
	st.TotalEvents = len(s.events)
	s.eventsMu.RUnlock()

	s.hypsMu.RLock()
	st.TotalHypotheses = len(s.hyps)
	st.ByModelType = map[record.ModelType]int{}
	for _, mt := range record.ModelTypes() {
		st.ByModelType[mt] = 0
	}
	for _, h := range s.hyps {
		st.ByModelType[h.ModelType]++
	}
	s.hypsMu.RUnlock()

	s.testsMu.RLock()
	st.TotalTests = len(s.tests)
	s.testsMu.RUnlock()

	return st
}
// #endregion stats

// #region journal-len
// JournalLen returns the number of appended lines. Used by tests and the
// replay verifier to assert that failed operations appended nothing.
func (s *System) JournalLen() (int, error) {
	return s.jnl.Len()
}
// #endregion journal-len

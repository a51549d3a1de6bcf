package nervous

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/nervecenter/internal/mixture"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region record-event
// EventDraft is the input to RecordEvent. Intent, Readout, and Mixture are
// all optional at creation and may be attached later via UpdateEvent.
type EventDraft struct {
	ActorID       string
	Intent        *record.IntentToken
	Readout       *record.EventReadout
	Mixture       *mixture.Vector
	RelatedEvents []string
	Metadata      map[string]any
}

// RecordEvent appends version 1 of a new universal event. The actor must
// already be registered; an unknown actor id is a hard failure and nothing
// is appended.
func (s *System) RecordEvent(d EventDraft) (record.UniversalEvent, error) {
	if err := s.checkWriter(d.ActorID, "record event"); err != nil {
		return record.UniversalEvent{}, err
	}

	now := time.Now().UTC()
	ev := record.UniversalEvent{
		ID:            uuid.New().String(),
		ActorID:       d.ActorID,
		Intent:        d.Intent,
		Readout:       d.Readout,
		Mixture:       mixture.New(),
		RelatedEvents: d.RelatedEvents,
		Metadata:      d.Metadata,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if d.Mixture != nil {
		ev.Mixture = *d.Mixture
	}
	// Sever every alias into the draft: the caller may mutate its retained
	// maps and structs after return, and that must not reach the stored
	// record or the journal would diverge from memory.
	ev = ev.Clone()
	if ev.Intent != nil && ev.Intent.CreatedAt.IsZero() {
		ev.Intent.CreatedAt = now
	}
	if ev.Readout != nil && ev.Readout.CreatedAt.IsZero() {
		ev.Readout.CreatedAt = now
	}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if _, err := s.jnl.Append(record.KindEvent, ev); err != nil {
		return record.UniversalEvent{}, err
	}
	s.events[ev.ID] = ev
	return ev.Clone(), nil
}
// #endregion record-event

// #region update-event
// EventUpdate carries the fields to replace on an event. Nil fields retain
// their prior value.
type EventUpdate struct {
	Intent  *record.IntentToken
	Readout *record.EventReadout
	Mixture *mixture.Vector
}

// UpdateEvent applies a copy-on-write update: a new value with version+1
// is appended as a fresh journal line and the current pointer swaps to it.
// The previously appended lines are never touched.
func (s *System) UpdateEvent(id string, u EventUpdate) (record.UniversalEvent, error) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	cur, ok := s.events[id]
	if !ok {
		return record.UniversalEvent{}, &NotFoundError{Kind: record.KindEvent, ID: id}
	}
	if err := s.checkWriter(cur.ActorID, "update event"); err != nil {
		return record.UniversalEvent{}, err
	}

	now := time.Now().UTC()
	next := cur.Clone()
	if u.Intent != nil {
		next.Intent = u.Intent
	}
	if u.Readout != nil {
		next.Readout = u.Readout
	}
	if u.Mixture != nil {
		next.Mixture = *u.Mixture
	}
	// Same aliasing rule as RecordEvent: copy the update's pointees before
	// they become the stored record.
	next = next.Clone()
	if next.Intent != nil && next.Intent.CreatedAt.IsZero() {
		next.Intent.CreatedAt = now
	}
	if next.Readout != nil && next.Readout.CreatedAt.IsZero() {
		next.Readout.CreatedAt = now
	}
	next.Version = cur.Version + 1
	next.UpdatedAt = now

	if _, err := s.jnl.Append(record.KindEvent, next); err != nil {
		return record.UniversalEvent{}, err
	}
	s.events[id] = next
	return next.Clone(), nil
}
// #endregion update-event

// #region get-event
// GetEvent returns the current (highest-version) record for an event id.
func (s *System) GetEvent(id string) (record.UniversalEvent, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return record.UniversalEvent{}, &NotFoundError{Kind: record.KindEvent, ID: id}
	}
	return ev.Clone(), nil
}
// #endregion get-event

// #region query-events
// EventFilter selects events; zero-valued fields match everything and set
// fields are conjunctive.
type EventFilter struct {
	ActorID string
	Start   time.Time
	End     time.Time
}

// QueryEvents linearly filters the current event set, ordered by creation
// time then id for determinism.
func (s *System) QueryEvents(f EventFilter) []record.UniversalEvent {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	var out []record.UniversalEvent
	for _, ev := range s.events {
		if f.ActorID != "" && ev.ActorID != f.ActorID {
			continue
		}
		if !f.Start.IsZero() && ev.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && ev.CreatedAt.After(f.End) {
			continue
		}
		out = append(out, ev.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
// #endregion query-events

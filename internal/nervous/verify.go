package nervous

import (
	"encoding/json"
	"fmt"

	"github.com/kestrelworks/nervecenter/internal/journal"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region check-types
// Check is one invariant verification outcome.
type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// VerifyResult aggregates all invariant checks over a loaded system.
type VerifyResult struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
}
// #endregion check-types

// #region verify
// Verify runs post-replay invariant checks: referential integrity between
// events, hypotheses, tests and actors, bidirectional test linkage, and
// gap-free version chains in the journal. Read-only; safe to run anytime.
func (s *System) Verify() (VerifyResult, error) {
	var checks []Check

	checks = append(checks, s.checkActorRefs())
	checks = append(checks, s.checkEvidenceRefs())
	checks = append(checks, s.checkTestLinkage())

	chainCheck, err := s.checkVersionChains()
	if err != nil {
		return VerifyResult{}, err
	}
	checks = append(checks, chainCheck)

	passed := true
	for _, c := range checks {
		if !c.Pass {
			passed = false
			break
		}
	}
	return VerifyResult{Passed: passed, Checks: checks}, nil
}
// #endregion verify

// #region ref-checks
func (s *System) checkActorRefs() Check {
	s.eventsMu.RLock()
	events := make([]record.UniversalEvent, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	s.eventsMu.RUnlock()

	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	for _, ev := range events {
		if _, ok := s.actors[ev.ActorID]; !ok {
			return Check{
				Name:   "event_actor_refs",
				Detail: fmt.Sprintf("event %s references unknown actor %s", ev.ID, ev.ActorID),
			}
		}
	}
	return Check{Name: "event_actor_refs", Pass: true}
}

func (s *System) checkEvidenceRefs() Check {
	s.hypsMu.RLock()
	hyps := make([]record.Hypothesis, 0, len(s.hyps))
	for _, h := range s.hyps {
		hyps = append(hyps, h)
	}
	s.hypsMu.RUnlock()

	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	for _, h := range hyps {
		for _, evID := range h.Evidence {
			if _, ok := s.events[evID]; !ok {
				return Check{
					Name:   "hypothesis_evidence_refs",
					Detail: fmt.Sprintf("hypothesis %s cites unknown event %s", h.ID, evID),
				}
			}
		}
	}
	return Check{Name: "hypothesis_evidence_refs", Pass: true}
}

func (s *System) checkTestLinkage() Check {
	s.hypsMu.RLock()
	defer s.hypsMu.RUnlock()
	s.testsMu.RLock()
	defer s.testsMu.RUnlock()

	for _, h := range s.hyps {
		for _, testID := range h.LinkedTests {
			to, ok := s.tests[testID]
			if !ok {
				return Check{
					Name:   "test_linkage",
					Detail: fmt.Sprintf("hypothesis %s links unknown test %s", h.ID, testID),
				}
			}
			if to.HypothesisID != h.ID {
				return Check{
					Name:   "test_linkage",
					Detail: fmt.Sprintf("test %s points at hypothesis %s, linked from %s", testID, to.HypothesisID, h.ID),
				}
			}
		}
	}
	for _, to := range s.tests {
		h, ok := s.hyps[to.HypothesisID]
		if !ok {
			return Check{
				Name:   "test_linkage",
				Detail: fmt.Sprintf("test %s references unknown hypothesis %s", to.ID, to.HypothesisID),
			}
		}
		linked := false
		for _, id := range h.LinkedTests {
			if id == to.ID {
				linked = true
				break
			}
		}
		if !linked {
			return Check{
				Name:   "test_linkage",
				Detail: fmt.Sprintf("hypothesis %s is missing reverse link to test %s", h.ID, to.ID),
			}
		}
	}
	return Check{Name: "test_linkage", Pass: true}
}
// #endregion ref-checks

// #region version-chains
// versionedRecord extracts the fields every record shares.
type versionedRecord struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// checkVersionChains replays the journal and asserts each id's versions
// form the exact sequence 1,2,...,N with no gaps or repeats.
func (s *System) checkVersionChains() (Check, error) {
	lastVersion := map[string]int{}
	bad := ""

	err := s.jnl.Replay(func(e journal.Entry) error {
		if bad != "" {
			return nil
		}
		var vr versionedRecord
		if err := json.Unmarshal(e.Record, &vr); err != nil {
			return fmt.Errorf("decode record at seq %d: %w", e.Seq, err)
		}
		// Actor records are single-version and carry no version field.
		if e.Kind == record.KindActor {
			return nil
		}
		if vr.Version != lastVersion[vr.ID]+1 {
			bad = fmt.Sprintf("record %s: version %d follows %d at seq %d", vr.ID, vr.Version, lastVersion[vr.ID], e.Seq)
			return nil
		}
		lastVersion[vr.ID] = vr.Version
		return nil
	})
	if err != nil {
		return Check{}, err
	}
	if bad != "" {
		return Check{Name: "version_chains", Detail: bad}, nil
	}
	return Check{Name: "version_chains", Pass: true}, nil
}
// #endregion version-chains

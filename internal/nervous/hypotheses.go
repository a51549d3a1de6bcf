package nervous

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/nervecenter/internal/mixture"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region create
// HypothesisDraft is the input to CreateHypothesis. Probability defaults
// to 0.5 (maximum uncertainty) when nil.
type HypothesisDraft struct {
	ModelType   record.ModelType
	Description string
	Probability *float64
	Falsifiers  []string
	Mixture     *mixture.Vector
}

// CreateHypothesis appends version 1 of a new hypothesis. Each hypothesis
// tracks one perspective; the same claim held from several perspectives is
// several hypotheses, grouped by the caller for consensus queries.
func (s *System) CreateHypothesis(d HypothesisDraft) (record.Hypothesis, error) {
	if _, err := record.ParseModelType(string(d.ModelType)); err != nil {
		return record.Hypothesis{}, &ValidationError{Msg: err.Error()}
	}
	if d.Description == "" {
		return record.Hypothesis{}, &ValidationError{Msg: "hypothesis description required"}
	}
	prob := 0.5
	if d.Probability != nil {
		prob = *d.Probability
	}
	if prob < 0 || prob > 1 {
		return record.Hypothesis{}, &ValidationError{Msg: "probability must be in [0,1]"}
	}

	now := time.Now().UTC()
	h := record.Hypothesis{
		ID:          uuid.New().String(),
		ModelType:   d.ModelType,
		Description: d.Description,
		Probability: prob,
		Falsifiers:  make([]record.Falsifier, 0, len(d.Falsifiers)),
		Mixture:     mixture.New(),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, desc := range d.Falsifiers {
		h.Falsifiers = append(h.Falsifiers, record.Falsifier{Description: desc})
	}
	if d.Mixture != nil {
		h.Mixture = d.Mixture.Clone()
	}

	s.hypsMu.Lock()
	defer s.hypsMu.Unlock()

	if _, err := s.jnl.Append(record.KindHypothesis, h); err != nil {
		return record.Hypothesis{}, err
	}
	s.hyps[h.ID] = h
	return h.Clone(), nil
}
// #endregion create

// #region update
// HypothesisUpdate carries the fields to apply. AddEvidence and AddTest
// are idempotent: an id already present in the target list is not added
// again (but the update still produces a new version).
type HypothesisUpdate struct {
	Probability  *float64
	AddEvidence  string
	AddTest      string
	AddFalsifier string
}

// UpdateHypothesis applies a copy-on-write update with version+1.
// Evidence ids must resolve to existing events and test ids to existing
// tests; a dangling reference fails the whole update and appends nothing.
func (s *System) UpdateHypothesis(id string, u HypothesisUpdate) (record.Hypothesis, error) {
	if u.Probability != nil && (*u.Probability < 0 || *u.Probability > 1) {
		return record.Hypothesis{}, &ValidationError{Msg: "probability must be in [0,1]"}
	}

	s.hypsMu.Lock()
	defer s.hypsMu.Unlock()

	cur, ok := s.hyps[id]
	if !ok {
		return record.Hypothesis{}, &NotFoundError{Kind: record.KindHypothesis, ID: id}
	}

	if u.AddEvidence != "" {
		s.eventsMu.RLock()
		_, ok := s.events[u.AddEvidence]
		s.eventsMu.RUnlock()
		if !ok {
			return record.Hypothesis{}, &NotFoundError{Kind: record.KindEvent, ID: u.AddEvidence}
		}
	}
	if u.AddTest != "" {
		s.testsMu.RLock()
		_, ok := s.tests[u.AddTest]
		s.testsMu.RUnlock()
		if !ok {
			return record.Hypothesis{}, &NotFoundError{Kind: record.KindTest, ID: u.AddTest}
		}
	}

	next := cur.Clone()
	if u.Probability != nil {
		next.Probability = *u.Probability
	}
	if u.AddEvidence != "" {
		next.Evidence = appendUnique(next.Evidence, u.AddEvidence)
	}
	if u.AddTest != "" {
		next.LinkedTests = appendUnique(next.LinkedTests, u.AddTest)
	}
	if u.AddFalsifier != "" {
		next.Falsifiers = append(next.Falsifiers, record.Falsifier{Description: u.AddFalsifier})
	}
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if _, err := s.jnl.Append(record.KindHypothesis, next); err != nil {
		return record.Hypothesis{}, err
	}
	s.hyps[id] = next
	return next.Clone(), nil
}
// #endregion update

// #region falsification
// RecordFalsification marks one falsifier as tested with its observed
// result. Testing a falsifier is an explicit external action; it is never
// inferred, and recording it appends a new hypothesis version.
func (s *System) RecordFalsification(id string, falsifierIndex int, result bool) (record.Hypothesis, error) {
	s.hypsMu.Lock()
	defer s.hypsMu.Unlock()

	cur, ok := s.hyps[id]
	if !ok {
		return record.Hypothesis{}, &NotFoundError{Kind: record.KindHypothesis, ID: id}
	}
	if falsifierIndex < 0 || falsifierIndex >= len(cur.Falsifiers) {
		return record.Hypothesis{}, &ValidationError{Msg: "falsifier index out of range"}
	}

	next := cur.Clone()
	next.Falsifiers[falsifierIndex].Tested = true
	r := result
	next.Falsifiers[falsifierIndex].Result = &r
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if _, err := s.jnl.Append(record.KindHypothesis, next); err != nil {
		return record.Hypothesis{}, err
	}
	s.hyps[id] = next
	return next.Clone(), nil
}
// #endregion falsification

// #region queries
// GetHypothesis returns the current record for a hypothesis id.
func (s *System) GetHypothesis(id string) (record.Hypothesis, error) {
	s.hypsMu.RLock()
	defer s.hypsMu.RUnlock()

	h, ok := s.hyps[id]
	if !ok {
		return record.Hypothesis{}, &NotFoundError{Kind: record.KindHypothesis, ID: id}
	}
	return h.Clone(), nil
}

// HypothesesByModel filters current hypotheses by perspective, ordered by
// creation time then id.
func (s *System) HypothesesByModel(mt record.ModelType) []record.Hypothesis {
	s.hypsMu.RLock()
	defer s.hypsMu.RUnlock()

	var out []record.Hypothesis
	for _, h := range s.hyps {
		if h.ModelType == mt {
			out = append(out, h.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
// #endregion queries

// #region consensus
// Consensus returns the arithmetic mean of current probabilities across a
// caller-chosen hypothesis group.
func (s *System) Consensus(ids []string) (float64, error) {
	probs, err := s.groupProbabilities(ids)
	if err != nil {
		return 0, err
	}
	return mean(probs), nil
}

// Divergence returns the population standard deviation of the group's
// probabilities. Zero means full agreement across perspectives.
func (s *System) Divergence(ids []string) (float64, error) {
	probs, err := s.groupProbabilities(ids)
	if err != nil {
		return 0, err
	}
	m := mean(probs)
	var sumSq float64
	for _, p := range probs {
		d := p - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(probs))), nil
}

func (s *System) groupProbabilities(ids []string) ([]float64, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Msg: "hypothesis group must not be empty"}
	}

	s.hypsMu.RLock()
	defer s.hypsMu.RUnlock()

	probs := make([]float64, 0, len(ids))
	for _, id := range ids {
		h, ok := s.hyps[id]
		if !ok {
			return nil, &NotFoundError{Kind: record.KindHypothesis, ID: id}
		}
		probs = append(probs, h.Probability)
	}
	return probs, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
// #endregion consensus

// #region helpers
func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
// #endregion helpers

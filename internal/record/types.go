package record

import (
	"fmt"
	"time"

	"github.com/kestrelworks/nervecenter/internal/mixture"
)

// #region kinds
// Kind discriminates record types in the interleaved journal.
type Kind string

const (
	KindActor      Kind = "actor"
	KindEvent      Kind = "event"
	KindHypothesis Kind = "hypothesis"
	KindTest       Kind = "test"
)
// #endregion kinds

// #region actor
// ActorType classifies who (or what) is writing records.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorAgent  ActorType = "agent"
	ActorSystem ActorType = "system"
)

// ParseActorType converts a wire tag into an ActorType.
func ParseActorType(s string) (ActorType, error) {
	switch ActorType(s) {
	case ActorHuman, ActorAgent, ActorSystem:
		return ActorType(s), nil
	}
	return "", fmt.Errorf("unknown actor type %q", s)
}

// Actor is an attributable identity. Every write names one. Actors are
// registered once and never mutated or deleted.
type Actor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        ActorType `json:"type"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CanWrite reports whether this actor may be the subject of a write.
// An empty permission set is unrestricted; a non-empty set must carry
// "write" or the wildcard.
func (a Actor) CanWrite() bool {
	if len(a.Permissions) == 0 {
		return true
	}
	for _, p := range a.Permissions {
		if p == "write" || p == "*" {
			return true
		}
	}
	return false
}
// #endregion actor

// #region intent-readout
// IntentToken is a pre-action commitment: what the actor set out to do,
// under what constraints, and how confident it was. Immutable once attached.
type IntentToken struct {
	Goal          string    `json:"goal"`
	Constraints   []string  `json:"constraints,omitempty"`
	SuccessMetric string    `json:"successMetric,omitempty"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EventReadout is the post-action observed outcome, paired with the intent
// after the fact.
type EventReadout struct {
	Trigger     string         `json:"trigger,omitempty"`
	ResultState map[string]any `json:"resultState,omitempty"`
	PolicyUsed  string         `json:"policyUsed,omitempty"`
	Payoff      float64        `json:"payoff"`
	Success     bool           `json:"success"`
	CreatedAt   time.Time      `json:"createdAt"`
}
// #endregion intent-readout

// #region universal-event
// UniversalEvent is the core append-only record. Version starts at 1 and
// increments by exactly one per update; every version is a separate journal
// line and prior versions are never rewritten.
type UniversalEvent struct {
	ID            string         `json:"id"`
	ActorID       string         `json:"actorId"`
	Intent        *IntentToken   `json:"intent"`
	Readout       *EventReadout  `json:"readout"`
	Mixture       mixture.Vector `json:"mixture"`
	RelatedEvents []string       `json:"relatedEvents,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy for copy-on-write updates.
func (e UniversalEvent) Clone() UniversalEvent {
	out := e
	if e.Intent != nil {
		in := *e.Intent
		in.Constraints = append([]string(nil), e.Intent.Constraints...)
		out.Intent = &in
	}
	if e.Readout != nil {
		ro := *e.Readout
		ro.ResultState = cloneMap(e.Readout.ResultState)
		out.Readout = &ro
	}
	out.Mixture = e.Mixture.Clone()
	out.RelatedEvents = append([]string(nil), e.RelatedEvents...)
	out.Metadata = cloneMap(e.Metadata)
	return out
}
// #endregion universal-event

// #region model-type
// ModelType names the perspective a hypothesis is held from.
type ModelType string

const (
	ModelMe     ModelType = "me"     // self-model
	ModelWe     ModelType = "we"     // collective model
	ModelThey   ModelType = "they"   // external model
	ModelSystem ModelType = "system" // system-level model
)

// ParseModelType converts a wire tag into a ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case ModelMe, ModelWe, ModelThey, ModelSystem:
		return ModelType(s), nil
	}
	return "", fmt.Errorf("unknown model type %q", s)
}

// ModelTypes lists every perspective in a stable order.
func ModelTypes() []ModelType {
	return []ModelType{ModelMe, ModelWe, ModelThey, ModelSystem}
}
// #endregion model-type

// #region hypothesis
// Falsifier is an explicit condition whose confirmation disproves the
// hypothesis. Adding one never auto-tests it; Tested and Result are set
// only by an explicit falsification recording.
type Falsifier struct {
	Description string `json:"description"`
	Tested      bool   `json:"tested"`
	Result      *bool  `json:"result"`
}

// Fired reports whether this falsifier has been tested and confirmed.
func (f Falsifier) Fired() bool {
	return f.Tested && f.Result != nil && *f.Result
}

// Hypothesis is one perspective's independently tracked claim. Multiple
// hypotheses may share a real-world claim, one per ModelType; consensus
// and divergence are derived over such a group at query time.
type Hypothesis struct {
	ID          string         `json:"id"`
	ModelType   ModelType      `json:"modelType"`
	Description string         `json:"description"`
	Probability float64        `json:"probability"`
	Falsifiers  []Falsifier    `json:"falsifiers"`
	Mixture     mixture.Vector `json:"mixture"`
	LinkedTests []string       `json:"linkedTests,omitempty"`
	Evidence    []string       `json:"evidence,omitempty"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Falsified reports whether any attached falsifier has fired.
func (h Hypothesis) Falsified() bool {
	for _, f := range h.Falsifiers {
		if f.Fired() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy for copy-on-write updates.
func (h Hypothesis) Clone() Hypothesis {
	out := h
	out.Falsifiers = make([]Falsifier, len(h.Falsifiers))
	for i, f := range h.Falsifiers {
		out.Falsifiers[i] = f
		if f.Result != nil {
			r := *f.Result
			out.Falsifiers[i].Result = &r
		}
	}
	out.Mixture = h.Mixture.Clone()
	out.LinkedTests = append([]string(nil), h.LinkedTests...)
	out.Evidence = append([]string(nil), h.Evidence...)
	return out
}
// #endregion hypothesis

// #region test
// TestType classifies how a test is carried out.
type TestType string

const (
	TestProcedural TestType = "procedural"
	TestEmpirical  TestType = "empirical"
	TestSimulation TestType = "simulation"
)

// ParseTestType converts a wire tag into a TestType.
func ParseTestType(s string) (TestType, error) {
	switch TestType(s) {
	case TestProcedural, TestEmpirical, TestSimulation:
		return TestType(s), nil
	}
	return "", fmt.Errorf("unknown test type %q", s)
}

// TestStatus is the status of the most recent execution.
type TestStatus string

const (
	StatusPending TestStatus = "pending"
	StatusPassed  TestStatus = "passed"
	StatusFailed  TestStatus = "failed"
	StatusError   TestStatus = "error"
)

// TestResult is one execution's outcome. Execution failures are captured
// here as data (status "error"), never propagated as faults.
type TestResult struct {
	Passed          bool           `json:"passed"`
	Status          TestStatus     `json:"status"`
	Measurements    map[string]any `json:"measurements,omitempty"`
	Observations    []string       `json:"observations,omitempty"`
	DurationSeconds float64        `json:"durationSeconds"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	ExecutedAt      time.Time      `json:"executedAt"`
}

// Clone returns a deep copy for copy-on-write updates.
func (r TestResult) Clone() TestResult {
	out := r
	out.Measurements = cloneMap(r.Measurements)
	out.Observations = append([]string(nil), r.Observations...)
	return out
}

// TestObject is a named, hypothesis-linked procedure with an execution
// history. HypothesisID is a lookup key, resolved through the system at
// query time; the hypothesis holds the reverse link in LinkedTests.
type TestObject struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	HypothesisID string         `json:"hypothesisId"`
	TestType     TestType       `json:"testType"`
	Status       TestStatus     `json:"status"`
	Results      []TestResult   `json:"results,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// SuccessRate is passed executions over total executions, 0 when none.
func (to TestObject) SuccessRate() float64 {
	if len(to.Results) == 0 {
		return 0
	}
	passed := 0
	for _, r := range to.Results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(to.Results))
}

// Clone returns a deep copy for copy-on-write updates.
func (to TestObject) Clone() TestObject {
	out := to
	out.Results = make([]TestResult, len(to.Results))
	for i, r := range to.Results {
		out.Results[i] = r.Clone()
	}
	out.Metadata = cloneMap(to.Metadata)
	return out
}
// #endregion test

// #region helpers
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
// #endregion helpers

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/kestrelworks/nervecenter/internal/mixture"
	"github.com/kestrelworks/nervecenter/internal/nervous"
	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region main
// seed writes a small demonstration scenario into a journal: one agent
// records an intent-bearing event, attaches its readout, raises a
// hypothesis from two perspectives, links a test, and executes it.
func main() {
	journalPath := flag.String("journal", "nervecenter.jsonl", "path to the journal to seed")
	flag.Parse()

	sys, err := nervous.Open(nervous.Options{JournalPath: *journalPath, SyncWrites: true})
	if err != nil {
		log.Fatalf("open system: %v", err)
	}
	defer sys.Close()

	fmt.Println("=== NerveCenter Seed ===")
	fmt.Printf("  Journal: %s\n", *journalPath)

	worker, err := sys.RegisterActor(nervous.ActorDraft{
		Name:        "latency-worker",
		Type:        record.ActorAgent,
		Permissions: []string{"read", "write"},
	})
	if err != nil {
		log.Fatalf("register actor: %v", err)
	}
	fmt.Printf("  actor: %s (%s)\n", worker.Name, worker.ID)

	ev, err := sys.RecordEvent(nervous.EventDraft{
		ActorID: worker.ID,
		Intent: &record.IntentToken{
			Goal:          "reduce latency",
			Constraints:   []string{"no schema changes"},
			SuccessMetric: "p95 under 100ms",
			Confidence:    0.8,
		},
		Metadata: map[string]any{"service": "checkout"},
	})
	if err != nil {
		log.Fatalf("record event: %v", err)
	}

	mix := mixture.FromComponents(map[string]float64{"performance": 3, "caching": 1})
	mix.Normalize()
	ev2, err := sys.UpdateEvent(ev.ID, nervous.EventUpdate{
		Readout: &record.EventReadout{
			Trigger:    "deploy",
			PolicyUsed: "cache-aside",
			Payoff:     0.9,
			Success:    true,
		},
		Mixture: &mix,
	})
	if err != nil {
		log.Fatalf("update event: %v", err)
	}
	fmt.Printf("  event: %s v%d\n", ev2.ID, ev2.Version)

	prob := 0.8
	me, err := sys.CreateHypothesis(nervous.HypothesisDraft{
		ModelType:   record.ModelMe,
		Description: "caching helps checkout latency",
		Probability: &prob,
		Falsifiers:  []string{"p95 unchanged after cache warm-up"},
	})
	if err != nil {
		log.Fatalf("create hypothesis: %v", err)
	}
	weProb := 0.6
	we, err := sys.CreateHypothesis(nervous.HypothesisDraft{
		ModelType:   record.ModelWe,
		Description: "caching helps checkout latency",
		Probability: &weProb,
	})
	if err != nil {
		log.Fatalf("create hypothesis: %v", err)
	}

	if _, err := sys.UpdateHypothesis(me.ID, nervous.HypothesisUpdate{AddEvidence: ev.ID}); err != nil {
		log.Fatalf("link evidence: %v", err)
	}

	probe, err := sys.CreateTest(nervous.TestDraft{
		Name:         "cache hit-rate probe",
		HypothesisID: me.ID,
		TestType:     record.TestEmpirical,
	})
	if err != nil {
		log.Fatalf("create test: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := sys.ExecuteTest(ctx, probe.ID, func(ctx context.Context) (nervous.Outcome, error) {
		return nervous.Outcome{
			Passed:       true,
			Measurements: map[string]any{"ms": 85, "hit_rate": 0.94},
			Observations: []string{"p95 under budget after warm-up"},
		}, nil
	})
	if err != nil {
		log.Fatalf("execute test: %v", err)
	}
	fmt.Printf("  test: %s -> %s\n", probe.Name, res.Status)

	group := []string{me.ID, we.ID}
	consensus, _ := sys.Consensus(group)
	divergence, _ := sys.Divergence(group)
	fmt.Printf("  consensus: %.3f | divergence: %.3f\n", consensus, divergence)

	st := sys.Stats()
	fmt.Printf("  totals: %d actors, %d events, %d hypotheses, %d tests\n",
		st.TotalActors, st.TotalEvents, st.TotalHypotheses, st.TotalTests)
	fmt.Println("done.")
}
// #endregion main

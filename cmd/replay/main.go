package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/kestrelworks/nervecenter/internal/nervous"
)

// #region main

func main() {
	journalPath := flag.String("journal", "", "path to nervecenter.jsonl")
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --journal path/to/nervecenter.jsonl")
		os.Exit(2)
	}
	os.Exit(run(*journalPath))
}

// #endregion main

// #region run

// run replays the journal into two independent systems and checks that
// they agree, then runs the invariant checks. Exit code 0 means the
// journal replays deterministically and every invariant holds.
func run(journalPath string) int {
	first, err := nervous.Open(nervous.Options{JournalPath: journalPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay 1: %v\n", err)
		return 1
	}
	defer first.Close()

	second, err := nervous.Open(nervous.Options{JournalPath: journalPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay 2: %v\n", err)
		return 1
	}
	defer second.Close()

	s1, s2 := first.Stats(), second.Stats()
	if !reflect.DeepEqual(s1, s2) {
		fmt.Fprintf(os.Stderr, "FAIL replay diverged:\n  first:  %+v\n  second: %+v\n", s1, s2)
		return 1
	}

	lines, err := first.JournalLen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "count journal: %v\n", err)
		return 1
	}

	fmt.Printf("journal: %s\n", journalPath)
	fmt.Printf("  lines: %d\n", lines)
	fmt.Printf("  actors: %d | events: %d | hypotheses: %d | tests: %d\n",
		s1.TotalActors, s1.TotalEvents, s1.TotalHypotheses, s1.TotalTests)
	for mt, n := range s1.ByModelType {
		if n > 0 {
			fmt.Printf("  %s-model hypotheses: %d\n", mt, n)
		}
	}
	fmt.Println("replay: deterministic")

	res, err := first.Verify()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	for _, check := range res.Checks {
		status := "PASS"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s", status, check.Name)
		if check.Detail != "" {
			fmt.Printf(": %s", check.Detail)
		}
		fmt.Println()
	}
	if !res.Passed {
		return 1
	}
	return 0
}

// #endregion run

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/kestrelworks/nervecenter/internal/index"
	"github.com/kestrelworks/nervecenter/internal/record"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	journalPath := flag.String("journal", "", "path to nervecenter.jsonl")
	dbPath := flag.String("db", "", "path to the index database (default: <journal>.db)")
	last := flag.Int("last", 20, "show N most recent journal lines")
	id := flag.String("id", "", "show the full version chain for one record id")
	kind := flag.String("kind", "", "filter by record kind (actor|event|hypothesis|test)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --journal path/to/nervecenter.jsonl [--id record-id] [--kind event] [--last N] [--json]")
		os.Exit(2)
	}
	if *dbPath == "" {
		*dbPath = *journalPath + ".db"
	}

	ix, err := index.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open index: %v\n", err)
		os.Exit(1)
	}
	defer ix.Close()

	n, err := ix.Build(*journalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build index: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "indexed %d journal lines\n", n)

	var rows []index.Row
	switch {
	case *id != "":
		rows, err = ix.History(*id)
	case *kind != "":
		rows, err = ix.ByKind(record.Kind(*kind), *last)
	default:
		rows, err = ix.Recent(*last)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printTable(rows)
}

// #endregion main

// #region table

func printTable(rows []index.Row) {
	if len(rows) == 0 {
		fmt.Println("no records")
		return
	}
	fmt.Printf("%-6s %-11s %-36s %-4s %-8s %s\n", "SEQ", "KIND", "ID", "VER", "MODEL", "CREATED")
	for _, r := range rows {
		model := r.ModelType
		if model == "" {
			model = "-"
		}
		fmt.Printf("%-6d %-11s %-36s %-4d %-8s %s\n", r.Seq, r.Kind, r.RecordID, r.Version, model, r.CreatedAt)
	}
}

// #endregion table

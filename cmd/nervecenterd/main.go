package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelworks/nervecenter/internal/config"
	"github.com/kestrelworks/nervecenter/internal/httpapi"
	"github.com/kestrelworks/nervecenter/internal/nervous"
)

// #region main
func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sys, err := nervous.Open(nervous.Options{
		JournalPath: cfg.JournalPath,
		SyncWrites:  cfg.SyncWrites,
		TestTimeout: cfg.TestTimeout(),
	})
	if err != nil {
		log.Fatalf("open nervous system: %v", err)
	}
	defer sys.Close()

	st := sys.Stats()
	fmt.Println("NerveCenter ready.")
	fmt.Printf("  Journal: %s | Listen: %s\n", cfg.JournalPath, cfg.ListenAddr)
	fmt.Printf("  Replayed: %d actors, %d events, %d hypotheses, %d tests\n",
		st.TotalActors, st.TotalEvents, st.TotalHypotheses, st.TotalTests)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(sys),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	case sig := <-stop:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
// #endregion main

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/loganszeto/respcache/internal/config"
	"github.com/loganszeto/respcache/internal/server"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st := store.NewMemTable(store.Options{})
	stats := stats.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sweeper := store.NewSweeper(st, cfg.SweepInterval, log.Default(), stats.RecordReclaimed)
	go sweeper.Run(ctx)

	srv := server.New(cfg, st, stats, log.Default())
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logStats(stats)
}

func logStats(s *stats.Stats) {
	snap := s.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("stat %s=%d", k, snap[k])
	}
}

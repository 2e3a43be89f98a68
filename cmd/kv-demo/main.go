package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/loganszeto/respcache/internal/config"
	"github.com/loganszeto/respcache/internal/server"
	"github.com/loganszeto/respcache/internal/stats"
	"github.com/loganszeto/respcache/internal/store"
)

// kv-demo serves the cache over WebSocket for browsers, and over TCP for
// regular clients, from one shared store.
func main() {
	port := getenv("PORT", "8080")
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := store.NewMemTable(store.Options{})
	stats := stats.New()
	go store.NewSweeper(st, cfg.SweepInterval, log.Default(), stats.RecordReclaimed).Run(ctx)

	tcp := server.New(cfg, st, stats, log.Default())
	go func() {
		if err := tcp.ListenAndServe(ctx); err != nil {
			log.Printf("tcp server error: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		snap := stats.Snapshot()
		snap["keys"] = int64(st.Len())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
	mux.Handle("/ws", server.NewWSHandler(st, stats, log.Default()))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("kv-demo ok\n"))
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           withLogging(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("kv demo listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func getenv(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

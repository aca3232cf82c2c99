package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chordring/internal/chord"
	"chordring/internal/config"
	"chordring/internal/logging"
	"chordring/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	log := logging.Init(cfg.Logging)

	ht := transport.New(cfg.FastRPCTimeout, cfg.SlowRPCTimeout, cfg.RetryMax, log)

	self := chord.NodeRef{
		ID:   chord.HashAddress(cfg.NodeIP, cfg.NodePort, cfg.MBits),
		IP:   cfg.NodeIP,
		Port: cfg.NodePort,
	}
	node := chord.New(self, cfg.MBits, ht, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := node.Join(ctx, cfg.Bootstrap); err != nil {
		log.Error("join failed, remaining a solo ring", "err", err)
	}

	srv := transport.NewServer(node, log)

	if cfg.DebugMode {
		go startDebugListener(cfg.DebugAddr, log)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(self.Addr()); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
		}
	}()

	go runMaintenance(ctx, node, cfg)

	<-stop
	log.Info("shutting down", "node_id", node.ID())

	if err := node.Depart(ctx); err != nil {
		log.Warn("depart failed", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "err", err)
	}
}

// runMaintenance drives stabilize, fix_fingers and check_predecessor on
// their own tickers, matching §4.3's periodic-task description.
func runMaintenance(ctx context.Context, node *chord.Node, cfg config.Config) {
	stabilizeT := time.NewTicker(cfg.StabilizeInterval)
	fixFingersT := time.NewTicker(cfg.FixFingersInterval)
	checkPredT := time.NewTicker(cfg.CheckPredecessorInterval)
	defer stabilizeT.Stop()
	defer fixFingersT.Stop()
	defer checkPredT.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stabilizeT.C:
			node.Stabilize(ctx)
		case <-fixFingersT.C:
			node.FixFingers(ctx)
		case <-checkPredT.C:
			node.CheckPredecessor(ctx)
		}
	}
}

// startDebugListener exposes net/http/pprof on a separate loopback
// listener, the Go-idiomatic counterpart of the DEBUG_MODE attach
// listener (§6).
func startDebugListener(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	log.Info("debug listener enabled", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("debug listener stopped", "err", err)
	}
}

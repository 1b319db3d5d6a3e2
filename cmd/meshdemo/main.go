// Command meshdemo wires pkg/meshnode to transport/udpbroadcast and prints
// everything the node delivers, grounded on core/main.go's shape: a
// banner, a static configuration struct, and signal-driven graceful
// shutdown, generalized from a game server bootstrap into a protocol
// engine bootstrap.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshcore/pkg/meshlog"
	"meshcore/pkg/meshmetrics"
	"meshcore/pkg/meshnode"
	"meshcore/pkg/meshwire"
	"meshcore/transport/udpbroadcast"
)

const version = "0.1.0"

type config struct {
	SelfAddr      meshwire.Addr
	BindAddr      string
	BroadcastAddr string
	MetricsAddr   string
}

func loadConfig() config {
	return config{
		SelfAddr:      0x01,
		BindAddr:      "0.0.0.0:7373",
		BroadcastAddr: "255.255.255.255:7373",
		MetricsAddr:   ":9373",
	}
}

func banner() {
	fmt.Printf(`
╔═══════════════════════════════════════════════════════════╗
║                      MESHCORE  %-7s                     ║
╚═══════════════════════════════════════════════════════════╝
`, version)
}

func main() {
	banner()
	cfg := loadConfig()

	log, err := meshlog.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshlog init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	metrics := meshmetrics.New(reg)

	host, err := udpbroadcast.New(cfg.BindAddr, cfg.BroadcastAddr, log)
	if err != nil {
		log.Errorw("failed to start udp host", "err", err)
		os.Exit(1)
	}
	defer host.Close()

	node := meshnode.New(cfg.SelfAddr, host, meshnode.WithLogger(log), meshnode.WithMetrics(metrics))
	node.OnRecv(func(src meshwire.Addr, data []byte) {
		log.Infow("delivered frame", "src", src, "data", string(data))
	})
	node.OnSyncTime(func(src meshwire.Addr, ts meshwire.Ts) {
		log.Infow("sync_time received", "src", src, "ts", ts)
	})
	node.OnRecvDebug(func(src meshwire.Addr, path []byte) {
		log.Infow("route_debug received", "src", src, "path", path)
	})
	node.Init()

	log.Infow("node started", "self", cfg.SelfAddr, "bind", cfg.BindAddr, "broadcast", cfg.BroadcastAddr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnw("metrics server stopped", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

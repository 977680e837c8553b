package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/routebird/bgpd/api"
	"github.com/routebird/bgpd/config"
	"github.com/routebird/bgpd/internal/logging"
	"github.com/routebird/bgpd/metrics"
	"github.com/routebird/bgpd/reactor"
)

var (
	flagConfig     string
	flagMetrics    string
	flagLogJSON    bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the BGP speaker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&flagConfig, "config", "bgpd.yaml", "path to the peer configuration document")
	cmd.Flags().StringVar(&flagMetrics, "metrics-listen", ":9179", "address for the Prometheus /metrics endpoint")
	cmd.Flags().BoolVar(&flagLogJSON, "log-json", false, "force JSON log output")
	return cmd
}

// runServe wires configuration, logging, metrics, the reactor, every
// configured peer, and the API control channel together, then blocks
// until the reactor exits. Its return value drives the process exit
// code contract: nil on a clean shutdown, a startup error before the
// reactor begins exits 1, and an error surfacing from Run exits 2.
func runServe(ctx context.Context) error {
	log := logging.New(logging.Options{Level: slog.LevelInfo, JSON: flagLogJSON})

	doc, err := config.Load(flagConfig)
	if err != nil {
		return startupError{err}
	}

	reg := prometheus.NewRegistry()
	mx := metrics.NewRegistry(reg)
	clock := clockwork.NewRealClock()

	commands := make(chan reactor.Command, 64)
	events := make(chan reactor.OutputEvent, 256)
	r := reactor.New(log, mx, commands, events)

	listeners, err := startPeers(ctx, doc, r, clock, log)
	if err != nil {
		return startupError{err}
	}
	defer closeListeners(listeners)

	broker := api.NewEventBroker()
	go broker.Run(events)

	control := api.Control{
		Reload: func() error {
			log.Info("reload requested")
			return nil
		},
		Shutdown: func() {
			log.Info("shutdown requested over control channel")
		},
	}

	apiLn, err := net.Listen("tcp", doc.APIListen)
	if err != nil {
		return startupError{fmt.Errorf("api listen: %w", err)}
	}
	defer apiLn.Close()

	encoding := api.EncodingText
	if doc.APIEncoding == "json" {
		encoding = api.EncodingJSON
	}

	apiCtx, apiCancel := context.WithCancel(ctx)
	defer apiCancel()
	go func() {
		if err := api.ListenAndServe(apiCtx, apiLn, encoding, commands, r, control, broker, log); err != nil {
			log.Warn("api listener stopped", "err", err)
		}
	}()

	metricsSrv := &http.Server{Addr: flagMetrics, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics listener stopped", "err", err)
		}
	}()
	defer metricsSrv.Close()

	if err := r.Run(ctx); err != nil {
		return runtimeError{err}
	}
	return nil
}

func closeListeners(lns []net.Listener) {
	for _, ln := range lns {
		ln.Close()
	}
}

// startupError and runtimeError distinguish exit code 1 (configuration
// or wiring failed before the speaker ran at all) from exit code 2
// (the reactor itself faulted after running), per the process exit
// contract.
type startupError struct{ err error }

func (e startupError) Error() string { return e.err.Error() }
func (e startupError) Unwrap() error  { return e.err }

type runtimeError struct{ err error }

func (e runtimeError) Error() string { return e.err.Error() }
func (e runtimeError) Unwrap() error  { return e.err }

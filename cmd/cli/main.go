// Command traffic-engine drives the traffic simulator from the command line.
//
//	traffic-engine [run] [flags] [input.json]  run a batch simulation; input is read from
//	                                           the file argument, or stdin when it is "-"
//	traffic-engine route -from A -to B [-k N]  print congestion-aware routes on the initial state
//	traffic-engine optimize [-warmup N]        print proposed light timings after N ticks
//
// Every subcommand accepts -config to load a YAML configuration.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/engine"
	"github.com/cxd309/traffic-engine/internal/graph"
	"github.com/cxd309/traffic-engine/internal/logging"
	"github.com/cxd309/traffic-engine/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := "run"
	if len(args) > 0 {
		switch args[0] {
		case "run", "route", "optimize":
			cmd, args = args[0], args[1:]
		}
	}

	switch cmd {
	case "route":
		return runRoute(args, stdout)
	case "optimize":
		return runOptimize(ctx, args, stdout)
	default:
		return runBatch(ctx, args, stdin, stdout)
	}
}

// common holds the flags shared by every subcommand.
type common struct {
	configPath string
	logLevel   string
	seed       int64
	vehicles   int
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.Int64Var(&c.seed, "seed", 0, "random seed (overrides config)")
	fs.IntVar(&c.vehicles, "vehicles", 0, "fleet size (overrides config)")
}

// load reads the configuration and applies the flags that were set.
func (c *common) load(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return config.Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Simulation.Seed = c.seed
		case "vehicles":
			cfg.Simulation.Vehicles = c.vehicles
		case "log-level":
			cfg.Logging.Level = c.logLevel
		}
	})
	return cfg, cfg.Validate()
}

// simulator builds a simulator over the configured grid.
func simulator(cfg config.Config, opts ...engine.Option) (*engine.Simulator, error) {
	g, err := graph.NewGraph(graph.Grid(cfg.GridSpec(), nil))
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}
	return engine.New(g, cfg, opts...)
}

func runBatch(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var c common
	c.register(fs)
	ticks := fs.Int("ticks", 0, "ticks to run (overrides input and config)")
	rerouteEvery := fs.Int("reroute-every", 0, "ticks between balancer runs")
	optimizeEvery := fs.Int("optimize-every", 0, "ticks between light retimings")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}

	input, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			input.Meta.Seed = &c.seed
		case "vehicles":
			input.Meta.Vehicles = &c.vehicles
		case "ticks":
			input.Meta.Ticks = *ticks
		case "reroute-every":
			input.Meta.RerouteEvery = *rerouteEvery
		case "optimize-every":
			input.Meta.OptimizeEvery = *optimizeEvery
		}
	})

	logger := logging.New(cfg.Logging.Level).With(logging.Component("cli"))
	reg := metrics.NewRegistry()
	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		stop := serveMetrics(addr, reg, logger)
		defer stop()
	}

	simLog, err := engine.RunInput(ctx, input, cfg, engine.WithLogger(logger), engine.WithMetrics(reg))
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(simLog)
}

// readInput reads a SimulationInput from path, or from stdin when path is
// "-". No path, or an empty document, means a generated grid.
func readInput(path string, stdin io.Reader) (engine.SimulationInput, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return engine.SimulationInput{}, nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return engine.SimulationInput{}, fmt.Errorf("reading input: %w", err)
	}

	var input engine.SimulationInput
	if len(data) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return engine.SimulationInput{}, fmt.Errorf("invalid input JSON: %w", err)
	}
	return input, nil
}

func runRoute(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	var c common
	c.register(fs)
	from := fs.String("from", graph.GridNodeID(0, 0), "start intersection")
	to := fs.String("to", "", "destination intersection")
	k := fs.Int("k", 1, "number of alternative routes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("route: -to is required")
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}

	sim, err := simulator(cfg, engine.WithLogger(logging.New(cfg.Logging.Level)))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if *k <= 1 {
		return enc.Encode(sim.ComputeRoute(*from, *to))
	}
	return enc.Encode(sim.ComputeAlternativeRoutes(*from, *to, *k))
}

func runOptimize(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	var c common
	c.register(fs)
	warmup := fs.Int("warmup", 0, "ticks to run before optimizing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.load(fs)
	if err != nil {
		return err
	}

	sim, err := simulator(cfg, engine.WithLogger(logging.New(cfg.Logging.Level)))
	if err != nil {
		return err
	}
	if err := sim.Run(ctx, *warmup); err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sim.OptimizeLights())
}

// serveMetrics exposes reg on addr under /metrics until the returned stop
// function is called.
func serveMetrics(addr string, reg *metrics.Registry, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logging.Error(err))
		}
	}()
	logger.Info("serving metrics", logging.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

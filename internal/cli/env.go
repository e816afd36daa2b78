package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ecstasoy/addrecho/pkg/codec"
	"github.com/ecstasoy/addrecho/pkg/config"
	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/ratelimiter"
	"github.com/ecstasoy/addrecho/pkg/registry"
	"github.com/ecstasoy/addrecho/pkg/registry/etcd"
)

// maxRateLimitPeers bounds the per-peer limiter table.
const maxRateLimitPeers = 1024

// errMemoryRegistry rejects a registry no other process could read.
var errMemoryRegistry = errors.New("the memory registry is process-local, use --registry etcd")

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath    string
	stdout        bool
	logFile       string
	metricsAddr   string
	registry      string
	service       string
	etcdEndpoints []string
}

func (g *globalFlags) register(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&g.stdout, "stdout", "o", false, "log to stdout (default)")
	pf.StringVarP(&g.logFile, "file", "f", "", "append log lines to this file")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVar(&g.registry, "registry", "", "service registry: etcd (the memory registry only lives inside one process)")
	pf.StringVar(&g.service, "service", "", "service name in the registry")
	pf.StringSliceVar(&g.etcdEndpoints, "etcd-endpoints", nil, "etcd endpoints")
}

// env is everything a command needs before it opens a socket.
type env struct {
	cfg     *config.Config
	logger  logging.Logger
	closers []io.Closer
}

// setup merges the config file and the flags, then opens the log sink.
// Flags win over the file.
func (g *globalFlags) setup(cmd *cobra.Command) (*env, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.Log.File = g.logFile
	}
	if flags.Changed("stdout") && g.stdout {
		cfg.Log.File = ""
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = g.metricsAddr
	}
	if flags.Changed("registry") {
		cfg.Registry.Type = g.registry
	}
	if flags.Changed("service") {
		cfg.Registry.Service = g.service
	}
	if flags.Changed("etcd-endpoints") {
		cfg.Registry.Etcd.Endpoints = g.etcdEndpoints
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Registry.Type == "memory" {
		return nil, errMemoryRegistry
	}

	e := &env{cfg: cfg}
	if cfg.Log.File == "" {
		e.logger = logging.New(cmd.OutOrStdout())
		return e, nil
	}

	logger, closer, err := logging.Open(logging.Sink{File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	e.logger = logger
	e.closers = append(e.closers, closer)
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
	e.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// serveMetrics exposes the default Prometheus registry when an address is
// configured. The listener is bound before returning so a busy port fails
// the command.
func (e *env) serveMetrics() error {
	if e.cfg.Metrics.Address == "" {
		return nil
	}

	addr, shutdown, err := startMetrics(e.cfg.Metrics.Address, e.logger)
	if err != nil {
		return err
	}
	e.logger.Infof("Metrics are served at http://%s/metrics.", addr)
	e.closers = append(e.closers, closerFunc(shutdown))
	return nil
}

func startMetrics(address string, logger logging.Logger) (net.Addr, func() error, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return ln.Addr(), shutdown, nil
}

func (e *env) serverInterceptors() []interceptor.Interceptor {
	ic := e.cfg.Server.Interceptors
	list := []interceptor.Interceptor{interceptor.Metrics()}

	if ic.Logging {
		list = append(list, interceptor.Logging(e.logger))
	}

	rl := ic.RateLimit
	if rl.Enabled {
		factory := func() ratelimiter.RateLimiter {
			if rl.Window.Duration > 0 {
				return ratelimiter.NewSlidingWindowLimiter(rl.Rate, rl.Window.Duration)
			}
			return ratelimiter.NewTokenBucketLimiter(rl.Rate, rl.Burst)
		}

		if rl.PerPeer {
			list = append(list, interceptor.RateLimitPerPeer(ratelimiter.NewKeyed(factory, maxRateLimitPeers)))
		} else {
			list = append(list, interceptor.RateLimit(factory()))
		}
	}

	return list
}

func (e *env) clientInterceptors() []interceptor.Interceptor {
	list := []interceptor.Interceptor{interceptor.Metrics()}
	if e.cfg.Client.Interceptors.Logging {
		list = append(list, interceptor.Logging(e.logger))
	}
	return list
}

func (e *env) etcdConfig() *etcd.Config {
	rc := e.cfg.Registry
	return &etcd.Config{
		Endpoints:   rc.Etcd.Endpoints,
		DialTimeout: rc.Etcd.DialTimeout.Duration,
		KeyPrefix:   rc.Etcd.KeyPrefix,
		LeaseTTL:    rc.Etcd.LeaseTTL,
		Codec:       codec.Get(rc.Codec),
		Logger:      e.logger,
	}
}

// openRegistry returns the configured registry and the heartbeat interval
// the server should use with it.
func (e *env) openRegistry(ctx context.Context) (registry.Registry, time.Duration, error) {
	switch e.cfg.Registry.Type {
	case "etcd":
		reg, err := etcd.NewEtcdRegistry(ctx, e.etcdConfig())
		if err != nil {
			return nil, 0, fmt.Errorf("open etcd registry: %w", err)
		}
		heartbeat := time.Duration(e.cfg.Registry.Etcd.LeaseTTL) * time.Second / 3
		return reg, heartbeat, nil
	default:
		return nil, 0, fmt.Errorf("no registry configured")
	}
}

func (e *env) openDiscovery() (registry.Discovery, error) {
	switch e.cfg.Registry.Type {
	case "etcd":
		d, err := etcd.NewEtcdDiscovery(e.etcdConfig())
		if err != nil {
			return nil, fmt.Errorf("open etcd discovery: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("lookup needs a registry, pass --registry etcd")
	}
}

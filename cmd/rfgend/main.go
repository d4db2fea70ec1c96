package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gobuffalo/packr/v2"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	grpc_middleware "github.com/mwitkow/go-grpc-middleware"
	grpc_opentracing "github.com/mwitkow/go-grpc-middleware/tracing/opentracing"
	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/akhenakh/rfgen"
	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/rfdesign"
	badgerstore "github.com/akhenakh/rfgen/storage/badger"
	"github.com/akhenakh/rfgen/web"
)

const appName = "rfgend"

var (
	version = "no version from LDFLAGS"

	designPath  = flag.String("designPath", "rfdesign.yml", "RF design file")
	devicesPath = flag.String("devicesPath", "", "device databases directory, the embedded databases if empty")
	device      = flag.String("device", "", "device database name, from the design device if empty")

	dbPath = flag.String("dbPath", "rfgen.db", "DB path")

	httpMetricsPort = flag.Int("httpMetricsPort", 8888, "http port")
	httpAPIPort     = flag.Int("httpAPIPort", 9201, "http API port")
	healthPort      = flag.Int("healthPort", 6666, "grpc health port")

	httpServer        *http.Server
	grpcHealthServer  *grpc.Server
	httpMetricsServer *http.Server
)

func main() {
	flag.Parse()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.DefaultCaller, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = level.NewFilter(logger, level.AllowAll())

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	level.Info(logger).Log("msg", "Starting app", "version", version)

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// RF design and device database
	cfg, err := rfdesign.Load(*designPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load RF design", "error", err, "path", *designPath)
		os.Exit(2)
	}

	devName := *device
	if devName == "" {
		devName, err = devinfo.DeviceName(cfg.Device)
		if err != nil {
			level.Error(logger).Log("msg", "can't find device database", "error", err)
			os.Exit(2)
		}
	}

	var src devinfo.Source = devinfo.DirSource(*devicesPath)
	if *devicesPath == "" {
		src = packr.New("rfgen device databases", "../../devices")
	}

	db, err := devinfo.Load(devinfo.SubSource{Source: src, Dir: devName})
	if err != nil {
		level.Error(logger).Log("msg", "failed to load device database", "error", err, "device", devName)
		os.Exit(2)
	}

	gen, err := rfgen.New(appName+" "+version, logger, db, cfg)
	if err != nil {
		level.Error(logger).Log("msg", "can't create generator", "error", err)
		os.Exit(2)
	}

	for _, i := range gen.Validate() {
		level.Warn(logger).Log("msg", "RF design issue", "severity", i.Severity, "field", i.Field, "issue", i.Message)
	}

	// Badger
	opts := badger.DefaultOptions(*dbPath)
	opts.Logger = nil
	opts.TableLoadingMode = options.FileIO

	bdb, err := badger.Open(opts)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open DB", "error", err, "path", *dbPath)
		os.Exit(2)
	}
	defer bdb.Close()

	store := &badgerstore.Store{DB: bdb}

	// gRPC Health Server
	healthServer := health.NewServer()
	g.Go(func() error {
		grpcHealthServer = grpc.NewServer(
			// MaxConnectionAge is just to avoid long connection, to facilitate load balancing
			// MaxConnectionAgeGrace will torn them, default to infinity
			grpc.KeepaliveParams(keepalive.ServerParameters{MaxConnectionAge: 2 * time.Minute}),
			grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
				grpc_opentracing.StreamServerInterceptor(),
				grpc_prometheus.StreamServerInterceptor,
			)),
			grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
				grpc_opentracing.UnaryServerInterceptor(),
				grpc_prometheus.UnaryServerInterceptor,
			)),
		)

		healthpb.RegisterHealthServer(grpcHealthServer, healthServer)
		grpc_prometheus.Register(grpcHealthServer)

		haddr := fmt.Sprintf(":%d", *healthPort)
		hln, err := net.Listen("tcp", haddr)
		if err != nil {
			level.Error(logger).Log("msg", "gRPC Health server: failed to listen", "error", err)
			os.Exit(2)
		}
		level.Info(logger).Log("msg", fmt.Sprintf("gRPC health server serving at %s", haddr))
		return grpcHealthServer.Serve(hln)
	})

	// web server metrics
	g.Go(func() error {
		httpMetricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpMetricsPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP Metrics server serving at :%d", *httpMetricsPort))

		// Register Prometheus metrics handler.
		http.Handle("/metrics", promhttp.Handler())

		if err := httpMetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	// web server
	g.Go(func() error {
		s := web.NewServer(appName, logger, gen, store)

		httpServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", *httpAPIPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      s.Handler(),
		}
		level.Info(logger).Log("msg", fmt.Sprintf("HTTP API server serving at :%d", *httpAPIPort))

		healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_SERVING)

		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	select {
	case <-interrupt:
		cancel()
		break
	case <-ctx.Done():
		break
	}

	level.Warn(logger).Log("msg", "received shutdown signal")

	healthServer.SetServingStatus(fmt.Sprintf("grpc.health.v1.%s", appName), healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpMetricsServer != nil {
		_ = httpMetricsServer.Shutdown(shutdownCtx)
	}

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if grpcHealthServer != nil {
		grpcHealthServer.GracefulStop()
	}

	err = g.Wait()
	if err != nil {
		level.Error(logger).Log("msg", "server returning an error", "error", err)
		os.Exit(2)
	}
}

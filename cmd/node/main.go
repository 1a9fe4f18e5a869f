package main

import (
	"minhton/internal/algorithm"
	"minhton/internal/bootstrap/register"
	"minhton/internal/config"
	"minhton/internal/domain"
	"minhton/internal/entitysearch"
	"minhton/internal/logger"
	zapfactory "minhton/internal/logger/zap"
	"minhton/internal/participant"
	"minhton/internal/telemetry"
	"context"
	"encoding/hex"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Node.Bind, strconv.Itoa(cfg.Node.Port)))
	if err != nil {
		lgr.Error("failed to initialize listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()
	tcpAddr := lis.Addr().(*net.TCPAddr)
	advertisedHost := cfg.Node.Host
	if advertisedHost == "" {
		advertisedHost = tcpAddr.IP.String()
	}
	lgr.Debug("created listener", logger.F("addr", lis.Addr().String()))

	generator := domain.NewRandomGenerator()
	self := domain.NodeInfo{ID: generator.NewUUID()}
	if cfg.Node.Id != "" {
		if raw, err := hex.DecodeString(cfg.Node.Id); err == nil && len(raw) == len(self.ID) {
			copy(self.ID[:], raw)
		} else {
			lgr.Warn("invalid node.id in configuration, generated a new one", logger.F("id", cfg.Node.Id))
		}
	}
	advertisedAddr, err := domain.NetworkInfoFromString(net.JoinHostPort(advertisedHost, strconv.Itoa(tcpAddr.Port)))
	if err != nil {
		lgr.Error("failed to resolve advertised address", logger.F("err", err))
		os.Exit(1)
	}
	self.Network = advertisedAddr
	lgr = lgr.Named("node")
	lgr.Info("new participant initializing", logger.F("id", self.ID.String()))

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "minhton-node", self.ID)
	defer func() { _ = shutdownTracer(context.Background()) }()

	searchExact := &algorithm.SearchExact{}
	set := algorithm.Set{
		Join:         algorithm.Join{},
		Leave:        algorithm.Leave{},
		SearchExact:  searchExact,
		Bootstrap:    algorithm.Bootstrap{},
		Response:     algorithm.Response{},
		EntitySearch: entitysearch.EntitySearch{},
	}
	searchExact.Set = &set

	p, err := participant.New(participant.Config{
		Self:           self,
		Fanout:         cfg.Overlay.Fanout,
		Listener:       lis,
		BootstrapGroup: cfg.Bootstrap.Group,
		DSNLevel:       cfg.Overlay.DSNLevel,
		Generator:      generator,
		Logger:         lgr,
	}, set)
	if err != nil {
		lgr.Error("failed to initialize participant", logger.F("err", err))
		os.Exit(1)
	}

	var registrar register.Registrar
	if cfg.Bootstrap.Register.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		registrar, err = register.NewRegistrar(ctx, cfg.Bootstrap.Register)
		cancel()
		if err != nil {
			lgr.Warn("failed to initialize registrar, continuing unregistered", logger.F("err", err))
			registrar = nil
		}
	}
	if registrar != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := registrar.RegisterNode(ctx, self.ID.String(), advertisedHost, tcpAddr.Port)
		cancel()
		if err != nil {
			lgr.Warn("failed to register node in directory", logger.F("err", err))
		} else {
			lgr.Info("node registered in external directory")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := registrar.DeregisterNode(ctx, self.ID.String(), advertisedHost, tcpAddr.Port); err != nil {
				lgr.Warn("failed to deregister node", logger.F("err", err))
			}
			_ = registrar.Close()
		}()
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(runCtx) }()

	<-runCtx.Done()
	lgr.Info("shutdown signal received, leaving overlay gracefully")

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	p.InitiateLeave(leaveCtx)
	leaveCancel()

	select {
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			lgr.Warn("participant loop exited", logger.F("err", err))
		}
	case <-time.After(5 * time.Second):
		lgr.Warn("participant loop did not exit in time")
	}
}

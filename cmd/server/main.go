package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"matchbook/api/grpcserver"
	pb "matchbook/api/pb"
	"matchbook/config"
	"matchbook/infra/kafka"
	"matchbook/infra/logging"
	"matchbook/infra/sequence"
	entrywal "matchbook/infra/wal/entry"
	exitwal "matchbook/infra/wal/exit"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/marketdata"
	"matchbook/service"
	"matchbook/snapshot"
)

func main() {
	path := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---------------- WALs ----------------

	journal, err := entrywal.Open(cfg.EntryWAL)
	if err != nil {
		return fmt.Errorf("entry WAL: %w", err)
	}
	defer closeWith(log, "entry WAL", journal.Close)

	outbox, err := exitwal.Open(cfg.Outbox)
	if err != nil {
		return fmt.Errorf("exit WAL: %w", err)
	}
	defer closeWith(log, "exit WAL", outbox.Close)

	// ---------------- Engine ----------------

	engine := service.NewEngine(service.Config{
		QueueSize:      cfg.Engine.QueueSize,
		RetireRingSize: cfg.Engine.RetireRingSize,
		EventChains:    cfg.Engine.EventChains,
		EventChainLen:  cfg.Engine.EventChainLen,
		Pools:          cfg.Pools,
	}, sequence.New(0), journal, outbox, log)

	// ---------------- Recovery ----------------

	snap, err := snapshot.LoadLatest(cfg.Snapshot.Dir)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := engine.RestoreSnapshot(snap); err != nil {
			return err
		}
	}
	for _, spec := range cfg.Symbols {
		if engine.Book(spec.SymbolID) != nil {
			continue
		}
		if err := engine.AddSymbol(spec); err != nil {
			return err
		}
	}
	replayed, err := service.ReplayFromWAL(cfg.EntryWAL.Dir, engine)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	log.Info("recovered",
		zap.Int("replayed", replayed),
		zap.Uint64("seq", engine.Sequencer().Current()))

	engine.Start()
	defer closeWith(log, "engine", engine.Close)

	if err := engine.Validate(ctx); err != nil {
		return fmt.Errorf("recovered state: %w", err)
	}

	// ---------------- Background Jobs ----------------

	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	var (
		jobs    sync.WaitGroup
		closers []func()
	)
	// jobs stop before their producers close; both happen before the engine
	// and the WALs close
	defer func() {
		cancelJobs()
		jobs.Wait()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	startJob := func(run func(context.Context)) {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			run(jobsCtx)
		}()
	}

	if cfg.Snapshot.Interval > 0 {
		w := &snapshot.Writer{Dir: cfg.Snapshot.Dir, Keep: cfg.Snapshot.Keep}
		startJob(func(ctx context.Context) {
			<-engine.StartSnapshotJob(ctx, w, cfg.Snapshot.Interval)
		})
	}

	if cfg.Kafka.Enabled {
		producer, err := broadcaster.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		bc := broadcaster.New(outbox, producer, cfg.Kafka.EventsTopic, cfg.Kafka.PollInterval, log)
		closers = append(closers, func() { closeWith(log, "broadcaster", bc.Close) })
		startJob(bc.Run)

		md := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MarketDataTopic)
		closers = append(closers, func() { closeWith(log, "market data producer", md.Close) })
		pub := marketdata.New(marketdata.Config{
			Interval:      cfg.Kafka.MarketDataInterval,
			Depth:         cfg.Kafka.MarketDataDepth,
			PriceDecimals: cfg.Kafka.PriceDecimals,
			SizeDecimals:  cfg.Kafka.SizeDecimals,
		}, engine, md, log)
		startJob(pub.Run)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	grpcSrv := grpc.NewServer()
	pb.RegisterOrderServiceServer(grpcSrv, grpcserver.NewServer(engine, log))

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcSrv.Serve(lis) }()
	log.Info("matchbook running", zap.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		grpcSrv.GracefulStop()
		return nil
	case err := <-serveErr:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("gRPC server: %w", err)
	}
}

func closeWith(log *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		log.Error("close failed", zap.String("component", what), zap.Error(err))
	}
}

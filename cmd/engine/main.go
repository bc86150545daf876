package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"apexlob/config"
	"apexlob/domain/book"
	alphasignal "apexlob/domain/signal"
	"apexlob/infra/feed"
	"apexlob/infra/journal"
	"apexlob/infra/kafka"
	"apexlob/infra/memory"
	"apexlob/infra/outbox"
	"apexlob/infra/sequence"
	"apexlob/jobs/broadcaster"
	"apexlob/jobs/renderer"
	"apexlob/jobs/telemetry"
	"apexlob/service"
)

func main() {
	cfg := config.MustLoad()

	logger := newLogger(cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Trade journal ----------------

	tape, err := journal.Open(journal.Config{
		Dir:         cfg.JournalDir,
		SegmentSize: cfg.JournalSegmentSize,
	})
	if err != nil {
		log.Fatalf("journal init failed: %v", err)
	}
	defer tape.Close()

	// ---------------- Fill outbox ----------------

	ob, err := outbox.Open(cfg.OutboxDir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer ob.Close()

	// ---------------- Sequencer ----------------

	seqGen := sequence.New(0)

	// ---------------- Memory ----------------

	pool := memory.NewPool(func() *book.Order {
		return &book.Order{}
	})
	ring := memory.NewRetireRing(1 << 18)
	reader := memory.NewReaderEpoch()

	// ---------------- Domain ----------------

	lob := book.NewOrderBook()

	// ---------------- Service ----------------

	svc := service.NewIngestService(
		lob,
		pool,
		ring,
		reader,
		seqGen,
		tape,
		ob,
		logger,
	)

	// ---------------- Background jobs ----------------

	go func() {
		ticker := time.NewTicker(cfg.EpochInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.AdvanceEpoch()
			}
		}
	}()

	gen := alphasignal.NewGenerator()
	rend := renderer.New(svc, gen, cfg.RenderInterval, os.Stdout)
	go rend.Run(ctx)

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(
			ob,
			cfg.Kafka.Brokers,
			cfg.Kafka.FillsTopic,
			cfg.Kafka.BroadcastInterval,
			logger,
		)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		go bc.Run(ctx)

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TelemetryTopic)
		defer producer.Close()
		go telemetry.New(svc, producer, cfg.Kafka.TelemetryInterval, cfg.DepthLevels, logger).Run(ctx)
	}

	// ---------------- Market data feed ----------------

	stream := feed.New(cfg.Symbol, logger)
	go stream.Run(ctx)

	logger.Info("engine running",
		zap.String("symbol", cfg.Symbol),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	svc.Run(ctx, stream.Events())

	logger.Info("engine stopped")
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	return logger
}

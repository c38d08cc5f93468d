package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	domrepo "FxPilot/internal/domain/repository"
	"FxPilot/internal/feed"
	"FxPilot/internal/handler/api"
	internalrepo "FxPilot/internal/repository"
	"FxPilot/internal/scoring"
	icache "FxPilot/internal/service/cache"
	"FxPilot/internal/service/metrics"
	"FxPilot/internal/service/rates"
	"FxPilot/internal/trading"
	"FxPilot/internal/usecase"
	pkgch "FxPilot/pkg/clickhouse"
	"FxPilot/pkg/config"
	xhttp "FxPilot/pkg/http"
	pkgkafka "FxPilot/pkg/kafka"
	applogger "FxPilot/pkg/logger"
	"FxPilot/pkg/server"
)

// ProvideLogger builds the application logger from config, with sane
// console defaults.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.NewRecorder()
}

// ProvideCache selects Redis when configured, an in-process TTL cache
// otherwise.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideFeedStore creates the CSV market-data store.
func ProvideFeedStore(cfg *config.Config, l *applogger.Logger) *feed.Store {
	newsFile := cfg.Data.NewsFile
	if newsFile == "" {
		newsFile = filepath.Join(cfg.Data.Dir, "news.csv")
	}
	return feed.NewStore(cfg.Data.Dir, newsFile, cfg.Data.Pairs, l)
}

// ProvideRefresher creates the upstream data refresher.
func ProvideRefresher(cfg *config.Config, store *feed.Store, l *applogger.Logger) *feed.Refresher {
	timeout := cfg.Refresh.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return feed.NewRefresher(store, cfg.Refresh.RatesURL, cfg.Refresh.BondsURL, cfg.Refresh.NewsURL, timeout, l)
}

// ProvideScorerRegistry loads one ONNX classifier per configured pair.
func ProvideScorerRegistry(cfg *config.Config, l *applogger.Logger) (*scoring.Registry, error) {
	return scoring.NewRegistry(cfg.Data.ModelDir, cfg.Data.OnnxLib, cfg.Data.Pairs, l)
}

// ProvideStateStore creates the JSON portfolio state store.
func ProvideStateStore(cfg *config.Config, l *applogger.Logger) domrepo.StateStore {
	return internalrepo.NewFileStateStore(cfg.Trading.StateFile, l)
}

// ProvideTradeLog creates the append-only CSV trade log.
func ProvideTradeLog(cfg *config.Config) domrepo.TradeLog {
	return internalrepo.NewCSVTradeLog(cfg.Trading.TradeLogFile)
}

// ProvideTradePublisher creates the Kafka trade publisher, or nil when
// Kafka is disabled.
func ProvideTradePublisher(cfg *config.Config) (domrepo.TradePublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideTradeArchive creates the ClickHouse trade archive with its schema,
// or nil when ClickHouse is disabled.
func ProvideTradeArchive(cfg *config.Config) (domrepo.TradeArchive, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	table := cfg.ClickHouse.Table
	if table == "" {
		table = "trades"
	}
	archive := internalrepo.NewClickHouseTradeArchive(client, cfg.ClickHouse.Database+"."+table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvideQuoteStream creates the live quote stream, or nil when disabled.
func ProvideQuoteStream(cfg *config.Config, l *applogger.Logger) domrepo.QuoteStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	symbols := make([]string, 0, len(cfg.Data.Pairs))
	for _, p := range cfg.Data.Pairs {
		symbols = append(symbols, "OANDA:"+p)
	}
	reconnect := cfg.Stream.ReconnectDelay
	if reconnect == 0 {
		reconnect = 5 * time.Second
	}
	ping := cfg.Stream.PingInterval
	if ping == 0 {
		ping = 20 * time.Second
	}
	return rates.New(cfg.Stream.APIKey, cfg.Stream.URL, symbols, reconnect, ping, l)
}

// ProvideEngine loads or seeds the portfolio and builds the trading engine.
func ProvideEngine(
	cfg *config.Config,
	store domrepo.StateStore,
	tradeLog domrepo.TradeLog,
	pub domrepo.TradePublisher,
	archive domrepo.TradeArchive,
	m domrepo.Metrics,
	l *applogger.Logger,
) (*trading.Engine, error) {
	return trading.NewEngine(cfg.Data.Pairs, store, tradeLog, pub, archive, m, l)
}

// ProvidePipeline assembles the walk-forward pipeline.
func ProvidePipeline(
	store *feed.Store,
	refresher *feed.Refresher,
	registry *scoring.Registry,
	engine *trading.Engine,
	m domrepo.Metrics,
	stream domrepo.QuoteStream,
	l *applogger.Logger,
) (*usecase.Pipeline, error) {
	return usecase.NewPipeline(store, refresher, registry, engine, m, stream, l)
}

// ProvideScheduler creates the daily auto-trade scheduler.
func ProvideScheduler(pipeline *usecase.Pipeline, l *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(pipeline, l)
}

// ProvideRouter bundles the API handlers.
func ProvideRouter(cfg *config.Config, l *applogger.Logger, pipeline *usecase.Pipeline, cache icache.BytesCache) xhttp.Handler {
	ttl := cfg.Cache.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return api.NewRouter(
		api.NewPredictionHandler(l, pipeline, cache, ttl),
		api.NewTradingHandler(l, pipeline),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	scheduler *usecase.Scheduler,
	handler xhttp.Handler,
	registry *scoring.Registry,
	pub domrepo.TradePublisher,
	archive domrepo.TradeArchive,
) *server.App {
	return server.New(cfg, l, pipeline, scheduler, handler, registry, pub, archive)
}

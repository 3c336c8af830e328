package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/CodeBlackwell/FSQ-OSM/config"
	candidatepairrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/candidatepair"
	featuretuplerepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/featuretuple"
	matchdecisionrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/matchdecision"
	mergedpoirepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/mergedpoi"
	rawpoirepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/rawpoi"
	runrepo "github.com/CodeBlackwell/FSQ-OSM/internal/repositories/run"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/database"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/embedding"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/events"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/graph"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/kafka"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/merging"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/middleware"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/models"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/pipeline"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/processor"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/routes/health"
	poiroutes "github.com/CodeBlackwell/FSQ-OSM/pkg/routes/poi"
	runroutes "github.com/CodeBlackwell/FSQ-OSM/pkg/routes/run"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/scoring"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing"
	"github.com/CodeBlackwell/FSQ-OSM/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind environment: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineCfg, err := pipelineConfig(cfg)
	if err != nil {
		return err
	}

	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracer provider")
		}
	}()

	db, err := connectDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDatabase(cfg, logger, db); err != nil {
		return err
	}

	dbInstance := database.NewDatabaseInstance(db, logger)

	runRepo := runrepo.NewRepository(dbInstance, logger)
	rawRepo := rawpoirepo.NewRepository(dbInstance, logger)
	featureRepo := featuretuplerepo.NewRepository(dbInstance, logger)
	pairRepo := candidatepairrepo.NewRepository(dbInstance, logger)
	decisionRepo := matchdecisionrepo.NewRepository(dbInstance, logger)
	mergedRepo := mergedpoirepo.NewRepository(dbInstance, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Kafka producer")
		}
	}()
	emitter := events.NewEmitter(producer, logger)

	var poiGraph *graph.POIService
	if cfg.GraphDBEnabled {
		graphClient, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := graphClient.Close(closeCtx); err != nil {
				logger.WithError(err).Warn("Failed to close graph client")
			}
		}()
		poiGraph = graph.NewPOIService(graphClient, logger)
	}

	var encoder embedding.Encoder
	if cfg.EmbeddingURL != "" {
		encoder = embedding.NewClient(embedding.Config{
			URL:         cfg.EmbeddingURL,
			Model:       cfg.EmbeddingModel,
			BatchSize:   cfg.EmbeddingBatchSize,
			MaxAttempts: cfg.EmbeddingMaxAttempts,
			Timeout:     time.Duration(cfg.EmbeddingTimeoutSecs) * time.Second,
		}, logger)
	} else {
		logger.Warn("EMBEDDING_URL not set, using deterministic hash embeddings")
		encoder = embedding.NewHashEncoder(256)
	}

	engine := pipeline.NewEngine(logger, encoder)
	proc := processor.NewProcessor(logger, engine, pipelineCfg,
		runRepo, rawRepo, featureRepo, pairRepo, decisionRepo, mergedRepo,
		emitter, poiGraph)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(cfg, logger, proc.HandleIngest)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("Failed to stop Kafka consumer")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	var consumerCheck interface{ Health() bool }
	if consumer != nil {
		consumerCheck = consumer
	}
	checker := health.NewChecker(db, consumerCheck, cfg.AppVersion)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	runroutes.NewHandler(logger, runRepo, proc).Register(api)
	poiroutes.NewHandler(logger, mergedRepo).Register(api)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]any{"port": cfg.Port}).Info("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newLogger builds the service logger. Messages are emitted as one JSON
// object per line.
func newLogger(cfg config.Config) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		var encoded []byte
		var err error
		if cfg.PrettyLogs {
			encoded, err = json.MarshalIndent(msg, "", "  ")
		} else {
			encoded, err = json.Marshal(msg)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode log message: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stdout, string(encoded))
	})
}

// pipelineConfig maps the flat environment configuration onto the run
// configuration and validates it once at startup.
func pipelineConfig(cfg config.Config) (pipeline.Config, error) {
	pc := pipeline.Config{
		DistanceThresholdM: cfg.DistanceThresholdM,
		MatchThreshold:     cfg.MatchThreshold,
		Weights: scoring.Weights{
			Spatial:  cfg.SpatialWeight,
			Lexical:  cfg.LexicalWeight,
			Semantic: cfg.SemanticWeight,
			Category: cfg.CategoryWeight,
			Phone:    cfg.PhoneWeight,
		},
		CategoryPartial: cfg.CategoryPartial,
		Merge: merging.Config{
			NameSource:     models.Source(cfg.NameSource),
			PositionSource: models.Source(cfg.PositionSource),
			PrioritySource: models.Source(cfg.PrioritySource),
		},
		Workers: cfg.PipelineWorkers,
	}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}

func connectDatabase(cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)

	var db *sqlx.DB
	var err error
	attempts := cfg.DatabaseReconnectRetryCount
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = sqlx.Connect(cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}
		logger.WithError(err).WithFields(map[string]any{"attempt": attempt}).Warn("Failed to connect to database")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	return db, nil
}

func migrateDatabase(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

// initTracing wires the OTLP exporter when enabled; otherwise spans go to
// a no-op exporter.
func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if cfg.TracingEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OtelExporterEndpoint,
			Protocol: cfg.OtelExporterProtocol,
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlp
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	return tp.Shutdown, nil
}

package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"poi-reconciler"`
	AppVersion                    string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (run and artifact storage)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"poireconciler"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Tracing
	TracingEnabled       bool   `env:"TRACING_ENABLED" env-default:"false"`
	OtelExporterEndpoint string `env:"OTEL_EXPORTER_ENDPOINT" env-default:"localhost:4317"`
	OtelExporterProtocol string `env:"OTEL_EXPORTER_PROTOCOL" env-default:"grpc"`

	// Graph Database (merged POI projection)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"false"`

	// Kafka Consumer (raw POI ingestion)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"raw-pois"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"poi-reconciler-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer settings (run lifecycle events)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"reconciliation-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Embedding service
	EmbeddingURL         string `env:"EMBEDDING_URL" env-default:""`
	EmbeddingModel       string `env:"EMBEDDING_MODEL" env-default:"all-MiniLM-L6-v2"`
	EmbeddingBatchSize   int    `env:"EMBEDDING_BATCH_SIZE" env-default:"64"`
	EmbeddingMaxAttempts int    `env:"EMBEDDING_MAX_ATTEMPTS" env-default:"3"`
	EmbeddingTimeoutSecs int    `env:"EMBEDDING_TIMEOUT_SECONDS" env-default:"30"`

	// Matching
	DistanceThresholdM float64 `env:"DISTANCE_THRESHOLD_M" env-default:"25"`
	MatchThreshold     float64 `env:"MATCH_THRESHOLD" env-default:"0.65"`
	SpatialWeight      float64 `env:"SPATIAL_WEIGHT" env-default:"0.30"`
	LexicalWeight      float64 `env:"LEXICAL_WEIGHT" env-default:"0.25"`
	SemanticWeight     float64 `env:"SEMANTIC_WEIGHT" env-default:"0.30"`
	CategoryWeight     float64 `env:"CATEGORY_WEIGHT" env-default:"0.10"`
	PhoneWeight        float64 `env:"PHONE_WEIGHT" env-default:"0.05"`
	CategoryPartial    float64 `env:"CATEGORY_PARTIAL" env-default:"0.5"`
	PipelineWorkers    int     `env:"PIPELINE_WORKERS" env-default:"4"`

	// Merge source priorities
	NameSource     string `env:"MERGE_NAME_SOURCE" env-default:"osm"`
	PositionSource string `env:"MERGE_POSITION_SOURCE" env-default:"fsq"`
	PrioritySource string `env:"MERGE_PRIORITY_SOURCE" env-default:"fsq"`
}

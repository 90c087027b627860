package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Detection   DetectionConfig
	Response    ResponseConfig
	Scheduler   SchedulerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL              string
	IngestExchange   string
	IngestQueue      string
	IngestRoutingKey string
	AlertExchange    string
	AlertRoutingKey  string
	DLQQueue         string
	PrefetchCount    int
}

// DetectionConfig holds tamper detection settings
type DetectionConfig struct {
	// Confidence scores below this cutoff are dropped as likely false
	// positives. Deployment-wide, not per installation.
	FalsePositiveCutoff float64
	// Number of lock/cache stripes for per-installation serialization.
	StripeCount int
}

// ResponseConfig holds automatic response dispatch settings
type ResponseConfig struct {
	QueueSize   int
	WorkerCount int
}

// SchedulerConfig holds background sweep settings
type SchedulerConfig struct {
	EscalationIntervalMinutes     int
	EscalationAgeMinutes          int
	ReconciliationIntervalMinutes int
	DiagnosticsIntervalMinutes    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "tamper-detection-worker"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			IngestExchange:   getEnv("RABBITMQ_INGEST_EXCHANGE", "tamper-detection.ingest.exchange"),
			IngestQueue:      getEnv("RABBITMQ_INGEST_QUEUE", "tamper-detection.ingest.queue"),
			IngestRoutingKey: getEnv("RABBITMQ_INGEST_ROUTING_KEY", "sensor.reading.raw"),
			AlertExchange:    getEnv("RABBITMQ_ALERT_EXCHANGE", "tamper-detection.alerts.exchange"),
			AlertRoutingKey:  getEnv("RABBITMQ_ALERT_ROUTING_KEY", "tamper.alert"),
			DLQQueue:         getEnv("RABBITMQ_DLQ_QUEUE", "tamper-detection.ingest.dlq"),
			PrefetchCount:    getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Detection: DetectionConfig{
			FalsePositiveCutoff: getEnvAsFloat("DETECTION_FALSE_POSITIVE_CUTOFF", 0.3),
			StripeCount:         getEnvAsInt("DETECTION_STRIPE_COUNT", 64),
		},
		Response: ResponseConfig{
			QueueSize:   getEnvAsInt("RESPONSE_QUEUE_SIZE", 256),
			WorkerCount: getEnvAsInt("RESPONSE_WORKER_COUNT", 4),
		},
		Scheduler: SchedulerConfig{
			EscalationIntervalMinutes:     getEnvAsInt("SCHEDULER_ESCALATION_INTERVAL_MINUTES", 240),
			EscalationAgeMinutes:          getEnvAsInt("SCHEDULER_ESCALATION_AGE_MINUTES", 240),
			ReconciliationIntervalMinutes: getEnvAsInt("SCHEDULER_RECONCILIATION_INTERVAL_MINUTES", 60),
			DiagnosticsIntervalMinutes:    getEnvAsInt("SCHEDULER_DIAGNOSTICS_INTERVAL_MINUTES", 1440),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if cfg.Detection.FalsePositiveCutoff < 0 || cfg.Detection.FalsePositiveCutoff > 1 {
		return nil, fmt.Errorf("DETECTION_FALSE_POSITIVE_CUTOFF must be within [0,1], got %v", cfg.Detection.FalsePositiveCutoff)
	}
	if cfg.Detection.StripeCount <= 0 {
		cfg.Detection.StripeCount = 64
	}
	if cfg.Response.QueueSize <= 0 {
		cfg.Response.QueueSize = 256
	}
	if cfg.Response.WorkerCount <= 0 {
		cfg.Response.WorkerCount = 4
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

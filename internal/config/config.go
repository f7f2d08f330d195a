package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/mmaneta/eki-lpr-update/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	PrecipFile     string
	ETFile         string
	FieldKeyFile   string
	AgreementsFile string
	OutputDir      string

	Soil    domain.SoilParams
	Workers int

	// OpenET dataset retrieval.
	OpenETAPIKey  string
	OpenETBaseURL string
	OpenETTimeout time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Statement publishing.
	KafkaEnabled        bool
	KafkaBrokers        []string
	KafkaStatementTopic string
	BatchSize           int
	BatchFlushInterval  time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	openetTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("OPENET_TIMEOUT", "60s"))
	if err != nil || openetTimeout <= 0 {
		return nil, errors.New("invalid OPENET_TIMEOUT")
	}

	capacity, err := parseFloat("SOIL_STORAGE_CAPACITY", domain.DefaultSoilStorageCapacity)
	if err != nil {
		return nil, err
	}
	runoff, err := parseFloat("RUNOFF_FRACTION", 0)
	if err != nil {
		return nil, err
	}
	initial, err := parseFloat("INITIAL_SOIL_STORAGE", 0)
	if err != nil {
		return nil, err
	}

	workers, err := strconv.Atoi(sharedcfg.EnvOrDefault("WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, errors.New("invalid WORKERS: must be a positive integer")
	}

	cfg := &Config{
		PrecipFile:     sharedcfg.EnvOrDefault("LRP_PRECIP_FILE", "data/Year1_enrolled_repurposed_pr.csv"),
		ETFile:         sharedcfg.EnvOrDefault("LRP_ET_FILE", "data/Year1_enrolled_repurposed_ET.csv"),
		FieldKeyFile:   sharedcfg.EnvOrDefault("LRP_FIELD_KEY_FILE", "data/EKIfld_IDs_key.csv"),
		AgreementsFile: sharedcfg.EnvOrDefault("LRP_AGREEMENTS_FILE", "data/agreements.yaml"),
		OutputDir:      sharedcfg.EnvOrDefault("LRP_OUTPUT_DIR", "data/output"),

		Soil: domain.SoilParams{
			Capacity:       capacity,
			RunoffFraction: runoff,
			InitialStorage: initial,
		},
		Workers: workers,

		OpenETAPIKey:  os.Getenv("OPENET_API_KEY"),
		OpenETBaseURL: sharedcfg.EnvOrDefault("OPENET_BASE_URL", "https://openet-api.org"),
		OpenETTimeout: openetTimeout,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:        os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaStatementTopic: sharedcfg.EnvOrDefault("KAFKA_STATEMENT_TOPIC", "lrp-statements"),
		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
	}

	if err := cfg.Soil.Validate(); err != nil {
		return nil, fmt.Errorf("invalid soil parameters: %w", err)
	}
	if cfg.PrecipFile == "" || cfg.ETFile == "" {
		return nil, errors.New("LRP_PRECIP_FILE and LRP_ET_FILE are required")
	}
	if cfg.FieldKeyFile == "" {
		return nil, errors.New("LRP_FIELD_KEY_FILE is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaStatementTopic == "" {
			return nil, errors.New("KAFKA_STATEMENT_TOPIC is required")
		}
	}

	return cfg, nil
}

// DatasetTags parses and cross-checks the precipitation and ET file names.
func (c *Config) DatasetTags() (precip, et domain.DatasetTag, err error) {
	precip, err = domain.ParseDatasetName(c.PrecipFile)
	if err != nil {
		return precip, et, err
	}
	et, err = domain.ParseDatasetName(c.ETFile)
	if err != nil {
		return precip, et, err
	}
	return precip, et, domain.CheckCompatible(precip, et)
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

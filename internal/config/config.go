package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"configs/config.yml",
	"configs/config.yaml",
	"config.yml",
	"config.yaml",
}

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Training TrainingConfig `koanf:"training"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Seed     SeedConfig     `koanf:"seed"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Mode            string        `koanf:"mode" validate:"oneof=debug release test"`
	RedirectURL     string        `koanf:"redirect_url"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// BootstrapOnStart loads or trains the model before the listener opens.
	BootstrapOnStart bool `koanf:"bootstrap_on_start"`
}

// DatabaseConfig describes the questionnaire source store.
type DatabaseConfig struct {
	Driver      string `koanf:"driver" validate:"oneof=mysql postgres sqlite"`
	Host        string `koanf:"host" validate:"required_unless=Driver sqlite"`
	Port        int    `koanf:"port" validate:"min=0,max=65535"`
	Name        string `koanf:"name" validate:"required_unless=Driver sqlite"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	SSLDisabled bool   `koanf:"ssl_disabled"`
	// Path is the database file for the sqlite driver.
	Path string `koanf:"path" validate:"required_if=Driver sqlite"`

	ResponsesTable       string `koanf:"responses_table" validate:"required"`
	RecommendationsTable string `koanf:"recommendations_table" validate:"required"`
	QuestionsTable       string `koanf:"questions_table" validate:"required"`
	// OrderColumn makes "first answer" and "first label" deterministic.
	OrderColumn string `koanf:"order_column" validate:"required"`

	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	DataPath  string `koanf:"data_path" validate:"required"`
	ModelPath string `koanf:"model_path" validate:"required"`
}

type TrainingConfig struct {
	MinRows       int      `koanf:"min_rows" validate:"min=1"`
	LabelColumn   string   `koanf:"label_column" validate:"required"`
	AnswerColumns []string `koanf:"answer_columns" validate:"min=1,dive,required"`

	Trees               int     `koanf:"trees" validate:"min=1"`
	MaxDepth            int     `koanf:"max_depth" validate:"min=0"`
	MinSamplesSplit     int     `koanf:"min_samples_split" validate:"min=2"`
	MinSamplesLeaf      int     `koanf:"min_samples_leaf" validate:"min=1"`
	MaxFeatures         int     `koanf:"max_features" validate:"min=0"` // 0 uses sqrt(p)
	Bootstrap           bool    `koanf:"bootstrap"`
	Criterion           string  `koanf:"criterion" validate:"oneof=gini entropy"`
	MinImpurityDecrease float64 `koanf:"min_impurity_decrease" validate:"min=0"`
	RandomState         int64   `koanf:"random_state"`
	// Workers bounds concurrent tree fitting; 0 uses GOMAXPROCS.
	Workers             int     `koanf:"workers" validate:"min=0"`
}

type SecurityConfig struct {
	// JWTSecret enables the bearer guard on /retrain when non-empty.
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// SeedConfig drives the synthetic questionnaire generator.
type SeedConfig struct {
	Students    int   `koanf:"students" validate:"min=1"`
	NumOptions  int   `koanf:"num_options" validate:"min=1,max=30"`
	TechFields  int   `koanf:"tech_fields" validate:"min=1"`
	RandomState int64 `koanf:"random_state"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5001,
			Mode:             "release",
			RedirectURL:      "http://127.0.0.1:8000",
			CORSOrigins:      []string{"http://localhost:8000"},
			ShutdownTimeout:  5 * time.Second,
			BootstrapOnStart: true,
		},
		Database: DatabaseConfig{
			Driver:               "mysql",
			Host:                 "127.0.0.1",
			Port:                 3306,
			Name:                 "ccsuggest",
			User:                 "ccsuggest",
			Password:             "",
			SSLDisabled:          true,
			Path:                 "./data/ccsuggest.db",
			ResponsesTable:       "responses",
			RecommendationsTable: "recommendations",
			QuestionsTable:       "questions",
			OrderColumn:          "id",
			MaxOpenConns:         5,
			ConnMaxLifetime:      5 * time.Minute,
			ConnectTimeout:       10 * time.Second,
		},
		Storage: StorageConfig{
			DataPath:  "data/training_data.csv",
			ModelPath: "data/model.gob",
		},
		Training: TrainingConfig{
			MinRows:         10,
			LabelColumn:     "tech_field_id",
			AnswerColumns:   []string{"answer", "response", "value", "response_value", "answer_text"},
			Trees:           100,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Bootstrap:       true,
			Criterion:       "gini",
			RandomState:     42,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Seed: SeedConfig{
			Students:    800,
			NumOptions:  4,
			TechFields:  11,
			RandomState: 7,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and environment
// variables (highest priority), then validates the result.
// An empty configPath falls back to CONFIG_PATH and DefaultConfigPaths.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitListFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var listFields = []string{
	"server.cors_origins",
	"training.answer_columns",
}

// splitListFields turns comma separated env values into slices.
func splitListFields(k *koanf.Koanf) error {
	for _, path := range listFields {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var out []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"db_driver":       "database.driver",
	"db_host":         "database.host",
	"db_port":         "database.port",
	"db_name":         "database.name",
	"db_user":         "database.user",
	"db_pass":         "database.password",
	"db_ssl_disabled": "database.ssl_disabled",
	"db_path":         "database.path",
	"db_order_column": "database.order_column",

	"http_host":          "server.host",
	"port":               "server.port",
	"gin_mode":           "server.mode",
	"redirect_url":       "server.redirect_url",
	"cors_origins":       "server.cors_origins",
	"bootstrap_on_start": "server.bootstrap_on_start",

	"data_path":  "storage.data_path",
	"model_path": "storage.model_path",

	"min_training_rows": "training.min_rows",
	"label_column":      "training.label_column",
	"answer_columns":    "training.answer_columns",
	"n_estimators":      "training.trees",
	"max_depth":         "training.max_depth",
	"max_features":      "training.max_features",
	"bootstrap":         "training.bootstrap",
	"criterion":         "training.criterion",
	"random_state":      "training.random_state",
	"training_workers":  "training.workers",

	"jwt_secret":    "security.jwt_secret",
	"jwt_token_ttl": "security.token_ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps known environment variables onto config paths and
// drops everything else.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

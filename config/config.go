// Ininicializing common application configuration
package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	AppVersion   string `json:"appVersion"`
	Host         string `json:"host" validate:"required"`
	Port         string `json:"port" validate:"required"`
	Timeout      time.Duration
	Idle_timeout time.Duration
	Env          string `json:"environment"`
	Mode         string `mapstructure:"mode"`
}

type QueueConfig struct {
	Workers         int           `mapstructure:"workers"`
	MaxDepth        int           `mapstructure:"max_depth"`
	ResultTTL       time.Duration `mapstructure:"result_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type PipelineConfig struct {
	PreviewLongEdge int           `mapstructure:"preview_long_edge"`
	MaxDimension    int           `mapstructure:"max_dimension"`
	StepTimeout     time.Duration `mapstructure:"step_timeout"`
	MaxSessions     int           `mapstructure:"max_sessions"`
}

type ExtractorConfig struct {
	PrimaryURL    string        `mapstructure:"primary_url"`
	PrimaryModel  string        `mapstructure:"primary_model"`
	FallbackURL   string        `mapstructure:"fallback_url"`
	FallbackModel string        `mapstructure:"fallback_model"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	Enabled bool   `mapstructure:"enabled"`
}

type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	err := viperInstance.ReadInConfig()

	if err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		log.Fatalf("unable to decode config into struct, %v", err)
		return nil, err
	}
	return &c, nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

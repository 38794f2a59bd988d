package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/Astemirdum/library-circulation/pkg/logger"
	"github.com/Astemirdum/library-circulation/pkg/postgres"
)

type HTTPServer struct {
	Host            string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port            string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"HTTP_SHUTDOWN" default:"5s"`
}

// Retry bounds the whole-transaction retries on lock conflicts. Zero values keep the service defaults.
type Retry struct {
	MaxAttempts int           `yaml:"maxAttempts" envconfig:"RETRY_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"baseDelay" envconfig:"RETRY_BASE_DELAY"`
}

type Config struct {
	Server   HTTPServer  `yaml:"server"`
	Database postgres.DB `yaml:"db"`
	Kafka    kafka.Config
	Log      logger.Log `yaml:"log"`
	Retry    Retry      `yaml:"retry"`
}

var (
	once    sync.Once
	cfg     Config
	loadErr error
)

// NewConfig reads config from environment once, options seed values the environment does not set.
func NewConfig(ops ...Option) (Config, error) {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			loadErr = errors.Wrap(err, "envconfig.Process")
			return
		}
		cfg = config
		printConfig(cfg)
	})
	return cfg, loadErr
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}

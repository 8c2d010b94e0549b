package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jainyogya07/monolith/pkg/forecast"
	"github.com/jainyogya07/monolith/pkg/queue"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Queue     QueueConfig
	Forecast  ForecastConfig
	Telemetry TelemetryConfig
	Events    EventsConfig
}

type ServerConfig struct {
	HTTPPort      int           `mapstructure:"http_port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

type RedisConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type QueueConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	DrainInterval  time.Duration `mapstructure:"drain_interval"`
	HeavyDuration  time.Duration `mapstructure:"heavy_duration"`
	CostUnit       time.Duration `mapstructure:"cost_unit"`
}

type ForecastConfig struct {
	Simulations    int           `mapstructure:"simulations"`
	Horizon        time.Duration `mapstructure:"horizon"`
	SLA            time.Duration `mapstructure:"sla"`
	AvgProcessTime time.Duration `mapstructure:"avg_process_time"`
	ArrivalRate    float64       `mapstructure:"arrival_rate"` // per second
}

type TelemetryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type EventsConfig struct {
	LogDropsPerSecond float64 `mapstructure:"log_drops_per_second"`
	PublishBuffer     int     `mapstructure:"publish_buffer"`
}

var ErrInvalidConfig = errors.New("invalid config")

// Load reads config.yaml from the given directories (defaulting to
// /etc/monolith/ and the working directory) and applies MONOLITH_* overrides.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{"/etc/monolith/", "."}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MONOLITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.block_duration", "300ms")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.cluster_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("queue.sample_interval", queue.DefaultSampleInterval)
	v.SetDefault("queue.drain_interval", queue.DefaultDrainInterval)
	v.SetDefault("queue.heavy_duration", queue.DefaultHeavyDuration)
	v.SetDefault("queue.cost_unit", queue.DefaultCostUnit)
	v.SetDefault("forecast.simulations", forecast.DefaultSimulations)
	v.SetDefault("forecast.horizon", forecast.DefaultHorizon)
	v.SetDefault("forecast.sla", forecast.DefaultSLA)
	v.SetDefault("forecast.avg_process_time", forecast.DefaultAvgProcessTime)
	v.SetDefault("forecast.arrival_rate", forecast.DefaultArrivalRate)
	v.SetDefault("telemetry.interval", "100ms")
	v.SetDefault("events.log_drops_per_second", 10)
	v.SetDefault("events.publish_buffer", 1024)
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("%w: server.http_port %d out of range", ErrInvalidConfig, c.Server.HTTPPort)
	}
	if c.Redis.Enabled && len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("%w: redis.addresses is empty", ErrInvalidConfig)
	}
	if c.Forecast.Simulations <= 0 {
		return fmt.Errorf("%w: forecast.simulations must be positive", ErrInvalidConfig)
	}
	if c.Forecast.AvgProcessTime <= 0 {
		return fmt.Errorf("%w: forecast.avg_process_time must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.HTTPPort)
}

func (q QueueConfig) ManagerConfig() queue.Config {
	return queue.Config{
		SampleInterval: q.SampleInterval,
		DrainInterval:  q.DrainInterval,
		HeavyDuration:  q.HeavyDuration,
		CostUnit:       q.CostUnit,
	}
}

func (f ForecastConfig) ForecasterConfig() forecast.Config {
	return forecast.Config{
		Simulations:    f.Simulations,
		Horizon:        f.Horizon,
		SLA:            f.SLA,
		AvgProcessTime: f.AvgProcessTime,
		ArrivalRate:    f.ArrivalRate,
	}
}

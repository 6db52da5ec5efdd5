package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageMode string

const (
	StorageModeLocal  StorageMode = "local"
	StorageModeRemote StorageMode = "remote"
)

type StorageConfig struct {
	Mode      StorageMode
	DataDir   string
	PublicURL string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	CDNHost   string
	UseSSL    bool
	Region    string
}

type GenerationConfig struct {
	APIHost          string
	APIKey           string
	EngineID         string
	Timeout          time.Duration
	RateLimit        time.Duration
	MaxRephraseDepth int
	TryBudget        int
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxLen        int64
}

type NotifyConfig struct {
	Channel      string
	WriteTimeout time.Duration
}

type WorkerConfig struct {
	MetricsAddr string
}

type SecurityConfig struct {
	JWTAccessSecret string
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Generation       GenerationConfig
	Queue            QueueConfig
	Notify           NotifyConfig
	Worker           WorkerConfig
	Security         SecurityConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	return load(v)
}

func load(v *viper.Viper) (*AppConfig, error) {
	v.SetEnvPrefix("MYTHWEAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateAPI checks settings only the api process needs. An empty signing
// secret would let anyone mint a token for any user.
func (c *AppConfig) ValidateAPI() error {
	if strings.TrimSpace(c.Security.JWTAccessSecret) == "" {
		return fmt.Errorf("security.jwtaccesssecret must be set")
	}
	return nil
}

func (c *AppConfig) validate() error {
	switch c.Storage.Mode {
	case StorageModeLocal, StorageModeRemote:
	default:
		return fmt.Errorf("storage.mode must be %q or %q, got %q", StorageModeLocal, StorageModeRemote, c.Storage.Mode)
	}
	if c.Generation.TryBudget <= 0 {
		return fmt.Errorf("generation.trybudget must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.mode", string(StorageModeLocal))
	v.SetDefault("storage.datadir", "./data")
	v.SetDefault("storage.publicurl", "http://localhost:8080")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "mythweaver-assets")
	v.SetDefault("storage.cdnhost", "assets.mythweaver.co")
	v.SetDefault("storage.usessl", true)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("generation.apihost", "https://api.stability.ai")
	v.SetDefault("generation.apikey", "")
	v.SetDefault("generation.engineid", "stable-diffusion-xl-1024-v1-0")
	v.SetDefault("generation.timeout", "0s")
	v.SetDefault("generation.ratelimit", "0s")
	v.SetDefault("generation.maxrephrasedepth", 1)
	v.SetDefault("generation.trybudget", 30)

	v.SetDefault("queue.stream", "images:generate")
	v.SetDefault("queue.group", "image-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")
	v.SetDefault("queue.maxlen", 10000)

	v.SetDefault("notify.channel", "notifications")
	v.SetDefault("notify.writetimeout", "5s")

	v.SetDefault("worker.metricsaddr", ":9091")

	v.SetDefault("security.jwtaccesssecret", "")

	v.SetDefault("allowcorsorigins", []string{})
}
